package realtime

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/metrics"
)

const (
	reasonBufferFull = "send_buffer_full"
	reasonWriteError = "write_error"
	reasonDisconnect = "disconnect"
)

// Registry is the set of live clients. Broadcasts hold the lock for the
// whole fan-out so every client observes events in the same order; the
// fan-out only enqueues and never waits on a peer.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

// Register queues the initial messages for c and adds it to the set in one
// step, so no broadcast can overtake them. On failure c is closed. Once
// the registry is closed every registration fails with ErrClientClosed.
func (r *Registry) Register(c *Client, initial ...[]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		c.close()
		return ErrClientClosed
	}
	for _, msg := range initial {
		if err := c.enqueue(msg); err != nil {
			c.close()
			return err
		}
	}
	if err := c.markConnected(); err != nil {
		return err
	}
	r.clients[c] = struct{}{}
	metrics.Clients.Inc()
	c.logger.Debug("client registered")
	return nil
}

// Unregister removes and closes c. Unknown or already removed clients are
// ignored.
func (r *Registry) Unregister(c *Client) {
	r.drop(c, "", nil)
}

// Broadcast serializes e once and queues it on every registered client.
// Clients that cannot take it are unregistered.
func (r *Registry) Broadcast(e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	var failed []*Client
	r.mu.Lock()
	for c := range r.clients {
		if err := c.enqueue(data); err != nil {
			failed = append(failed, c)
		}
	}
	n := len(r.clients)
	r.mu.Unlock()

	for _, c := range failed {
		r.drop(c, reasonBufferFull, ErrSendBufferFull)
	}

	metrics.Broadcasts.WithLabelValues(e.Type()).Inc()
	log.WithFields(log.Fields{
		"event":   e.Type(),
		"clients": n,
		"dropped": len(failed),
	}).Debug("broadcast")
	return nil
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close unregisters every client and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[*Client]struct{})
	r.mu.Unlock()

	metrics.Clients.Sub(float64(len(clients)))
	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		log.WithField("clients", len(clients)).Info("closed real-time clients")
	}
}

func (r *Registry) drop(c *Client, reason string, cause error) {
	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	r.mu.Unlock()

	c.close()
	if !ok {
		return
	}
	metrics.Clients.Dec()

	entry := c.logger
	if cause != nil {
		entry = entry.WithError(cause)
	}
	switch reason {
	case reasonBufferFull, reasonWriteError:
		metrics.DroppedClients.WithLabelValues(reason).Inc()
		entry.WithField("reason", reason).Warn("dropping client")
	default:
		entry.Debug("client unregistered")
	}
}
