package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// State is the lifecycle position of a client.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

var pongMessage = []byte(`{"type":"pong"}`)

// Transport is the subset of *websocket.Conn a client needs.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Config bounds a client's resource use.
type Config struct {
	// WriteTimeout bounds every single write to the peer.
	WriteTimeout time.Duration
	// PingInterval is the period of websocket ping frames; zero disables them.
	PingInterval time.Duration
	// PongWait is how long the peer may stay silent; zero disables the read deadline.
	PongWait time.Duration
	// SendBuffer is the number of outbound messages queued per client.
	SendBuffer int
	// MaxMessageSize caps inbound message size.
	MaxMessageSize int64
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 4096,
	}
}

// Client is one live real-time connection. Outbound messages go through a
// bounded queue drained by a dedicated writer goroutine.
type Client struct {
	id     string
	conn   Transport
	cfg    Config
	send   chan []byte
	done   chan struct{}
	logger *log.Entry

	mu    sync.Mutex
	state State
}

// NewClient wraps conn. The client starts in the connecting state.
func NewClient(conn Transport, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: log.WithField("client", id),
		state:  StateConnecting,
	}
}

// ID returns the client's opaque identifier.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the client is disconnected.
func (c *Client) Done() <-chan struct{} { return c.done }

// enqueue never blocks.
func (c *Client) enqueue(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) markConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return ErrClientClosed
	}
	c.state = StateConnected
	return nil
}

// close moves the client to disconnected and releases the transport.
// Reports false if it was already closed.
func (c *Client) close() bool {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return false
	}
	c.state = StateDisconnected
	close(c.done)
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.WithError(err).Debug("close transport")
	}
	return true
}

// Run drives the client until it disconnects, then unregisters it from r.
// It blocks in the read loop.
func (c *Client) Run(r *Registry) {
	go c.writeLoop(r)
	err := c.readLoop()
	r.drop(c, reasonDisconnect, err)
}

func (c *Client) readLoop() error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		c.extendReadDeadline()

		msg, err := Decode(data)
		if err != nil {
			c.logger.WithError(err).Debug("ignoring malformed message")
			continue
		}
		switch msg.Type {
		case TypePing:
			if err := c.enqueue(pongMessage); err != nil {
				return err
			}
		default:
			c.logger.WithField("type", msg.Type).Debug("ignoring unknown message")
		}
	}
}

func (c *Client) extendReadDeadline() {
	if c.cfg.PongWait <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
}

func (c *Client) writeLoop(r *Registry) {
	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				r.drop(c, reasonWriteError, err)
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				r.drop(c, reasonWriteError, err)
				return
			}
		}
	}
}
