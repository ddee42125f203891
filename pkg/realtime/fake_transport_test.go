package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport is an in-memory Transport. Peer messages are fed through
// incoming; everything the server writes shows up on written.
type fakeTransport struct {
	incoming chan []byte
	written  chan []byte
	closed   chan struct{}
	once     sync.Once

	// blockWrites makes WriteMessage hang until the transport is closed.
	blockWrites bool
	// failWrites makes WriteMessage return an error.
	failWrites bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan []byte, 16),
		written:  make(chan []byte, 256),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case m := <-f.incoming:
		return websocket.TextMessage, m, nil
	case <-f.closed:
		return 0, nil, errTransportClosed
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if f.blockWrites {
		<-f.closed
		return errTransportClosed
	}
	if f.failWrites {
		return errors.New("broken pipe")
	}
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}
	f.written <- data
	return nil
}

func (f *fakeTransport) WriteControl(int, []byte, time.Time) error { return nil }
func (f *fakeTransport) SetReadLimit(int64)                        {}
func (f *fakeTransport) SetReadDeadline(time.Time) error           { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error          { return nil }
func (f *fakeTransport) SetPongHandler(func(string) error)         {}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// next waits for the next message written to the peer.
func (f *fakeTransport) next(t *testing.T) Message {
	t.Helper()
	select {
	case data := <-f.written:
		m, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

// quiet asserts nothing is written for a short while.
func (f *fakeTransport) quiet(t *testing.T) {
	t.Helper()
	select {
	case data := <-f.written:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	cfg.PongWait = 0
	return cfg
}

// startClient registers a client on ft and runs its loops in the background.
func startClient(t *testing.T, r *Registry, ft *fakeTransport, cfg Config, initial ...[]byte) *Client {
	t.Helper()
	c := NewClient(ft, cfg)
	if err := r.Register(c, initial...); err != nil {
		t.Fatalf("register: %v", err)
	}
	go c.Run(r)
	t.Cleanup(func() { r.Unregister(c) })
	return c
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s not disconnected", c.ID())
	}
}

func waitLen(t *testing.T, r *Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, r.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
