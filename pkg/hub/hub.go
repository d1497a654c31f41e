package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// queueSize bounds messages waiting for the run loop.
const queueSize = 256

// Stats counts hub activity.
type Stats struct {
	Name    string `json:"name"`
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`    // messages queued to clients
	Evicted uint64 `json:"evicted"` // clients dropped for falling behind
	Skipped uint64 `json:"skipped"` // broadcasts lost to a full queue
}

// Hub fans messages out to websocket clients. All client set changes
// happen on the Run goroutine.
type Hub struct {
	name   string
	logger *slog.Logger
	replay bool

	queue      chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
	last    *Message
	running bool

	sent    atomic.Uint64
	evicted atomic.Uint64
	skipped atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithReplay sends the most recent message to each client on connect.
func WithReplay() Option {
	return func(h *Hub) { h.replay = true }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// New creates a hub. Nothing is delivered until Run is called.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default(),
		queue:      make(chan Message, queueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub", "hub", name)
	return h
}

// Run delivers messages until ctx is done, then disconnects every client.
// A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c, "disconnected")
		case m := <-h.queue:
			h.fanout(m)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	if h.replay && h.last != nil {
		// Fresh buffer, cannot block.
		c.send <- *h.last
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", n)
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	h.drop(c)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client "+reason, "clients", n)
}

// drop closes c's queue once. Callers hold h.mu.
func (h *Hub) drop(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

func (h *Hub) fanout(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &m
	for c := range h.clients {
		select {
		case c.send <- m:
			h.sent.Add(1)
		default:
			h.drop(c)
			h.evicted.Add(1)
			h.logger.Warn("evicted slow client", "clients", len(h.clients))
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.running = false
	for c := range h.clients {
		h.drop(c)
	}
	h.mu.Unlock()
	close(h.done)
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is skipped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.queue <- msg:
	default:
		h.skipped.Add(1)
		h.logger.Warn("broadcast queue full, skipping message")
	}
}

// BroadcastJSON encodes v and broadcasts it as a text message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts data as a binary message.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Name:    h.name,
		Clients: h.ClientCount(),
		Sent:    h.sent.Load(),
		Evicted: h.evicted.Load(),
		Skipped: h.skipped.Load(),
	}
}
