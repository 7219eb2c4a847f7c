package sse

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/kbukum/vaultflow/logger"
)

const clientBuffer = 64

// Client is one subscribed stream. Filter is a path.Match pattern applied
// to event keys; "" and "*" match everything.
type Client struct {
	id     string
	filter string
	events chan Event
}

// NewClient creates a client with a buffered event queue.
func NewClient(id, filter string) *Client {
	if filter == "" {
		filter = "*"
	}
	return &Client{id: id, filter: filter, events: make(chan Event, clientBuffer)}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Filter returns the key pattern the client subscribed with.
func (c *Client) Filter() string { return c.filter }

// Events returns the client's queue. It is closed when the client is
// unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// send queues ev, dropping it when the client is not keeping up.
func (c *Client) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

type message struct {
	key   string
	event Event
}

// Hub fans events out to subscribed clients. All client bookkeeping
// happens on the Run goroutine.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	keepAlive  time.Duration
	log        *logger.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithKeepAlive sets the interval between keep-alive comments on idle
// streams. Defaults to 30s.
func WithKeepAlive(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// NewHub creates a hub. log may be nil.
func NewHub(log *logger.Logger, opts ...HubOption) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		keepAlive:  30 * time.Second,
		log:        log.WithComponent("sse"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run is the hub's event loop. It returns after Stop, closing every
// client queue.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client subscribed", logger.Fields("client_id", c.id, "filter", c.filter, "clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.events)
			}
			h.mu.Unlock()
			h.log.Debug("client unsubscribed", logger.Fields("client_id", c.id))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// Register subscribes c. It returns false when the hub has stopped or ctx
// ends first.
func (h *Hub) Register(ctx context.Context, c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Unregister removes c and closes its queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish marshals v and queues it for every client whose filter matches
// key. It never blocks; when the hub is backed up the event is dropped.
func (h *Hub) Publish(key, eventType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("event not encodable", logger.Fields("type", eventType, "error", err.Error()))
		return
	}
	select {
	case h.broadcast <- message{key: key, event: Event{Type: eventType, Data: data}}:
	case <-h.done:
	default:
		h.log.Warn("hub backlog full, event dropped", logger.Fields("key", key, "type", eventType))
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		ok, err := path.Match(c.filter, msg.key)
		if err != nil || !ok {
			continue
		}
		if !c.send(msg.event) {
			h.log.Warn("client queue full, event dropped", logger.Fields("client_id", id, "key", msg.key))
		}
	}
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
