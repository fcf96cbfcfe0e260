// Package preview mirrors rendered frames to browser clients over WebSocket.
//
// Each frame is sent as one binary message of 3 bytes (R, G, B) per LED. The hub
// is an LED sink, so it sits next to the hardware output behind led.Multi.
package preview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/keylight/internal/metrics"
	"github.com/smazurov/keylight/internal/render"
)

// Config holds hub queue sizes.
type Config struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int
	// BroadcastBuf is the hub inbound frame queue size.
	BroadcastBuf int
}

// Hub tracks connected preview clients and fans frames out to them.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu      sync.Mutex
	clients map[*client]struct{}

	sendBuf int
	once    sync.Once
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *slog.Logger, cfg Config) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 8
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 4
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, cfg.BroadcastBuf),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		clients:    make(map[*client]struct{}),
		sendBuf:    cfg.SendBuf,
		done:       make(chan struct{}),
	}
}

// Name implements the LED sink interface.
func (h *Hub) Name() string {
	return "preview"
}

// Write queues frame for every connected client. It never blocks: when the hub
// queue is full the frame is dropped.
func (h *Hub) Write(frame render.Frame) error {
	if h.Clients() == 0 {
		return nil
	}
	msg := Encode(frame)
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("Preview queue full, dropping frame")
	}
	return nil
}

// Close stops the hub and disconnects all clients.
func (h *Hub) Close() error {
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
			<-h.done
		} else {
			h.closeAll()
			close(h.done)
		}
	})
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run processes hub events in a goroutine until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.loop(ctx)
}

func (h *Hub) loop(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetPreviewClients(n)
			h.logger.Info("Preview client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.remove(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.remove(c, "slow_client")
			}
		}
	}
}

func (h *Hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	metrics.SetPreviewClients(n)
	h.logger.Info("Preview client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
	metrics.SetPreviewClients(0)
}

// Encode packs a frame as consecutive RGB bytes.
func Encode(frame render.Frame) []byte {
	out := make([]byte, 0, len(frame)*3)
	for _, c := range frame {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}
