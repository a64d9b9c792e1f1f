package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

const hubBuffer = 256

// Hub broadcasts the events of every run to all registered websocket
// clients. Send never blocks: when the buffer is full the event is dropped.
type Hub struct {
	clients   map[*websocket.Conn]struct{}
	broadcast chan core.Event
	mu        sync.RWMutex
	logger    logging.Logger
}

// NewHub creates a hub; call Run to start delivery.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Hub{
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan core.Event, hubBuffer),
		logger:    logger,
	}
}

// Run delivers broadcast events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}

			var failed []*websocket.Conn

			h.mu.RLock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
					failed = append(failed, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range failed {
				h.Unregister(client)
				_ = client.Close()
			}
		}
	}
}

// Send implements Sink. Heartbeats are not broadcast.
func (h *Hub) Send(_ context.Context, ev core.Event) error {
	if ev.Type == core.EventHeartbeat {
		return nil
	}

	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("relay.hub.full", "event", string(ev.Type), "run_id", ev.RunID)
	}

	return nil
}

// Register adds a client.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
