package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // operator console runs same-origin or over an authenticated tunnel
	},
}

// wsEvent is the wire shape pushed to connected operator consoles.
type wsEvent struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// wsHub relays domain events (lease reclaims, board health sweeps) to every
// connected operator console. It is push-only: it serves no tool calls,
// request_next_task included. Grounded on the teacher's
// pkg/api/ws.go register/unregister/broadcast hub.
type wsHub struct {
	log        *logger.Logger
	clients    map[*wsClient]bool
	broadcast  chan wsEvent
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

func newWSHub(bus domain.EventBus, log *logger.Logger) *wsHub {
	h := &wsHub{
		log:        log,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan wsEvent, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
	bus.SubscribeAll(h.onDomainEvent)
	return h
}

func (h *wsHub) onDomainEvent(e domain.Event) {
	h.publish(string(e.EventType()), e.Payload())
}

func (h *wsHub) publish(eventType string, data interface{}) {
	event := wsEvent{Type: eventType, Timestamp: time.Now().UTC().Format(time.RFC3339), Data: data}
	select {
	case h.broadcast <- event:
	default:
		h.log.WarnCF("transport", "ws broadcast channel full, dropping event", logger.Fields{"type": eventType})
	}
}

func (h *wsHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// client too slow, drop
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *wsHub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.ErrorCF("transport", "ws upgrade failed", logger.Fields{"error": err.Error()})
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

func (h *wsHub) readPump(c *wsClient) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *wsHub) writePump(c *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
