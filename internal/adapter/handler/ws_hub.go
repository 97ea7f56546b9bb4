package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Event is what the browser UI receives per operation: the status line to
// display, the transcript echo, and the item to highlight. The highlight
// auto-clear timer lives in the UI, not here.
type Event struct {
	Type       string `json:"type"`
	Outcome    string `json:"outcome"`
	Status     string `json:"status"`
	Transcript string `json:"transcript"`
	ItemID     int64  `json:"item_id,omitempty"`
	LowStock   bool   `json:"low_stock"`
}

// EventHub fans status events out to connected WebSocket clients. Slow or
// dead clients are dropped rather than blocking the broadcast.
type EventHub struct {
	upgrader   websocket.Upgrader
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan Event
	done       chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the connection set; call it once in its own goroutine.
func (h *EventHub) Run() {
	conns := make(map[*websocket.Conn]bool)

	for {
		select {
		case conn := <-h.register:
			conns[conn] = true

		case conn := <-h.unregister:
			if conns[conn] {
				delete(conns, conn)
				conn.Close()
			}

		case event := <-h.broadcast:
			for conn := range conns {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(event); err != nil {
					delete(conns, conn)
					conn.Close()
				}
			}

		case <-h.done:
			for conn := range conns {
				conn.Close()
			}
			return
		}
	}
}

func (h *EventHub) Stop() {
	close(h.done)
}

// Broadcast queues an event for all clients, dropping it when the hub is
// backed up.
func (h *EventHub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("event hub backed up, dropped %s event", event.Type)
	}
}

// Serve upgrades an HTTP request to a WebSocket subscription.
func (h *EventHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	h.register <- conn

	// Clients only listen; the read loop exists to notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister <- conn
				return
			}
		}
	}()
}
