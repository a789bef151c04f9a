package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daman-app/daman/internal/database"
)

// EventMessage is the wire format pushed to review UI clients whenever a
// history event is appended.
type EventMessage struct {
	GuaranteeID    string                      `json:"guarantee_id"`
	ContractNumber string                      `json:"contract_number"`
	Status         database.GuaranteeStatus    `json:"status"`
	EventType      database.GuaranteeEventType `json:"event_type"`
	EventSubtype   string                      `json:"event_subtype"`
	Diff           database.JSONB              `json:"diff"`
	Actor          string                      `json:"actor"`
	EventCreated   time.Time                   `json:"event_created_at"`
}

// EventsWSHandler pushes appended history events to connected review UI
// clients over WebSocket. It implements services.EventSink.
type EventsWSHandler struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]chan []byte
}

// NewEventsWSHandler creates a new events WebSocket handler
func NewEventsWSHandler() *EventsWSHandler {
	return &EventsWSHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Same-origin UI plus internal dashboards
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// SetupRoutes configures WebSocket routes
func (h *EventsWSHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.HandleWebSocket)
}

// HandleWebSocket handles a WebSocket connection from a review UI client
func (h *EventsWSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	send := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	log.Printf("Events client connected from %s", r.RemoteAddr)

	// Writer goroutine owns the connection for writes.
	go func() {
		for data := range send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	// Read loop only detects disconnects; clients never send anything
	// the server acts on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.removeClient(conn)
	log.Printf("Events client disconnected")
}

func (h *EventsWSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *EventsWSHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HistoryAppended implements services.EventSink. Slow clients get
// dropped rather than stalling the decision path.
func (h *EventsWSHandler) HistoryAppended(guarantee *database.Guarantee, event *database.GuaranteeEvent) {
	msg := EventMessage{
		GuaranteeID:    guarantee.UUID,
		ContractNumber: guarantee.ContractNumber,
		Status:         guarantee.Status,
		EventType:      event.Type,
		EventSubtype:   event.Subtype,
		Diff:           event.Diff,
		Actor:          event.Actor,
		EventCreated:   event.CreatedAt,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("EventsWSHandler: Failed to marshal event: %v", err)
		return
	}

	var stale []*websocket.Conn
	h.mu.RLock()
	for conn, send := range h.clients {
		select {
		case send <- data:
		default:
			stale = append(stale, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range stale {
		log.Printf("EventsWSHandler: Dropping slow client")
		h.removeClient(conn)
	}
}
