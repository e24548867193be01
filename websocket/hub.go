package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client represents a connected WebSocket client
type Client struct {
	Hub    *Hub
	ID     string
	UserID uint
	Role   string
	Conn   *websocket.Conn
	Send   chan []byte
}

// NewClient allocates a client with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, role string) *Client {
	return &Client{
		Hub:    hub,
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
}

// Hub tracks live connections and the court rooms they watch. Every
// connection receives global events; scoped events go to one court room.
type Hub struct {
	// Registered clients by connection id
	Clients map[string]*Client

	// Court rooms: court id -> connection ids
	Rooms map[uint]map[string]bool

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Message handlers
	MessageHandlers map[string]MessageHandler

	log  *logrus.Logger
	mu   sync.RWMutex
	done chan struct{}
}

// Message is the frame exchanged with clients in both directions.
type Message struct {
	Type      string      `json:"type"`
	CourtID   uint        `json:"court_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MessageHandler handles different types of messages
type MessageHandler func(*Client, *Message) error

// NewHub creates a new WebSocket hub
func NewHub(log *logrus.Logger) *Hub {
	hub := &Hub{
		Clients:         make(map[string]*Client),
		Rooms:           make(map[uint]map[string]bool),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		MessageHandlers: make(map[string]MessageHandler),
		log:             log,
		done:            make(chan struct{}),
	}
	hub.registerDefaultHandlers()
	return hub
}

func (h *Hub) registerDefaultHandlers() {
	h.MessageHandlers["subscribe"] = h.handleSubscribe
	h.MessageHandlers["unsubscribe"] = h.handleUnsubscribe
	h.MessageHandlers["ping"] = h.handlePing
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client.ID] = client
			h.mu.Unlock()
			h.log.WithFields(client.fields()).Info("🔌 Client registered")

		case client := <-h.Unregister:
			h.remove(client)
			h.log.WithFields(client.fields()).Info("🔌 Client unregistered")
		}
	}
}

// Attach registers client with the running hub. It reports false once the
// hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Detach unregisters client. After the hub has stopped it returns at once.
func (h *Hub) Detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client.ID)
}

// dropLocked forgets a connection and closes its queue. mu must be held.
func (h *Hub) dropLocked(id string) {
	client, ok := h.Clients[id]
	if !ok {
		return
	}
	for courtID, members := range h.Rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(h.Rooms, courtID)
		}
	}
	delete(h.Clients, id)
	close(client.Send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.Clients {
		h.dropLocked(id)
	}
}

// Join adds a connection to a court room.
func (h *Hub) Join(client *Client, courtID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.Clients[client.ID]; !ok {
		return
	}
	if h.Rooms[courtID] == nil {
		h.Rooms[courtID] = make(map[string]bool)
	}
	h.Rooms[courtID][client.ID] = true
	h.log.WithFields(logrus.Fields{"conn_id": client.ID, "court_id": courtID}).Debug("👥 Joined court room")
}

// Leave removes a connection from a court room.
func (h *Hub) Leave(client *Client, courtID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members := h.Rooms[courtID]; members != nil {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.Rooms, courtID)
		}
	}
}

// EmitGlobal sends event to every connection.
func (h *Hub) EmitGlobal(_ context.Context, event string, payload any) error {
	data, err := json.Marshal(&Message{Type: event, Data: payload, Timestamp: time.Now()})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.Clients {
		h.deliverLocked(id, client, data)
	}
	return nil
}

// EmitScoped sends event to the connections watching courtID.
func (h *Hub) EmitScoped(_ context.Context, courtID uint, event string, payload any) error {
	data, err := json.Marshal(&Message{Type: event, CourtID: courtID, Data: payload, Timestamp: time.Now()})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.Rooms[courtID] {
		if client, ok := h.Clients[id]; ok {
			h.deliverLocked(id, client, data)
		}
	}
	return nil
}

// deliverLocked never blocks. A client whose buffer is full is dropped.
func (h *Hub) deliverLocked(id string, client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.log.WithField("conn_id", id).Warn("⚠️ Send buffer full, dropping client")
		h.dropLocked(id)
	}
}

// ConnectedCount returns the number of live connections.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients)
}

// RoomSize returns how many connections watch courtID.
func (h *Hub) RoomSize(courtID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Rooms[courtID])
}

func (h *Hub) handleSubscribe(client *Client, message *Message) error {
	if message.CourtID == 0 {
		return client.SendError("invalid_input", "court_id is required")
	}
	h.Join(client, message.CourtID)
	return client.SendMessage(&Message{Type: "subscribed", CourtID: message.CourtID, Timestamp: time.Now()})
}

func (h *Hub) handleUnsubscribe(client *Client, message *Message) error {
	h.Leave(client, message.CourtID)
	return client.SendMessage(&Message{Type: "unsubscribed", CourtID: message.CourtID, Timestamp: time.Now()})
}

// handlePing handles ping messages for connection health
func (h *Hub) handlePing(client *Client, _ *Message) error {
	return client.SendMessage(&Message{Type: "pong", Timestamp: time.Now()})
}

// Dispatch routes an inbound frame to its handler.
func (h *Hub) Dispatch(client *Client, raw []byte) {
	var message Message
	if err := json.Unmarshal(raw, &message); err != nil {
		h.log.WithError(err).Debug("❌ Error unmarshaling message")
		_ = client.SendError("invalid_input", "malformed message")
		return
	}
	handler, ok := h.MessageHandlers[message.Type]
	if !ok {
		h.log.WithField("type", message.Type).Debug("⚠️ Unknown message type")
		_ = client.SendError("invalid_input", "unknown message type")
		return
	}
	if err := handler(client, &message); err != nil {
		h.log.WithError(err).WithField("conn_id", client.ID).Warn("❌ Error handling message")
	}
}
