package events

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 30 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Client is one websocket subscriber bound to a user id.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

// Hub fans meeting events out to websocket subscribers, keyed by user id.
type Hub struct {
	logger Logger

	clients  map[*Client]bool
	userSubs map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	publish    chan Event
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		userSubs:   make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan Event, 256),
	}
}

// Run is the hub's event loop; run it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.userSubs[client.userID] == nil {
				h.userSubs[client.userID] = make(map[*Client]bool)
			}
			h.userSubs[client.userID][client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case event := <-h.publish:
			h.deliver(event)
		}
	}
}

// Publish queues an event for delivery to its recipients' subscriptions.
// Safe to call from any goroutine; drops the event if the hub is saturated
// rather than blocking an orchestration.
func (h *Hub) Publish(event Event) {
	select {
	case h.publish <- event:
	default:
		h.logger.Warn("events: hub saturated, dropping " + string(event.Type))
	}
}

func (h *Hub) deliver(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("events: marshal event: " + err.Error())
		return
	}

	for _, userID := range event.Recipients {
		for client := range h.userSubs[userID] {
			select {
			case client.send <- message:
			default:
				// Slow consumer; drop the connection.
				h.drop(client)
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if subs, ok := h.userSubs[client.userID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.userSubs, client.userID)
		}
	}
	close(client.send)
}

// ServeWS upgrades the request and registers the connection for the user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("events: upgrade: " + err.Error())
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards client messages and keeps the pong deadline fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
