package websocket

import (
	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/rs/zerolog/log"
)

type userMessage struct {
	userID  string
	message []byte
}

// Hub maintains the set of active clients and routes notifications to them by user.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Clients grouped by the user they authenticated as.
	byUser map[string]map[*Client]bool

	// Messages for every connected client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	push chan userMessage
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		push:       make(chan userMessage, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			if h.byUser[client.UserID] == nil {
				h.byUser[client.UserID] = make(map[*Client]bool)
			}
			h.byUser[client.UserID][client] = true
			metrics.WebsocketClients.Inc()
			log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		case m := <-h.push:
			for client := range h.byUser[m.userID] {
				h.deliver(client, m.message)
			}
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// PushToUser queues a message for all of a user's connections. It never blocks the caller.
func (h *Hub) PushToUser(userID string, message []byte) {
	select {
	case h.push <- userMessage{userID: userID, message: message}:
	default:
		log.Warn().Str("user_id", userID).Msg("Websocket push queue full, dropping message")
	}
}

// deliver drops clients whose send buffer is full.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	if subs, ok := h.byUser[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	metrics.WebsocketClients.Dec()
}
