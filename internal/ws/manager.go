// Package ws broadcasts bid status events to clients watching a listing.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Manager tracks which clients watch which listing hash and fans events out
// to them.
type Manager struct {
	mu       sync.RWMutex
	watchers map[string]map[*Client]struct{} // listing hash -> clients

	unregister chan *Client
	broadcast  chan *broadcastMessage

	log *zap.Logger
}

// Client is one WebSocket connection watching a single listing.
type Client struct {
	ID       string
	ItemHash string
	Conn     *websocket.Conn
	Send     chan []byte
}

type broadcastMessage struct {
	itemHash string
	payload  []byte
}

// NewManager creates a Manager.
func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		watchers:   make(map[string]map[*Client]struct{}),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		log:        log,
	}
}

// Run drives the manager's event loop. Run in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.unregister:
			m.removeClient(client)
		case msg := <-m.broadcast:
			m.broadcastToItem(msg.itemHash, msg.payload)
		}
	}
}

// Register adds a client and starts its write pump.
func (m *Manager) Register(client *Client) {
	m.mu.Lock()
	set, ok := m.watchers[client.ItemHash]
	if !ok {
		set = make(map[*Client]struct{})
		m.watchers[client.ItemHash] = set
	}
	set[client] = struct{}{}
	m.mu.Unlock()

	m.log.Debug("client watching listing",
		zap.String("client_id", client.ID),
		zap.String("item_hash", client.ItemHash))

	go client.writePump()
	go client.readPump(m.unregister)
}

// Broadcast queues a payload for every client watching the listing.
func (m *Manager) Broadcast(itemHash string, payload []byte) {
	m.broadcast <- &broadcastMessage{itemHash: itemHash, payload: payload}
}

// WatcherCount returns the number of clients watching a listing.
func (m *Manager) WatcherCount(itemHash string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers[itemHash])
}

func (m *Manager) removeClient(client *Client) {
	m.mu.Lock()
	if set, ok := m.watchers[client.ItemHash]; ok {
		if _, present := set[client]; present {
			delete(set, client)
			close(client.Send)
		}
		if len(set) == 0 {
			delete(m.watchers, client.ItemHash)
		}
	}
	m.mu.Unlock()

	client.Conn.Close()
}

func (m *Manager) broadcastToItem(itemHash string, payload []byte) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.watchers[itemHash]))
	for client := range m.watchers[itemHash] {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- payload:
		default:
			// A full send buffer means a stuck client; drop it rather
			// than block the others.
			m.removeClient(client)
		}
	}
}

// writePump pumps messages from the Send channel to the connection and
// keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client input so pongs and disconnects are noticed.
func (c *Client) readPump(unregister chan<- *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
