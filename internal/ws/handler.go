package ws

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections watching a
// listing.
type Handler struct {
	manager *Manager
	log     *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, log *zap.Logger) *Handler {
	return &Handler{manager: manager, log: log}
}

// Watch handles GET /ws/listings/{hash}: upgrade and register the client.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	itemHash := mux.Vars(r)["hash"]
	if itemHash == "" {
		http.Error(w, "listing hash is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.New().String(),
		ItemHash: itemHash,
		Conn:     conn,
		Send:     make(chan []byte, 256),
	}
	h.manager.Register(client)

	welcome := fmt.Sprintf(`{"type":"connected","item_hash":%q,"client_id":%q}`, itemHash, client.ID)
	client.Send <- []byte(welcome)
}

// Stats handles GET /ws/listings/{hash}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	itemHash := mux.Vars(r)["hash"]

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"item_hash":%q,"watchers":%d}`, itemHash, h.manager.WatcherCount(itemHash))
}
