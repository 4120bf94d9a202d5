package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards consuming the live feed run on arbitrary local/internal origins
	},
}

// Hub fans out rescan results and scan progress to every subscriber of the
// live feed. It never knows the shape of any individual event beyond the
// envelope's json bytes — driftpoll and the API handlers marshal their own
// rescanPayload/gin.H before calling Broadcast.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	logger    *zap.Logger
}

// NewHub builds a Hub. Run must be started in its own goroutine before any
// client connects.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		logger:    logger,
	}
}

// Run drains the broadcast channel, writing each message to every connected
// client. A client whose write deadline is missed is dropped rather than
// allowed to stall the rest of the fan-out.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("websocket write failed, dropping client", zap.Error(err))
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades GET /stream to a websocket connection and registers it
// to receive rescan/scan events until it disconnects.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("websocket client connected", zap.Int("clients", clientCount))

	// The feed is push-only, but the read loop must still run to notice
	// disconnects and clean up the client entry.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			h.logger.Info("websocket client disconnected", zap.Int("clients", remaining))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				break
			}
		}
	}()
}

// Broadcast pushes an already-marshaled event to every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}
