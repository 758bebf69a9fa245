package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for local dashboards
	},
}

// Hub maintains the set of active websocket clients and fans out typed
// conversion progress events. A client may scope its subscription to one
// case folder via the ?case= query parameter; batch-wide events (CasePath
// empty, e.g. the final Done summary) always reach every client regardless
// of its filter.
type Hub struct {
	clients   map[*websocket.Conn]string // conn -> case-path filter, "" means all
	broadcast chan models.ProgressEvent
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan models.ProgressEvent, 256),
		clients:   make(map[*websocket.Conn]string),
	}
}

func (h *Hub) Run() {
	for event := range h.broadcast {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("Progress event marshal error: %v", err)
			continue
		}

		h.mutex.Lock()
		for client, filter := range h.clients {
			if filter != "" && event.CasePath != "" && filter != event.CasePath {
				continue // client is scoped to a different case
			}
			// Write deadline prevents a blocked client from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections. An optional ?case=<path>
// query parameter scopes the connection to progress events for that case
// folder only.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	filter := c.Query("case")
	h.mutex.Lock()
	h.clients[conn] = filter
	h.mutex.Unlock()

	log.Printf("New WebSocket client connected (case filter %q). Total clients: %d", filter, len(h.clients))

	// We only push down, but must read to notice disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("WebSocket client disconnected. Total clients: %d", len(h.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast enqueues a progress event for delivery to every subscriber whose
// case filter matches (or carries no filter).
func (h *Hub) Broadcast(event models.ProgressEvent) {
	h.broadcast <- event
}
