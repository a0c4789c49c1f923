package api

import (
	"fmt"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/karcash/karcard/internal/renderer"
	"github.com/karcash/karcard/internal/store"
)

// WebSocket message types
const (
	EventState    = "state"
	EventRendered = "rendered"
	EventCommand  = "command"
	EventResponse = "response"
	EventError    = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
	mu     sync.Mutex
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️  WebSocket upgrade failed: %v", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
	}

	log.Println("📡 WebSocket client connected")

	s.addClient(client)

	// New clients start from the current state
	client.send <- WSMessage{Event: EventState, Data: s.deps.Store.Snapshot()}

	// Start goroutines
	go client.readPump()
	go client.writePump()
}

func (s *Server) addClient(client *WSClient) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

// removeClient drops the client and closes its send channel, which ends
// writePump
func (s *Server) removeClient(client *WSClient) {
	s.clientsMu.Lock()
	if s.clients[client] {
		delete(s.clients, client)
		close(client.send)
	}
	s.clientsMu.Unlock()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()

		if err != nil {
			log.Printf("⚠️  WebSocket write error: %v", err)
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
		log.Println("📡 WebSocket client disconnected")
	}()

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️  WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventCommand:
		c.handleCommandEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

// handleCommandEvent runs {"command": "..."} through the executor
func (c *WSClient) handleCommandEvent(data interface{}) {
	fields, _ := data.(map[string]interface{})
	cmd, ok := fields["command"].(string)
	if !ok || cmd == "" {
		c.sendError("command is required")
		return
	}

	c.sendResponse(c.server.executor.Execute(cmd))
}

func (c *WSClient) sendResponse(data interface{}) {
	c.send <- WSMessage{
		Event: EventResponse,
		Data:  data,
	}
}

func (c *WSClient) sendError(message string) {
	c.send <- WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	}
}

// broadcast queues message for every client, skipping clients whose
// buffer is full
func (s *Server) broadcast(message WSMessage) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}

// BroadcastState sends a committed snapshot to all connected clients
func (s *Server) BroadcastState(snap store.Snapshot) {
	s.broadcast(WSMessage{Event: EventState, Data: snap})
}

// BroadcastRendered announces a completed render pass
func (s *Server) BroadcastRendered(info renderer.PassInfo) {
	s.broadcast(WSMessage{Event: EventRendered, Data: info})
}
