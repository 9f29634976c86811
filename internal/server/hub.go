// Package server exposes the control surface: the REST endpoints, the
// websocket event stream, and artifact downloads.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// inboundMessage is what the frontend may send over the socket.
type inboundMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
}

// InboundHandler reacts to frontend messages. The controller satisfies it.
type InboundHandler interface {
	AckSpeech(id string)
	SetVoice(on bool)
	Stop()
}

// Hub fans events out to every connected socket. Slow clients are dropped
// rather than allowed to stall the loop.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	handler InboundHandler
	clients map[*client]bool
}

var _ schemas.EventSink = (*Hub)(nil)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub. The inbound handler is attached separately
// because hub and controller reference each other.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// SetHandler attaches the consumer of inbound messages.
func (h *Hub) SetHandler(handler InboundHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

func (h *Hub) inboundHandler() InboundHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handler
}

// Emit implements schemas.EventSink: marshal once, fan out without blocking.
func (h *Hub) Emit(ev schemas.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("Event not marshalable; dropped.", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Client too slow; disconnecting.")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Serve upgrades the request and runs the client pumps.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed.", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// Shutdown closes every connected client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// readPump consumes playback acknowledgements, voice toggles and stop
// requests.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read ended.", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("Unparsable inbound message ignored.", zap.Error(err))
			continue
		}
		handler := h.inboundHandler()
		if handler == nil {
			continue
		}
		switch msg.Type {
		case "tts_done":
			handler.AckSpeech(msg.ID)
		case "tts_toggle":
			handler.SetVoice(msg.Enabled)
		case "stop":
			handler.Stop()
		default:
			h.logger.Debug("Unknown inbound message type.", zap.String("type", msg.Type))
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
