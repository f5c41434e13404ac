package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"habitat/internal/log"
	"habitat/internal/metrics"
	"habitat/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
	maxMessage = 64 * 1024
)

// Message is what the server writes to a client: a frame, or the reply to a
// command the client sent.
type Message struct {
	Type   string       `json:"type"`
	Frame  *model.Frame `json:"frame,omitempty"`
	Op     string       `json:"op,omitempty"`
	Result interface{}  `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Hub fans frames out to every connected client. Broadcast never blocks: a
// client that cannot keep up loses frames, and later frames supersede them.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *log.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: logger, metrics: m}
}

// Broadcast sends f to every client.
func (h *Hub) Broadcast(f model.Frame) {
	data, err := json.Marshal(Message{Type: "frame", Frame: &f})
	if err != nil {
		h.logger.Error(context.Background(), "Failed to encode frame", log.Fields{"error": err})
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.StreamClients(1)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.StreamClients(-1)
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	gone chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{}), gone: make(chan struct{})}
}

// reply queues a message for this client only. It waits for room, since
// replies must not be dropped.
func (c *client) reply(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	case <-c.gone:
		return websocket.ErrCloseSent
	}
}

// writer owns all writes to the connection. It closes the connection when
// it exits, which also ends the reader.
func (c *client) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.gone)
	}()
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
