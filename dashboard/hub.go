// Package dashboard fans out confirmed alerts to connected WebSocket
// clients and exposes a REST query surface over the alert store.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/storage"
	"github.com/chochsentinel/sentinel/tools/log"
)

// replayLimit bounds how many recent alerts a newly connected client is
// replayed on connect, per the resolved "up to 50 most recent records" rule.
const replayLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// event is the envelope every socket message is wrapped in.
type event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// client is one connected dashboard socket, with a buffered outbound queue
// so a slow reader can't block Hub.Broadcast.
type client struct {
	conn *websocket.Conn
	send chan event
}

// Hub tracks connected dashboard clients and fans out alert events to all
// of them. It also serves as the source of the initial alerts_history
// replay, pulling recent records from store.
type Hub struct {
	store storage.AlertStore

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub returns a ready-to-use Hub backed by store.
func NewHub(store storage.AlertStore) *Hub {
	return &Hub{
		store:   store,
		clients: make(map[*client]bool),
	}
}

// Broadcast fans alert out to every connected client as an "alert" event.
func (h *Hub) Broadcast(alert *model.Alert) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	evt := event{Type: "alert", Data: alert}
	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
			log.Warn("dashboard: client send buffer full, dropping alert event")
		}
	}
}

// ClientCount reports how many dashboard sockets are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades r to a WebSocket connection, registers the client, and
// replays its recent alert history.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("dashboard: websocket upgrade: ", err)
		return
	}

	c := &client{conn: conn, send: make(chan event, 64)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	log.Infof("dashboard: client connected (%d total)", h.ClientCount())

	recent, err := h.store.Recent(replayLimit)
	if err != nil {
		log.Error("dashboard: loading replay history: ", err)
	}
	c.send <- event{Type: "alerts_history", Data: recent}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for evt := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(evt); err != nil {
			log.Warn("dashboard: write failed, dropping client: ", err)
			_ = c.conn.Close()
			return
		}
	}
}

// readPump drains and discards client messages (there is no client->server
// command protocol), detecting disconnects so the client can be unregistered.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
		log.Infof("dashboard: client disconnected (%d total)", len(h.clients))
	}
}

// marshalEvent exists only so tests can assert on the wire shape without
// going through a live socket.
func marshalEvent(evt event) ([]byte, error) {
	return json.Marshal(evt)
}
