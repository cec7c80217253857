package simulator

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/transport/socketio"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Hub is the Socket.IO side of the simulator. It broadcasts every event to
// all connected clients in emit order.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pingTimeout  time.Duration
	greeting     func() ([]byte, error)
	log          logrus.FieldLogger

	mu    sync.Mutex
	conns map[*hubConn]struct{}
}

type hubConn struct {
	ws   *websocket.Conn
	send chan []byte
	sid  string
}

func newHub(pingInterval, pingTimeout time.Duration, greeting func() ([]byte, error), log logrus.FieldLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		pingTimeout:  pingTimeout,
		greeting:     greeting,
		log:          log,
		conns:        make(map[*hubConn]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the Engine.IO handshake
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") != "websocket" {
		renderError(w, http.StatusBadRequest, "Only the websocket transport is supported")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &hubConn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		sid:  uuid.NewString(),
	}

	if err := h.handshake(c); err != nil {
		h.log.WithError(err).Debug("client handshake failed")
		_ = ws.Close()
		return
	}

	if err := h.register(c); err != nil {
		h.log.WithError(err).Error("failed to greet client")
		_ = ws.Close()
		return
	}

	h.log.WithField("sid", c.sid).Info("client connected")

	go h.writePump(c)
	h.readPump(c)

	h.log.WithField("sid", c.sid).Info("client disconnected")
}

func (h *Hub) handshake(c *hubConn) error {
	open, err := socketio.EncodeOpen(socketio.OpenPacket{
		SID:          c.sid,
		Upgrades:     []string{},
		PingInterval: int(h.pingInterval / time.Millisecond),
		PingTimeout:  int(h.pingTimeout / time.Millisecond),
	})
	if err != nil {
		return err
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, open); err != nil {
		return err
	}

	_ = c.ws.SetReadDeadline(time.Now().Add(h.pingTimeout))

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return err
	}

	if !strings.HasPrefix(string(data), "40") {
		return socketio.ErrHandshake
	}

	return c.ws.WriteMessage(websocket.TextMessage, socketio.EncodeConnect(c.sid))
}

// register queues the greeting before the connection can see any broadcast
func (h *Hub) register(c *hubConn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.greeting != nil {
		frame, err := h.greeting()
		if err != nil {
			return err
		}
		c.send <- frame
	}

	h.conns[c] = struct{}{}

	return nil
}

func (h *Hub) unregister(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
}

// Broadcast sends an event to every connected client. Clients that cannot
// keep up are dropped.
func (h *Hub) Broadcast(name string, payload any) {
	frame, err := socketio.EncodeEvent(name, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", name).Error("failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		select {
		case c.send <- frame:
		default:
			h.log.WithField("sid", c.sid).Warn("dropping slow client")
			delete(h.conns, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		delete(h.conns, c)
		close(c.send)
	}
}

func (h *Hub) readPump(c *hubConn) {
	defer h.unregister(c)

	deadline := h.pingInterval + h.pingTimeout

	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(deadline))

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		switch string(data) {
		case "41", "1":
			return
		}
	}
}

func (h *Hub) writePump(c *hubConn) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.ws.WriteMessage(websocket.TextMessage, []byte("41"))
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.ws.WriteMessage(websocket.TextMessage, socketio.PingFrame); err != nil {
				return
			}
		}
	}
}
