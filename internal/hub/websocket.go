// internal/hub/websocket.go
package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	webSocketReadDeadline = 60 * time.Second
	webSocketPingPeriod   = (webSocketReadDeadline * 9) / 10 // Must be less than readDeadline
	webSocketReadLimit    = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Duel clients are not browsers bound to one origin.
		return true
	},
}

// ServeWs upgrades the HTTP connection to a WebSocket and registers the client.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	if _, err := h.Connect(newWSConn(conn, h.opts.WriteTimeout)); err != nil {
		h.Logger.Warnf("WebSocket client %s rejected: %v", conn.RemoteAddr(), err)
	}
}

// wsConn carries duel records in WebSocket frames. Frames are fed to the
// framer like TCP chunks, so a record may still span frames.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	stop         chan struct{}
	once         sync.Once
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	c := &wsConn{conn: conn, writeTimeout: writeTimeout, stop: make(chan struct{})}
	conn.SetReadLimit(webSocketReadLimit)
	conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
		return nil
	})
	go c.keepalive()
	return c
}

func (c *wsConn) ReadChunk() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	return data, nil
}

func (c *wsConn) WriteRecord(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stop)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *wsConn) Transport() string  { return "websocket" }

// keepalive pings the peer. WriteControl may run concurrently with WriteMessage.
func (c *wsConn) keepalive() {
	ticker := time.NewTicker(webSocketPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return // Client connection is likely broken
			}
		}
	}
}
