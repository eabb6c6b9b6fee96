// internal/hub/client.go
package hub

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erilali/duelserver/internal/protocol"
	"github.com/google/uuid"
)

// ErrConnectionClosed means a peer disconnected or its connection failed.
var ErrConnectionClosed = errors.New("connection closed")

// inboundBuffer is how many decoded records may wait for the session loop.
const inboundBuffer = 64

// Client represents a connected duel peer.
type Client struct {
	ID        string
	Conn      Conn
	Inbound   chan protocol.Inbound
	Done      chan struct{}
	Connected time.Time

	err       error
	quit      chan struct{}
	closeOnce sync.Once
}

func newClient(conn Conn) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Conn:      conn,
		Inbound:   make(chan protocol.Inbound, inboundBuffer),
		Done:      make(chan struct{}),
		Connected: time.Now(),
		quit:      make(chan struct{}),
	}
}

// Err reports why the read pump stopped. Only valid once Done is closed.
func (c *Client) Err() error {
	return c.err
}

// Close releases the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.Conn.Close()
	})
}

func (c *Client) info() ClientInfo {
	return ClientInfo{ID: c.ID, Remote: c.Conn.RemoteAddr(), Transport: c.Conn.Transport()}
}

// ReadPump reads from the connection, frames records and hands them to the session loop.
// It is the only owner of the client's Framer.
func (h *Hub) ReadPump(client *Client) {
	defer func() {
		close(client.Done)
		select {
		case h.Unregister <- client:
		case <-h.done:
		}
	}()

	framer := protocol.NewFramer(h.opts.Policy, h.opts.MaxBuffer)
	for {
		chunk, readErr := client.Conn.ReadChunk()
		discarded := framer.Discarded()
		msgs, err := framer.Feed(chunk)
		if n := framer.Discarded() - discarded; n > 0 {
			h.Logger.Warnf("Discarded %d malformed bytes from %s", n, client.Conn.RemoteAddr())
		}

		for _, msg := range msgs {
			select {
			case client.Inbound <- msg:
			case <-client.quit:
				client.err = ErrConnectionClosed
				return
			}
		}

		if err != nil {
			h.Logger.LogEvent("error", "read_error", client.Conn.RemoteAddr(), err.Error())
			client.err = err
			return
		}
		if readErr != nil {
			client.err = fmt.Errorf("%w: %v", ErrConnectionClosed, readErr)
			return
		}
	}
}
