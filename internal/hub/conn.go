// internal/hub/conn.go
package hub

import (
	"net"
	"time"
)

// tcpReadSize matches the read size duel clients use.
const tcpReadSize = 4096

// Conn abstracts a duel connection so TCP and WebSocket clients share the
// same framing and session logic.
type Conn interface {
	// ReadChunk returns the next bytes from the peer. The slice is only valid
	// until the next call. Data and an error may be returned together.
	ReadChunk() ([]byte, error)
	// WriteRecord writes one encoded record.
	WriteRecord(data []byte) error
	Close() error
	RemoteAddr() string
	Transport() string
}

type tcpConn struct {
	conn         net.Conn
	buf          []byte
	writeTimeout time.Duration
}

// NewTCPConn wraps a raw TCP connection. Writes fail after writeTimeout.
func NewTCPConn(conn net.Conn, writeTimeout time.Duration) Conn {
	return &tcpConn{
		conn:         conn,
		buf:          make([]byte, tcpReadSize),
		writeTimeout: writeTimeout,
	}
}

func (c *tcpConn) ReadChunk() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	return c.buf[:n], err
}

func (c *tcpConn) WriteRecord(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(data)
	return err
}

func (c *tcpConn) Close() error       { return c.conn.Close() }
func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *tcpConn) Transport() string  { return "tcp" }
