// internal/hub/messaging.go
package hub

import (
	"fmt"

	"github.com/erilali/duelserver/internal/logger"
	"github.com/erilali/duelserver/internal/protocol"
)

// Relay writes outbound records to clients.
type Relay struct {
	Logger *logger.Logger
}

// NewRelay creates a relay.
func NewRelay(logger *logger.Logger) *Relay {
	return &Relay{Logger: logger}
}

// Send encodes m and writes it to the client as a single record.
// The connection's write deadline bounds the call.
func (r *Relay) Send(client *Client, m protocol.Outbound) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode %s record: %w", m.Type, err)
	}
	if err := client.Conn.WriteRecord(data); err != nil {
		return fmt.Errorf("%w: write to %s: %v", ErrConnectionClosed, client.Conn.RemoteAddr(), err)
	}
	r.Logger.Debugf("Sent %s record to %s", m.Type, client.Conn.RemoteAddr())
	return nil
}
