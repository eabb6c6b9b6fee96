// internal/hub/tcp.go
package hub

import (
	"context"
	"errors"
	"net"
	"time"
)

const maxAcceptBackoff = time.Second

// ServeTCP accepts duel clients on ln until ctx is cancelled or ln is closed.
func (h *Hub) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	defer ln.Close()
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	h.Logger.Infof("Accepting duel clients on %s", ln.Addr())
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			h.Logger.Errorf("Accept error: %v; retrying in %v", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		if _, err := h.Connect(NewTCPConn(conn, h.opts.WriteTimeout)); err != nil {
			return nil
		}
	}
}
