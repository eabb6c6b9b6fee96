// internal/hub/hub.go
// Pairs connected clients into duels and keeps a registry of running and finished sessions.
package hub

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erilali/duelserver/internal/catalog"
	"github.com/erilali/duelserver/internal/duel"
	"github.com/erilali/duelserver/internal/logger"
	"github.com/erilali/duelserver/internal/protocol"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultLoginTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultResultTTL    = 30 * time.Minute
)

// Options configures the hub. Zero values fall back to the defaults.
type Options struct {
	LoginTimeout time.Duration
	WriteTimeout time.Duration
	Policy       protocol.MalformedPolicy
	MaxBuffer    int
	ResultTTL    time.Duration
	Rules        duel.Options
}

func (o Options) withDefaults() Options {
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = DefaultLoginTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Policy == "" {
		o.Policy = protocol.PolicyFail
	}
	if o.MaxBuffer <= 0 {
		o.MaxBuffer = protocol.DefaultMaxBuffer
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = DefaultResultTTL
	}
	return o
}

// ClientInfo identifies one connection of a session.
type ClientInfo struct {
	ID        string `json:"id"`
	Remote    string `json:"remote"`
	Transport string `json:"transport"`
}

// SessionInfo is the registry entry of a duel.
type SessionInfo struct {
	duel.Snapshot
	Clients   [2]ClientInfo `json:"clients"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	EndReason string        `json:"end_reason,omitempty"`
}

// Hub represents the acceptor that pairs clients and owns the session registry
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Mu         sync.Mutex

	Catalog   *catalog.Catalog
	Events    *Events
	Relay     *Relay
	StartTime time.Time
	Logger    *logger.Logger

	opts     Options
	waiting  *Client
	sessions map[string]*SessionInfo
	results  *cache.Cache
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewHub creates a hub. events may be nil to run without publishing.
func NewHub(cat *catalog.Catalog, events *Events, logger *logger.Logger, opts Options) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Catalog:    cat,
		Events:     events,
		Relay:      NewRelay(logger),
		StartTime:  time.Now(),
		Logger:     logger,
		opts:       opts,
		sessions:   make(map[string]*SessionInfo),
		results:    cache.New(opts.ResultTTL, opts.ResultTTL/2),
		done:       make(chan struct{}),
	}
}

// Run starts the main event loop for the Hub.
// Clients are paired in arrival order. Returns after ctx is cancelled and
// every running session has finished.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		if h.waiting != nil {
			h.waiting.Close()
			h.setWaiting(nil)
		}
		close(h.done)
		h.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			h.Logger.Info("Hub shutting down")
			return

		case client := <-h.Register:
			if h.waiting != nil && isDone(h.waiting) {
				h.setWaiting(nil)
			}
			if h.waiting == nil {
				h.setWaiting(client)
				h.Logger.Debugf("Client %s waiting for a peer", client.Conn.RemoteAddr())
				continue
			}
			a := h.waiting
			h.setWaiting(nil)
			h.startSession(ctx, a, client)

		case client := <-h.Unregister:
			if h.waiting == client {
				h.setWaiting(nil)
				client.Close()
			}
			h.Logger.LogEvent("info", "client_disconnected", client.Conn.RemoteAddr(), "")
		}
	}
}

// Connect registers a connection with the hub and starts its read pump.
func (h *Hub) Connect(conn Conn) (*Client, error) {
	client := newClient(conn)
	select {
	case h.Register <- client:
	case <-h.done:
		conn.Close()
		return nil, ErrConnectionClosed
	}
	h.Logger.LogEvent("info", "client_connected", conn.RemoteAddr(), conn.Transport())
	go h.ReadPump(client)
	return client, nil
}

func (h *Hub) setWaiting(c *Client) {
	h.Mu.Lock()
	h.waiting = c
	h.Mu.Unlock()
}

// Waiting reports whether a client is waiting for a peer.
func (h *Hub) Waiting() bool {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return h.waiting != nil
}

// Sessions lists the running sessions, oldest first.
func (h *Hub) Sessions() []SessionInfo {
	h.Mu.Lock()
	list := make([]SessionInfo, 0, len(h.sessions))
	for _, info := range h.sessions {
		list = append(list, *info)
	}
	h.Mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// Session returns a running or recently finished session.
func (h *Hub) Session(id string) (SessionInfo, bool) {
	h.Mu.Lock()
	info, ok := h.sessions[id]
	h.Mu.Unlock()
	if ok {
		return *info, true
	}
	if v, found := h.results.Get(id); found {
		return v.(SessionInfo), true
	}
	return SessionInfo{}, false
}

func (h *Hub) updateSession(info SessionInfo) {
	h.Mu.Lock()
	if _, ok := h.sessions[info.ID]; ok {
		h.sessions[info.ID] = &info
	}
	h.Mu.Unlock()
}

func (h *Hub) finishSession(info SessionInfo) {
	h.Mu.Lock()
	delete(h.sessions, info.ID)
	h.Mu.Unlock()
	h.results.SetDefault(info.ID, info)
}

func isDone(c *Client) bool {
	select {
	case <-c.Done:
		return true
	default:
		return false
	}
}
