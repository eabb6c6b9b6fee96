// internal/hub/session.go
// Runs one duel: multiplexes both clients, the login timer and shutdown into a single goroutine.
package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erilali/duelserver/internal/catalog"
	"github.com/erilali/duelserver/internal/combat"
	"github.com/erilali/duelserver/internal/duel"
	"github.com/erilali/duelserver/internal/logger"
	"github.com/erilali/duelserver/internal/protocol"
	"github.com/google/uuid"
)

// Reasons sent in SessionError records.
const (
	ReasonUnknownHero = "unknown hero"
	ReasonTimeout     = "peer login timed out"
	ReasonMalformed   = "malformed message"
	ReasonShutdown    = "server shutting down"
)

// endCause describes why a session stopped.
type endCause struct {
	err error
	// lost is the side whose connection failed, when hasLost is set.
	lost    duel.Side
	hasLost bool
}

type duelRun struct {
	hub     *Hub
	session *duel.Session
	clients [2]*Client
	info    SessionInfo
	log     *logger.Logger
}

func (h *Hub) startSession(ctx context.Context, a, b *Client) {
	id := uuid.NewString()
	run := &duelRun{
		hub:     h,
		session: duel.New(id, h.Catalog, combat.NewResolver(combat.Seed()), h.opts.Rules),
		clients: [2]*Client{a, b},
		log:     h.Logger.WithField("session", id),
	}
	run.info = SessionInfo{
		Snapshot:  run.session.Snapshot(),
		Clients:   [2]ClientInfo{a.info(), b.info()},
		StartedAt: time.Now(),
	}

	h.Mu.Lock()
	info := run.info
	h.sessions[id] = &info
	h.Mu.Unlock()

	run.log.Infof("Paired %s with %s", a.Conn.RemoteAddr(), b.Conn.RemoteAddr())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		run.run(ctx)
	}()
}

func (r *duelRun) run(ctx context.Context) {
	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	a, b := r.clients[duel.SideA], r.clients[duel.SideB]
	for {
		var cause *endCause
		select {
		case <-ctx.Done():
			cause = &endCause{err: ctx.Err()}
		case msg := <-a.Inbound:
			cause = r.handle(duel.SideA, msg)
		case msg := <-b.Inbound:
			cause = r.handle(duel.SideB, msg)
		case <-a.Done:
			cause = r.lost(duel.SideA)
		case <-b.Done:
			cause = r.lost(duel.SideB)
		case <-timeout:
			cause = &endCause{err: r.session.Expire()}
		}
		if cause != nil {
			r.finish(*cause)
			return
		}

		switch {
		case r.session.State() == duel.AwaitingLogins && r.session.LoginsReceived() > 0 && timer == nil:
			timer = time.NewTimer(r.hub.opts.LoginTimeout)
			timeout = timer.C
		case r.session.State() != duel.AwaitingLogins && timer != nil:
			timer.Stop()
			timer, timeout = nil, nil
		}
	}
}

// handle applies one inbound record. A non-nil result ends the session.
func (r *duelRun) handle(side duel.Side, msg protocol.Inbound) *endCause {
	out, err := r.session.Handle(side, msg)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownHero) {
			return &endCause{err: err}
		}
		r.log.WithField("side", side.String()).Warnf("Rejected %s: %v", msg.Op, err)
		return nil
	}

	for _, d := range out.Deliveries {
		if err := r.hub.Relay.Send(r.clients[d.To], d.Message); err != nil {
			return &endCause{err: err, lost: d.To, hasLost: true}
		}
	}

	if out.Started {
		detail := fmt.Sprintf("%s vs %s", r.session.Participant(duel.SideA).Hero.Name, r.session.Participant(duel.SideB).Hero.Name)
		r.log.LogEvent("info", "session_started", "", detail)
	}
	r.sync()
	if out.Started {
		r.hub.Events.SessionStarted(r.info)
	}
	if out.Combat != nil {
		r.hub.Events.Combat(r.info.ID, *out.Combat)
		if out.Combat.Died {
			r.log.LogEvent("info", "hero_died", out.Combat.DefenderHero, "")
		}
	}
	return nil
}

// lost handles a closed read pump. Records framed before the failure are still applied.
func (r *duelRun) lost(side duel.Side) *endCause {
	client := r.clients[side]
	for {
		select {
		case msg := <-client.Inbound:
			if cause := r.handle(side, msg); cause != nil {
				return cause
			}
		default:
			err := client.Err()
			if err == nil {
				err = ErrConnectionClosed
			}
			return &endCause{err: err, lost: side, hasLost: true}
		}
	}
}

func (r *duelRun) sync() {
	r.info.Snapshot = r.session.Snapshot()
	r.hub.updateSession(r.info)
}

// finish notifies the peers, closes both connections and archives the session.
func (r *duelRun) finish(cause endCause) {
	switch {
	case cause.hasLost && errors.Is(cause.err, protocol.ErrMalformedMessage):
		r.notify(cause.lost, protocol.SessionError(ReasonMalformed))
		r.notify(cause.lost.Other(), protocol.PeerLeft(r.heroName(cause.lost)))
	case cause.hasLost:
		r.notify(cause.lost.Other(), protocol.PeerLeft(r.heroName(cause.lost)))
	case errors.Is(cause.err, catalog.ErrUnknownHero):
		r.notifyBoth(protocol.SessionError(ReasonUnknownHero))
	case errors.Is(cause.err, duel.ErrPeerTimeout):
		r.notifyBoth(protocol.SessionError(ReasonTimeout))
	case errors.Is(cause.err, context.Canceled), errors.Is(cause.err, context.DeadlineExceeded):
		r.notifyBoth(protocol.SessionError(ReasonShutdown))
	}

	for _, c := range r.clients {
		c.Close()
	}

	now := time.Now()
	r.info.Snapshot = r.session.Snapshot()
	r.info.EndedAt = &now
	r.info.EndReason = r.reason(cause)
	r.hub.finishSession(r.info)
	r.hub.Events.SessionEnded(r.info)

	if cause.err != nil && !errors.Is(cause.err, ErrConnectionClosed) {
		r.log.Warnf("Session ended: %s", r.info.EndReason)
	} else {
		r.log.Infof("Session ended: %s", r.info.EndReason)
	}
}

func (r *duelRun) reason(cause endCause) string {
	var reason string
	switch {
	case cause.hasLost:
		reason = fmt.Sprintf("side %s disconnected: %v", cause.lost, cause.err)
	case cause.err != nil:
		reason = cause.err.Error()
	default:
		reason = "finished"
	}
	if w, ok := r.session.Winner(); ok {
		reason = fmt.Sprintf("%s won, %s", r.heroName(w), reason)
	}
	return reason
}

func (r *duelRun) heroName(side duel.Side) string {
	if name := r.session.Participant(side).Hero.Name; name != "" {
		return name
	}
	return r.session.Snapshot().Heroes[side].Claimed
}

// notify is best effort. The connection is about to close anyway.
func (r *duelRun) notify(side duel.Side, m protocol.Outbound) {
	if err := r.hub.Relay.Send(r.clients[side], m); err != nil {
		r.log.Debugf("Final notification to side %s failed: %v", side, err)
	}
}

func (r *duelRun) notifyBoth(m protocol.Outbound) {
	r.notify(duel.SideA, m)
	r.notify(duel.SideB, m)
}
