// internal/hub/nats.go
package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erilali/duelserver/internal/duel"
	"github.com/erilali/duelserver/internal/logger"
	"github.com/nats-io/nats.go"
)

const (
	// StreamName is the JetStream stream holding duel events.
	StreamName = "DUELS"
	// StreamSubjects covers every duel event subject.
	StreamSubjects = "duels.>"
)

// EventSubject returns the subject of one event kind for a session.
func EventSubject(kind, sessionID string) string {
	return fmt.Sprintf("duels.%s.%s", kind, sessionID)
}

// SessionFilter matches every event of a session.
func SessionFilter(sessionID string) string {
	return "duels.*." + sessionID
}

// Events publishes duel lifecycle events to JetStream. A nil *Events or a
// nil JetStream context publishes nothing.
type Events struct {
	Js     nats.JetStreamContext
	Logger *logger.Logger
}

// NewEvents returns a publisher, or nil when js is nil.
func NewEvents(js nats.JetStreamContext, logger *logger.Logger) *Events {
	if js == nil {
		return nil
	}
	return &Events{Js: js, Logger: logger}
}

// SessionStarted publishes the started event once both heroes are bound.
func (e *Events) SessionStarted(info SessionInfo) {
	e.publish(EventSubject("started", info.ID), map[string]interface{}{
		"session_id": info.ID,
		"status":     "started",
		"hero_a":     info.Heroes[duel.SideA].Hero,
		"hero_b":     info.Heroes[duel.SideB].Hero,
		"clients":    info.Clients,
		"timestamp":  time.Now().Unix(),
	})
}

// Combat publishes one resolved attack.
func (e *Events) Combat(sessionID string, res duel.CombatResult) {
	e.publish(EventSubject("combat", sessionID), map[string]interface{}{
		"session_id":      sessionID,
		"attacker":        res.AttackerHero,
		"defender":        res.DefenderHero,
		"skill":           res.SkillIndex,
		"damage":          res.Damage,
		"defender_health": res.DefenderHealth,
		"died":            res.Died,
		"timestamp":       time.Now().Unix(),
	})
}

// SessionEnded publishes the final summary.
func (e *Events) SessionEnded(info SessionInfo) {
	e.publish(EventSubject("ended", info.ID), map[string]interface{}{
		"session_id": info.ID,
		"status":     "ended",
		"reason":     info.EndReason,
		"winner":     info.Winner,
		"timestamp":  time.Now().Unix(),
	})
}

// publish is asynchronous so a slow JetStream never stalls a session loop.
func (e *Events) publish(subject string, payload map[string]interface{}) {
	if e == nil || e.Js == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.Logger.Errorf("Failed to marshal %s event: %v", subject, err)
		return
	}
	if _, err := e.Js.PublishAsync(subject, data); err != nil {
		e.Logger.Errorf("Failed to publish %s to NATS: %v", subject, err)
	}
}
