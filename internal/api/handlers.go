// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/erilali/duelserver/internal/hub"
	"github.com/erilali/duelserver/internal/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	version                 = "1.0.0"
	apiConsumerPrefix       = "API_EVENTS_"
	apiConsumerMaxDeliver   = 1
	apiConsumerFetchMax     = 100
	apiConsumerFetchMaxWait = 2 * time.Second
)

type handler struct {
	hub    *hub.Hub
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logger.Logger
}

// NewHandler returns the HTTP API. nc and js may be nil.
func NewHandler(h *hub.Hub, nc *nats.Conn, js nats.JetStreamContext, serverLogger *logger.Logger) http.Handler {
	api := &handler{hub: h, nc: nc, js: js, logger: serverLogger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.ServeWs)
	mux.HandleFunc("GET /health", api.health)
	mux.HandleFunc("GET /api/heroes", api.heroes)
	mux.HandleFunc("GET /api/sessions", api.sessions)
	mux.HandleFunc("GET /api/sessions/{id}", api.session)
	mux.HandleFunc("GET /api/sessions/{id}/events", api.sessionEvents)
	return mux
}

func (a *handler) health(w http.ResponseWriter, r *http.Request) {
	natsStatus := "disconnected"
	if a.nc != nil && a.nc.Status() == nats.CONNECTED {
		natsStatus = "connected"
	}
	health := map[string]interface{}{
		"status":   "ok",
		"nats":     natsStatus,
		"version":  version,
		"uptime":   time.Since(a.hub.StartTime).Round(time.Second).String(),
		"sessions": len(a.hub.Sessions()),
		"waiting":  a.hub.Waiting(),
		"heroes":   a.hub.Catalog.Len(),
	}
	if a.js != nil {
		streamInfo := make(map[string]interface{})
		info, err := a.js.StreamInfo(hub.StreamName)
		if err == nil {
			streamInfo[hub.StreamName] = map[string]interface{}{
				"messages":  info.State.Msgs,
				"bytes":     info.State.Bytes,
				"subjects":  info.Config.Subjects,
				"retention": fmt.Sprintf("%v", info.Config.MaxAge),
			}
		} else {
			streamInfo[hub.StreamName] = map[string]interface{}{
				"error": err.Error(),
			}
		}
		health["jetstream"] = map[string]interface{}{"streams": streamInfo}
	}
	writeJSON(w, http.StatusOK, health)
}

func (a *handler) heroes(w http.ResponseWriter, r *http.Request) {
	heroes := a.hub.Catalog.Heroes()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"heroes": heroes,
		"count":  len(heroes),
	})
}

func (a *handler) sessions(w http.ResponseWriter, r *http.Request) {
	list := a.hub.Sessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": list,
		"count":    len(list),
	})
}

func (a *handler) session(w http.ResponseWriter, r *http.Request) {
	info, ok := a.hub.Session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// sessionEvents reads a session's events through an ephemeral pull consumer.
func (a *handler) sessionEvents(w http.ResponseWriter, r *http.Request) {
	if a.js == nil {
		writeError(w, http.StatusServiceUnavailable, "JetStream not available")
		return
	}
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	subject := hub.SessionFilter(id)
	consumerName := fmt.Sprintf("%s%s_%d", apiConsumerPrefix, strings.ReplaceAll(id, "-", ""), time.Now().UnixNano())
	_, err := a.js.AddConsumer(hub.StreamName, &nats.ConsumerConfig{
		Name:          consumerName,
		DeliverPolicy: nats.DeliverAllPolicy,
		AckPolicy:     nats.AckExplicitPolicy,
		FilterSubject: subject,
		MaxDeliver:    apiConsumerMaxDeliver,
	})
	if err != nil {
		a.logger.Errorf("Error creating consumer %s for subject %s: %v", consumerName, subject, err)
		writeError(w, http.StatusInternalServerError, "error retrieving events")
		return
	}
	sub, err := a.js.PullSubscribe(subject, consumerName, nats.Bind(hub.StreamName, consumerName))
	if err != nil {
		a.logger.Errorf("Error subscribing with consumer %s to subject %s: %v", consumerName, subject, err)
		a.js.DeleteConsumer(hub.StreamName, consumerName)
		writeError(w, http.StatusInternalServerError, "error retrieving events")
		return
	}
	defer func() {
		if unsubErr := sub.Unsubscribe(); unsubErr != nil {
			a.logger.Errorf("Error unsubscribing consumer %s: %v", consumerName, unsubErr)
		}
		if delErr := a.js.DeleteConsumer(hub.StreamName, consumerName); delErr != nil && !errors.Is(delErr, nats.ErrConsumerNotFound) {
			a.logger.Errorf("Error deleting consumer %s: %v", consumerName, delErr)
		}
	}()

	msgs, err := sub.Fetch(apiConsumerFetchMax, nats.MaxWait(apiConsumerFetchMaxWait))
	if err != nil && !errors.Is(err, nats.ErrTimeout) {
		a.logger.Errorf("Error fetching events with consumer %s: %v", consumerName, err)
		writeError(w, http.StatusInternalServerError, "error retrieving events")
		return
	}
	events := make([]map[string]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		var event map[string]interface{}
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			a.logger.Errorf("Error unmarshaling event: %v", err)
			continue
		}
		event["subject"] = msg.Subject
		events = append(events, event)
		msg.Ack()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"events":     events,
		"count":      len(events),
		"timestamp":  time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
