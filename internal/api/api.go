// internal/api/api.go
// Starts the duel listeners and the HTTP API, and wires NATS JetStream when it is reachable.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/erilali/duelserver/internal/catalog"
	"github.com/erilali/duelserver/internal/config"
	"github.com/erilali/duelserver/internal/duel"
	"github.com/erilali/duelserver/internal/hub"
	"github.com/erilali/duelserver/internal/logger"
	"github.com/nats-io/nats.go"
)

const (
	jetstreamRetention = 24 * time.Hour
	readHeaderTimeout  = 10 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// StartServer runs the TCP acceptor, the hub and the HTTP server until ctx is
// cancelled or a listener fails.
func StartServer(ctx context.Context, cfg config.Config, serverLogger *logger.Logger, cat *catalog.Catalog) error {
	nc, js := connectNATS(cfg.NatsURL, serverLogger)
	if nc != nil {
		defer func() {
			if err := nc.Drain(); err != nil {
				serverLogger.Warnf("Error draining NATS connection: %v", err)
			}
		}()
	}

	h := hub.NewHub(cat, hub.NewEvents(js, logger.NewLogger("events")), logger.NewLogger("hub"), hub.Options{
		LoginTimeout: cfg.LoginTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Policy:       cfg.Policy(),
		MaxBuffer:    cfg.MaxBuffer,
		ResultTTL:    cfg.ResultTTL,
		Rules:        duel.Options{AllowPlayAfterDeath: cfg.AllowPlayAfterDeath},
	})

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", cfg.TCPAddr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()
	tcpDone := make(chan error, 1)
	go func() {
		tcpDone <- h.ServeTCP(ctx, ln)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(h, nc, js, serverLogger),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	httpDone := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpDone <- err
		}
		close(httpDone)
	}()
	serverLogger.Infof("Server started at %s", cfg.HTTPAddr)

	var runErr error
	select {
	case <-ctx.Done():
		serverLogger.Info("Shutting down")
	case err := <-httpDone:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serverLogger.Warnf("HTTP shutdown: %v", err)
	}
	cancel()
	<-tcpDone
	<-hubDone
	return runErr
}

// connectNATS returns nil values when NATS or JetStream is unavailable.
func connectNATS(url string, serverLogger *logger.Logger) (*nats.Conn, nats.JetStreamContext) {
	if url == "" {
		url = nats.DefaultURL
	}

	serverLogger.Infof("Connecting to NATS at %s", url)
	nc, err := nats.Connect(url, nats.Name("duelserver"))
	if err != nil {
		serverLogger.Errorf("Error connecting to NATS: %v", err)
		serverLogger.Warn("Running without NATS connection. Duel events will not be published.")
		return nil, nil
	}
	serverLogger.Info("Successfully connected to NATS")

	js, err := nc.JetStream()
	if err != nil {
		serverLogger.Errorf("Error getting JetStream context: %v", err)
		serverLogger.Warn("Running without JetStream. Duel events will not be published.")
		return nc, nil
	}
	serverLogger.Info("Successfully connected to JetStream")
	ensureStream(js, serverLogger)
	return nc, js
}

func ensureStream(js nats.JetStreamContext, serverLogger *logger.Logger) {
	streamConfig := &nats.StreamConfig{
		Name:     hub.StreamName,
		Subjects: []string{hub.StreamSubjects},
		Storage:  nats.FileStorage,
		MaxAge:   jetstreamRetention,
	}
	if _, err := js.StreamInfo(streamConfig.Name); err != nil {
		if _, err := js.AddStream(streamConfig); err != nil {
			serverLogger.Errorf("Error creating stream %s: %v", streamConfig.Name, err)
			return
		}
		serverLogger.Infof("Created stream: %s", streamConfig.Name)
		return
	}
	if _, err := js.UpdateStream(streamConfig); err != nil {
		serverLogger.Errorf("Error updating stream %s: %v", streamConfig.Name, err)
		return
	}
	serverLogger.Infof("Updated stream: %s", streamConfig.Name)
}
