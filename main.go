// main.go
// Application entry point: loads configuration, initializes logging and the hero catalog, and starts the duel server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erilali/duelserver/internal/api"
	"github.com/erilali/duelserver/internal/catalog"
	"github.com/erilali/duelserver/internal/config"
	"github.com/erilali/duelserver/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := config.LoadLoggerConfig(cfg.LoggerConfigPath)
	if err != nil {
		fmt.Printf("Error loading logger config: %v, using defaults\n", err)
	}
	logger.InitLogger(logConfig)
	serverLogger := logger.NewLogger("server")
	serverLogger.WithFields(map[string]interface{}{
		"level":       logConfig.Level,
		"log_to_file": logConfig.LogToFile,
		"log_to_json": logConfig.LogToJSON,
		"file_path":   logConfig.FilePath,
	}).Info("Logger configuration details")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		serverLogger.Fatalf("Error loading hero catalog: %v", err)
	}
	serverLogger.Infof("Loaded %d heroes: %v", cat.Len(), cat.Names())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.StartServer(ctx, cfg, serverLogger, cat); err != nil {
		serverLogger.Fatalf("Server error: %v", err)
	}
	serverLogger.Info("Server stopped")
}
