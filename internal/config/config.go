// internal/config/config.go
// Runtime configuration: server settings from the environment, logger settings from a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/erilali/duelserver/internal/logger"
	"github.com/erilali/duelserver/internal/protocol"
)

// Config holds the duel server settings.
type Config struct {
	TCPAddr          string        `env:"DUEL_TCP_ADDR" envDefault:"127.0.0.1:1212"`
	HTTPAddr         string        `env:"DUEL_HTTP_ADDR" envDefault:":8080"`
	NatsURL          string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	CatalogPath      string        `env:"DUEL_CATALOG_PATH"`
	LoggerConfigPath string        `env:"DUEL_LOGGER_CONFIG" envDefault:"logger_config.json"`
	LoginTimeout     time.Duration `env:"DUEL_LOGIN_TIMEOUT" envDefault:"5s"`
	WriteTimeout     time.Duration `env:"DUEL_WRITE_TIMEOUT" envDefault:"10s"`
	MalformedPolicy  string        `env:"DUEL_MALFORMED_POLICY" envDefault:"fail"`
	MaxBuffer        int           `env:"DUEL_MAX_BUFFER" envDefault:"65536"`
	ResultTTL        time.Duration `env:"DUEL_RESULT_TTL" envDefault:"30m"`
	// AllowPlayAfterDeath keeps the old behaviour of accepting moves and attacks after a hero died.
	AllowPlayAfterDeath bool `env:"DUEL_ALLOW_PLAY_AFTER_DEATH" envDefault:"false"`
}

// ErrInvalidConfig marks a configuration that parsed but cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Load parses the environment into a validated Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations env cannot express.
func (c Config) Validate() error {
	if c.TCPAddr == "" {
		return fmt.Errorf("%w: DUEL_TCP_ADDR is empty", ErrInvalidConfig)
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("%w: DUEL_LOGIN_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: DUEL_WRITE_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.MaxBuffer <= 0 {
		return fmt.Errorf("%w: DUEL_MAX_BUFFER must be positive", ErrInvalidConfig)
	}
	if _, err := protocol.ParseMalformedPolicy(c.MalformedPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Policy returns the parsed malformed input policy.
func (c Config) Policy() protocol.MalformedPolicy {
	p, err := protocol.ParseMalformedPolicy(c.MalformedPolicy)
	if err != nil {
		return protocol.PolicyFail
	}
	return p
}

// LoadLoggerConfig loads the logger configuration from a JSON file.
// A missing file yields the defaults.
func LoadLoggerConfig(filePath string) (logger.LogConfig, error) {
	config := logger.DefaultLogConfig()
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return config, err
	}
	return config, nil
}
