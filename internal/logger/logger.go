// internal/logger/logger.go
// Logging setup for the duel server: zerolog with a console or JSON sink and lumberjack file rotation.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds configuration for the logger
type LogConfig struct {
	Level      string // debug, info, warn, error, fatal
	LogToFile  bool
	LogToJSON  bool
	FilePath   string
	MaxSize    int  // megabytes
	MaxBackups int  // number of backups
	MaxAge     int  // days
	Compress   bool // compress old log files
}

// DefaultLogConfig returns a default logging configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogToFile:  true,
		LogToJSON:  true,
		FilePath:   "duelserver.log",
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

// InitLogger initializes the global zerolog logger with the given configuration
func InitLogger(config LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if !config.LogToJSON {
		writers = append(writers, consoleWriter(os.Stdout))
	} else {
		writers = append(writers, os.Stdout)
	}
	if config.LogToFile && config.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}

	var output io.Writer
	if len(writers) > 1 {
		output = io.MultiWriter(writers...)
	} else {
		output = writers[0]
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Duel context fields rendered as columns on the console instead of key=value pairs.
var contextParts = []string{"component", "session", "side"}

// sessionIDWidth is how much of a session ID the console shows.
const sessionIDWidth = 8

var levelColors = map[string]string{
	"DEBUG": "36",
	"INFO":  "32",
	"WARN":  "33",
	"ERROR": "31",
	"FATAL": "35",
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	parts := []string{zerolog.TimestampFieldName, zerolog.LevelFieldName}
	parts = append(parts, contextParts...)
	parts = append(parts, zerolog.MessageFieldName)

	return zerolog.ConsoleWriter{
		Out:           out,
		TimeFormat:    "15:04:05",
		PartsOrder:    parts,
		FieldsExclude: contextParts,
		FormatLevel: func(i interface{}) string {
			level := strings.ToUpper(fmt.Sprintf("%s", i))
			color, ok := levelColors[level]
			if !ok {
				color = "37"
			}
			return "\033[" + color + "m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
		},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("\033[90m%s\033[0m", i)
		},
		FormatPartValueByName: formatContextPart,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("\033[1m%s\033[0m", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[34m%s\033[0m: ", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("\033[37m%s\033[0m", i)
		},
		FormatErrFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[31m%s\033[0m: ", i)
		},
		FormatErrFieldValue: func(i interface{}) string {
			return fmt.Sprintf("\033[31m%s\033[0m", i)
		},
	}
}

// formatContextPart renders one duel context column. Absent fields print nothing.
func formatContextPart(i interface{}, name string) string {
	v, ok := i.(string)
	if !ok || v == "" {
		return ""
	}
	switch name {
	case "session":
		if len(v) > sessionIDWidth {
			v = v[:sessionIDWidth]
		}
		return fmt.Sprintf("\033[93m#%s\033[0m", v)
	case "side":
		return fmt.Sprintf("\033[95m(%s)\033[0m", v)
	default:
		return fmt.Sprintf("\033[37m%s\033[0m", v)
	}
}

// Logger is a wrapper around zerolog.Logger that carries a component and extra fields
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new logger with the given component name
func NewLogger(component string) *Logger {
	return &Logger{
		logger: log.With().Str("component", component).Logger(),
	}
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{
		logger: ctx.Logger(),
	}
}

func (l *Logger) Debug(msg string)                       { l.logger.Debug().Msg(msg) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l *Logger) Info(msg string)                        { l.logger.Info().Msg(msg) }
func (l *Logger) Infof(format string, v ...interface{})  { l.logger.Info().Msgf(format, v...) }
func (l *Logger) Warn(msg string)                        { l.logger.Warn().Msg(msg) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l *Logger) Error(msg string)                       { l.logger.Error().Msg(msg) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
func (l *Logger) Fatal(msg string)                       { l.logger.Fatal().Msg(msg) }
func (l *Logger) Fatalf(format string, v ...interface{}) { l.logger.Fatal().Msgf(format, v...) }

// LogEvent logs a duel lifecycle event. Routine events get a short colored
// message, anything else is logged with full context.
func (l *Logger) LogEvent(level string, event string, client string, detail string) {
	var message string

	switch event {
	case "client_connected":
		message = "Client connected"
		if client != "" {
			message = fmt.Sprintf("\033[96m%s\033[0m connected", client)
		}

	case "client_disconnected":
		message = "Client disconnected"
		if client != "" {
			message = fmt.Sprintf("\033[96m%s\033[0m disconnected", client)
		}

	case "session_started":
		message = "Duel started"
		if detail != "" {
			message = fmt.Sprintf("Duel started: \033[93m%s\033[0m", detail)
		}

	case "hero_died":
		message = "Hero died"
		if client != "" {
			message = fmt.Sprintf("\033[95m%s\033[0m died", client)
		}

	case "read_error":
		evt := l.logger.With().Str("event", event)
		if client != "" {
			evt = evt.Str("client", client)
		}
		message = "ERROR: Read error occurred"
		if detail != "" {
			evt = evt.Str("detail", detail)
			message = fmt.Sprintf("ERROR: \033[31m%s\033[0m", detail)
		}
		logger := evt.Logger()
		logger.Error().Msg(message)
		return

	default:
		evt := l.logger.With().Str("event", event)
		if client != "" {
			evt = evt.Str("client", client)
		}
		message = strings.ReplaceAll(event, "_", " ")
		if detail != "" {
			evt = evt.Str("detail", detail)
			message = fmt.Sprintf("%s: %s", message, detail)
		}
		logger := evt.Logger()
		logAt(&logger, level, message)
		return
	}

	logAt(&l.logger, level, message)
}

func logAt(logger *zerolog.Logger, level string, message string) {
	switch level {
	case "debug":
		logger.Debug().Msg(message)
	case "warn":
		logger.Warn().Msg(message)
	case "error":
		logger.Error().Msg(message)
	case "fatal":
		logger.Fatal().Msg(message)
	default:
		logger.Info().Msg(message)
	}
}
