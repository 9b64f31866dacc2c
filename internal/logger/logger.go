package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// instanceID identifies this gateway process in logs, useful when several
// instances sit behind the same load balancer.
var instanceID string

func init() {
	instanceID = os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = os.Getenv("HOSTNAME")
	}
	if instanceID == "" {
		b := make([]byte, 4)
		_, _ = rand.Read(b)
		instanceID = hex.EncodeToString(b)
	}
}

// GetInstanceID returns the instance ID for this process.
func GetInstanceID() string {
	return instanceID
}

// Config holds logger construction options.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"
}

type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyOperation contextKey = "operation"
)

// Logger wraps *slog.Logger with request/component-scoped helpers.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from Config. JSON in production (structured log
// shipping), tint's colorized text handler everywhere else.
func New(config Config) *Logger {
	if config.Format == "json" {
		opts := &slog.HandlerOptions{
			Level:     config.Level,
			AddSource: true,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format(time.RFC3339))}
				}
				return a
			},
		}
		return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stdout, opts)).With(slog.String("instance_id", instanceID))}
	}

	opts := &tint.Options{Level: config.Level, AddSource: true, TimeFormat: time.Kitchen}
	return &Logger{Logger: slog.New(tint.NewHandler(os.Stdout, opts)).With(slog.String("instance_id", instanceID))}
}

// FromLevelString resolves a Config from the LOG_LEVEL env convention;
// APP_ENV=production always forces JSON output regardless of level.
func FromLevelString(logLevel string) Config {
	config := Config{Level: slog.LevelInfo, Format: "text"}

	switch logLevel {
	case "TRACE", "DEBUG":
		config.Level = slog.LevelDebug
	case "INFO":
		config.Level = slog.LevelInfo
	case "WARNING", "WARN":
		config.Level = slog.LevelWarn
	case "ERROR", "CRITICAL":
		config.Level = slog.LevelError
	}

	if os.Getenv("APP_ENV") == "production" {
		config.Format = "json"
	}

	return config
}

// WithContext attaches request-scoped attributes carried on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	if operation, ok := ctx.Value(ContextKeyOperation).(string); ok && operation != "" {
		logger = logger.With(slog.String("operation", operation))
	}

	return &Logger{Logger: logger}
}

// WithComponent tags subsequent log lines with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", component))}
}

// WithFields attaches arbitrary structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// LogError logs err alongside msg and any extra key/value args.
func (l *Logger) LogError(ctx context.Context, err error, msg string, args ...interface{}) {
	logger := l.WithContext(ctx)
	allArgs := append([]interface{}{"error", err}, args...)
	logger.Error(msg, allArgs...)
}

// WithRequestID returns a context carrying requestID for later WithContext calls.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
