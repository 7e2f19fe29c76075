package observability

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format specifies output format: "json" or "text"
	Format string

	// Output is the writer for log output (defaults to os.Stdout)
	Output io.Writer

	// AddSource includes file and line number in log records
	AddSource bool
}

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token_secret":  true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
}

// urlKeys are attribute keys holding connection strings that may embed
// credentials.
var urlKeys = map[string]bool{
	"dsn":          true,
	"url":          true,
	"database_url": true,
	"redis_url":    true,
}

// keyValuePassword matches password=... pairs in libpq-style DSNs.
var keyValuePassword = regexp.MustCompile(`(?i)(password)=([^\s]+)`)

// NewLogger builds a slog logger from config.
//
// If config.Output is nil, logs are written to os.Stdout.
// If config.Level is empty or invalid, defaults to "info".
// If config.Format is empty, defaults to "json".
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Format == "" {
		config.Format = "json"
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(config.Level),
		AddSource:   config.AddSource,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactAttr(_ []string, attr slog.Attr) slog.Attr {
	key := strings.ToLower(strings.ReplaceAll(attr.Key, "-", "_"))
	if sensitiveKeys[key] {
		return slog.String(attr.Key, "[REDACTED]")
	}
	if urlKeys[key] && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, RedactURL(attr.Value.String()))
	}
	return attr
}

// RedactURL masks the password of a connection URL or key/value DSN.
func RedactURL(raw string) string {
	if raw == "" {
		return raw
	}
	if parsed, err := url.Parse(raw); err == nil && parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), "REDACTED")
			return parsed.String()
		}
		return raw
	}
	return keyValuePassword.ReplaceAllString(raw, "$1=[REDACTED]")
}
