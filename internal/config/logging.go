package config

import (
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Attribute keys whose values never reach a log sink.
var secretKeys = map[string]struct{}{
	"app_secret":   {},
	"verify_token": {},
	"api_key":      {},
	"password":     {},
	"signature":    {},
}

// Attribute keys carrying a sender identity (a phone number on the chat transport).
var identityKeys = map[string]struct{}{
	"conversation": {},
	"identity":     {},
}

// SetupLogger creates a dual-output logger: text to stderr, JSON to logFile.
// An empty logFile, or one that cannot be opened, leaves stderr only.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	if logFile == "" {
		return slog.New(textHandler(os.Stderr, level)), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(textHandler(os.Stderr, level))
		logger.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	return SetupLoggerWithWriters(os.Stderr, file, level), file.Close
}

// SetupLoggerWithWriters fans out to a text writer and a JSON writer.
func SetupLoggerWithWriters(text, jsonOut io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		textHandler(text, level),
		slog.NewJSONHandler(jsonOut, handlerOptions(level)),
	))
}

func textHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, handlerOptions(level))
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: scrubAttr}
}

// scrubAttr hides secrets and masks sender identities down to their last four characters.
func scrubAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if _, ok := secretKeys[key]; ok {
		return slog.String(a.Key, "[redacted]")
	}
	if _, ok := identityKeys[key]; ok {
		if s, ok := stringValue(a.Value); ok {
			return slog.String(a.Key, MaskIdentity(s))
		}
	}
	return a
}

// stringValue unwraps string values, including named string types such as
// models.ConversationID that slog stores as KindAny.
func stringValue(v slog.Value) (string, bool) {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String(), true
	case slog.KindAny:
		rv := reflect.ValueOf(v.Any())
		if rv.Kind() == reflect.String {
			return rv.String(), true
		}
	}
	return "", false
}

// MaskIdentity keeps a leading "+" and the last four characters of id.
func MaskIdentity(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return id
	}
	prefix := ""
	if r[0] == '+' {
		prefix = "+"
		r = r[1:]
	}
	if len(r) <= 4 {
		return id
	}
	return prefix + strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
