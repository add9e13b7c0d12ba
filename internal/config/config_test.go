package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, DedupMemory, cfg.DedupBackend)
	assert.Equal(t, time.Hour, cfg.DedupTTL)
	assert.Equal(t, 10, cfg.ResearchConcurrency)
	assert.Equal(t, 4, cfg.ChitchatMaxWords)
	assert.Equal(t, 5, cfg.ShortReplyMaxWords)
	assert.Equal(t, 6, cfg.SubstantiveMinWords)
	assert.InDelta(t, 0.2, cfg.ScriptThreshold, 1e-9)
	assert.Equal(t, 8*time.Second, cfg.ClassifyTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEGALCHAT_LLM_PROVIDER", "Gemini")
	t.Setenv("LEGALCHAT_STORE", "SurrealDB")
	t.Setenv("LEGALCHAT_CLASSIFY_TIMEOUT", "3s")
	t.Setenv("LEGALCHAT_RESEARCH_CONCURRENCY", "4")
	t.Setenv("LEGALCHAT_SCRIPT_THRESHOLD", "0.35")
	t.Setenv("LEGALCHAT_LOG_LEVEL", "warning")

	cfg := Load()
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, StoreSurrealDB, cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.ClassifyTimeout)
	assert.Equal(t, 4, cfg.ResearchConcurrency)
	assert.InDelta(t, 0.35, cfg.ScriptThreshold, 1e-9)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LEGALCHAT_CLASSIFY_TIMEOUT", "soon")
	t.Setenv("LEGALCHAT_RESEARCH_CONCURRENCY", "many")
	t.Setenv("LEGALCHAT_SCRIPT_THRESHOLD", "high")

	cfg := Load()
	assert.Equal(t, 8*time.Second, cfg.ClassifyTimeout)
	assert.Equal(t, 10, cfg.ResearchConcurrency)
	assert.InDelta(t, 0.2, cfg.ScriptThreshold, 1e-9)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("turn handled", "shape", "CHITCHAT_REPLY")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shape=CHITCHAT_REPLY")
	assert.Contains(t, file.String(), `"shape":"CHITCHAT_REPLY"`)
}

func TestSetupLoggerFallsBackToStderr(t *testing.T) {
	logger, cleanup := SetupLogger(t.TempDir()+"/missing/dir/app.log", slog.LevelInfo)
	assert.NotNil(t, logger)
	assert.NoError(t, cleanup())
}

func TestLoggerScrubsSecretsAndIdentities(t *testing.T) {
	type conversationID string
	var text, js bytes.Buffer
	logger := SetupLoggerWithWriters(&text, &js, slog.LevelInfo)

	logger.Info("message handled",
		"conversation", conversationID("+923001234567"),
		"identity", "+923001234567",
		"app_secret", "hunter2",
		"shape", "CHITCHAT_REPLY")

	for _, out := range []string{text.String(), js.String()} {
		assert.NotContains(t, out, "hunter2")
		assert.NotContains(t, out, "923001234567")
		assert.Contains(t, out, "+********4567")
		assert.Contains(t, out, "[redacted]")
		assert.Contains(t, out, "CHITCHAT_REPLY")
	}
}

func TestSetupLoggerWithoutFile(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelInfo)
	assert.NotNil(t, logger)
	assert.NoError(t, cleanup())
}

func TestMaskIdentity(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+923001234567", "+********4567"},
		{"923001234567", "********4567"},
		{"user-1", "**er-1"},
		{"abcd", "abcd"},
		{"+1234", "+1234"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskIdentity(tt.in))
		})
	}
}
