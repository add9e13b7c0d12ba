package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/legalchat/internal/config"
	"github.com/raphaelgruber/legalchat/internal/dedup"
	"github.com/raphaelgruber/legalchat/internal/intent"
	"github.com/raphaelgruber/legalchat/internal/lexicon"
	"github.com/raphaelgruber/legalchat/internal/models"
	"github.com/raphaelgruber/legalchat/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenStore(ctx, config.Config{StoreBackend: config.StoreMemory}, discard())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, mem)

	sq, err := OpenStore(ctx, config.Config{
		StoreBackend: config.StoreSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "chat.db"),
	}, discard())
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, sq)
	require.NoError(t, sq.Close())

	_, err = OpenStore(ctx, config.Config{StoreBackend: "mongo"}, discard())
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestOpenDedup(t *testing.T) {
	tr, err := OpenDedup(context.Background(), config.Config{DedupBackend: config.DedupMemory})
	require.NoError(t, err)
	assert.IsType(t, &dedup.MemoryTracker{}, tr)

	_, err = OpenDedup(context.Background(), config.Config{DedupBackend: "kafka"})
	assert.Error(t, err)
}

func TestNewClassifierWithoutModel(t *testing.T) {
	c := NewClassifier(config.Config{}, lexicon.Default(), nil, discard())

	res := c.Explain(context.Background(), "hello", false)
	assert.Equal(t, models.IntentChitchat, res.Label)
	assert.Equal(t, intent.TierLexical, res.Tier)

	res = c.Explain(context.Background(), "my employer has not paid my salary for three months", false)
	assert.Equal(t, models.IntentLegal, res.Label)
	assert.True(t, res.Fallback)
}

func TestNewWithMemoryStore(t *testing.T) {
	cfg := config.Config{
		LLMProvider:  config.ProviderOpenAI, // no key: runs on fallbacks
		StoreBackend: config.StoreMemory,
		DocumentDir:  t.TempDir(),
	}
	a, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Engine)
	assert.NotEmpty(t, a.Lexicon.Version)

	resp, err := a.Engine.HandleMessage(context.Background(), models.Inbound{Identity: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.ShapeChitchatReply, resp.Shape)
}
