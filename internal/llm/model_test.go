package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/legalchat/internal/intent"
	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
)

// scriptedGenerator returns queued replies in order.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	systems []string
}

func (g *scriptedGenerator) generate(_ context.Context, system, _ string, _ float64) (string, usage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.systems = append(g.systems, system)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", usage{}, g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], usage{input: 10, output: 1}, nil
	}
	return "", usage{}, errors.New("no scripted reply")
}

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"gemini key", errors.New("API key not valid. Please pass a valid API key."), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		wrapped := wrapFatalError(errors.New("invalid api key provided"))
		assert.ErrorIs(t, wrapped, ErrFatalAPI)
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		assert.Equal(t, err, wrapFatalError(err))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.NoError(t, wrapFatalError(nil))
	})
}

func TestParseLabel(t *testing.T) {
	allowed := []string{"LEGAL", "CHITCHAT", "IRRELEVANT"}
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"LEGAL", "LEGAL", true},
		{"  legal\n", "LEGAL", true},
		{`"CHITCHAT".`, "CHITCHAT", true},
		{"**IRRELEVANT**", "IRRELEVANT", true},
		{"LEGAL - it is about bail", "", false},
		{"I think this is LEGAL", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseLabel(tt.raw, allowed...)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnparseableLabel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := parseLabel("NOT_AFFIRMATIVE", "AFFIRMATIVE", "NOT_AFFIRMATIVE")
	require.NoError(t, err)
	assert.Equal(t, "NOT_AFFIRMATIVE", got)
}

func TestClassifyThreeWay(t *testing.T) {
	mc := metrics.NewCollector()
	g := &scriptedGenerator{replies: []string{"Legal", "maybe legal?"}}
	m := newModel(g, "test", mc, nil)

	label, err := m.ClassifyThreeWay(context.Background(), "can police arrest without warrant")
	require.NoError(t, err)
	assert.Equal(t, models.IntentLegal, label)
	assert.Contains(t, g.systems[0], "answer CHITCHAT")

	_, err = m.ClassifyThreeWay(context.Background(), "hmm")
	assert.ErrorIs(t, err, ErrUnparseableLabel)

	snap := mc.Snapshot()
	require.NotNil(t, snap.ClassifyBackend)
	assert.EqualValues(t, 2, snap.ClassifyBackend.Count)
}

func TestClassifyBinary(t *testing.T) {
	g := &scriptedGenerator{replies: []string{"AFFIRMATIVE", "NOT_REJECTION", "REJECTION"}}
	m := newModel(g, "test", nil, nil)
	ctx := context.Background()

	ok, err := m.ClassifyBinary(ctx, "go ahead", intent.KindAffirmative)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.ClassifyBinary(ctx, "go ahead", intent.KindRejection)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.ClassifyBinary(ctx, "rehne do", intent.KindRejection)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = m.ClassifyBinary(ctx, "x", "sideways")
	assert.Error(t, err)
}

func TestGenerateRetries(t *testing.T) {
	t.Run("transient error retried", func(t *testing.T) {
		g := &scriptedGenerator{
			errs:    []error{errors.New("connection reset")},
			replies: []string{"", "CHITCHAT"},
		}
		m := newModel(g, "test", nil, nil)
		label, err := m.ClassifyThreeWay(context.Background(), "hello there friend")
		require.NoError(t, err)
		assert.Equal(t, models.IntentChitchat, label)
		assert.Equal(t, 2, g.calls)
	})

	t.Run("fatal error not retried", func(t *testing.T) {
		g := &scriptedGenerator{errs: []error{errors.New("HTTP 401: invalid api key")}}
		m := newModel(g, "test", nil, nil)
		_, err := m.GenerateWithSystem(context.Background(), "sys", "user")
		assert.ErrorIs(t, err, ErrFatalAPI)
		assert.Equal(t, 1, g.calls)
	})

	t.Run("cancelled context stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		g := &scriptedGenerator{errs: []error{context.Canceled}}
		m := newModel(g, "test", nil, nil)
		_, err := m.GenerateWithSystem(ctx, "sys", "user")
		assert.Error(t, err)
		assert.Equal(t, 1, g.calls)
	})

	t.Run("empty reply", func(t *testing.T) {
		g := &scriptedGenerator{replies: []string{"   "}}
		m := newModel(g, "test", nil, nil)
		_, err := m.GenerateWithSystem(context.Background(), "sys", "user")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestSummarizeUsesLanguage(t *testing.T) {
	g := &scriptedGenerator{replies: []string{"خلاصہ", "Hello! How can I help?"}}
	m := newModel(g, "test", nil, nil)

	out, err := m.Summarize(context.Background(), "ضمانت", models.Research{Findings: "...", CaseCount: 2}, models.LanguageSecondary)
	require.NoError(t, err)
	assert.Equal(t, "خلاصہ", out)
	assert.Contains(t, g.systems[0], "Urdu")

	out, err = m.Chitchat(context.Background(), "Ali", "hi", models.LanguagePrimary)
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", out)
	assert.Contains(t, g.systems[1], "English")
}

// fakeLLM is a minimal langchaingo model.
type fakeLLM struct {
	content string
	info    map[string]any
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(messages) != 2 {
		return nil, fmt.Errorf("expected system and human messages, got %d", len(messages))
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content, GenerationInfo: f.info}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangchainGeneratorUsage(t *testing.T) {
	g := &langchainGenerator{llm: &fakeLLM{
		content: "IRRELEVANT",
		info:    map[string]any{"PromptTokens": 42, "CompletionTokens": float64(3)},
	}}
	text, u, err := g.generate(context.Background(), "sys", "user", 0)
	require.NoError(t, err)
	assert.Equal(t, "IRRELEVANT", text)
	assert.EqualValues(t, 42, u.input)
	assert.EqualValues(t, 3, u.output)
}
