// Package llm provides the generative model used for intent classification,
// voice summaries and conversational replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/legalchat/internal/config"
	"github.com/raphaelgruber/legalchat/internal/metrics"
)

const (
	maxRetries   = 3
	retryBackoff = 250 * time.Millisecond
)

// Model wraps a provider for text generation.
type Model struct {
	gen       generator
	modelName string
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector, logger *slog.Logger) (*Model, error) {
	var gen generator

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		gen = &langchainGenerator{llm: model}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		gen = &langchainGenerator{llm: model}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		gen = &langchainGenerator{llm: model}

	case config.ProviderGemini:
		g, err := newGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		gen = g

	case config.ProviderBedrock:
		g, err := newBedrockGenerator(ctx, cfg.AWSRegion, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		gen = g

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return newModel(gen, cfg.LLMModel, mc, logger), nil
}

func newModel(gen generator, name string, mc *metrics.Collector, logger *slog.Logger) *Model {
	if mc == nil {
		mc = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{gen: gen, modelName: name, metrics: mc, logger: logger}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.generate(ctx, metrics.OpGenerate, systemPrompt, userPrompt, 0.7)
}

// generate calls the provider, retrying transient failures. Fatal API errors
// and context cancellation stop the loop immediately.
func (m *Model) generate(ctx context.Context, op, system, user string, temperature float64) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := time.Now()
		text, u, err := m.gen.generate(ctx, system, user, temperature)
		m.metrics.RecordLLMUsage(op, time.Since(start), u.input, u.output)

		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				return "", ErrEmptyResponse
			}
			return text, nil
		}

		lastErr = wrapFatalError(err)
		if errors.Is(lastErr, ErrFatalAPI) || ctx.Err() != nil {
			break
		}
		m.logger.Debug("llm call failed, retrying", "op", op, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return "", fmt.Errorf("%s: %w", op, lastErr)
}
