package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// usage is the token accounting of one provider call.
type usage struct {
	input  int64
	output int64
}

// generator is one provider's single-turn completion call.
type generator interface {
	generate(ctx context.Context, system, user string, temperature float64) (string, usage, error)
}

// langchainGenerator serves the ollama, openai and anthropic providers.
type langchainGenerator struct {
	llm llms.Model
}

func (g *langchainGenerator) generate(ctx context.Context, system, user string, temperature float64) (string, usage, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	response, err := g.llm.GenerateContent(ctx, messages, llms.WithTemperature(temperature))
	if err != nil {
		return "", usage{}, err
	}
	if len(response.Choices) == 0 {
		return "", usage{}, fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	return choice.Content, usage{
		input:  infoInt(choice.GenerationInfo, "PromptTokens", "InputTokens", "prompt_tokens"),
		output: infoInt(choice.GenerationInfo, "CompletionTokens", "OutputTokens", "completion_tokens"),
	}, nil
}

// infoInt reads the first numeric value present under any of keys.
func infoInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

// geminiGenerator calls the Gemini API through google.golang.org/genai.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

func newGeminiGenerator(ctx context.Context, apiKey, model string) (*geminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiGenerator{client: client, model: model}, nil
}

func (g *geminiGenerator) generate(ctx context.Context, system, user string, temperature float64) (string, usage, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(temperature)),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), cfg)
	if err != nil {
		return "", usage{}, err
	}

	var u usage
	if resp.UsageMetadata != nil {
		u.input = int64(resp.UsageMetadata.PromptTokenCount)
		u.output = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return resp.Text(), u, nil
}

// bedrockGenerator calls the Bedrock Converse API.
type bedrockGenerator struct {
	client *bedrockruntime.Client
	model  string
}

func newBedrockGenerator(ctx context.Context, region, model string) (*bedrockGenerator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &bedrockGenerator{client: bedrockruntime.NewFromConfig(awsCfg), model: model}, nil
}

func (g *bedrockGenerator) generate(ctx context.Context, system, user string, temperature float64) (string, usage, error) {
	out, err := g.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: user}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(temperature)),
		},
	})
	if err != nil {
		return "", usage{}, err
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", usage{}, fmt.Errorf("unexpected converse output %T", out.Output)
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}

	var u usage
	if out.Usage != nil {
		u.input = int64(aws.ToInt32(out.Usage.InputTokens))
		u.output = int64(aws.ToInt32(out.Usage.OutputTokens))
	}
	return b.String(), u, nil
}
