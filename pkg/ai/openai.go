package ai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const providerOpenAI = "openai"

// OpenAIConfig defines configuration options for the OpenAI client.
type OpenAIConfig struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	MaxTokens       int
	VisionMaxTokens int
	Temperature     float32
	BaseURL         string
	Logger          zerolog.Logger
}

// OpenAIClient implements ChatModel, ImageDescriber, Transcriber and Embedder
// against the OpenAI API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.AdaEmbeddingV2)
	}
	if cfg.VisionMaxTokens == 0 {
		cfg.VisionMaxTokens = 300
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/complaint-intake-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai").Logger(),
	}, nil
}

// Name returns the provider and model identifier.
func (c *OpenAIClient) Name() string {
	return providerOpenAI + ":" + c.cfg.Model
}

// Chat sends a chat completion request and returns the first choice.
func (c *OpenAIClient) Chat(parent context.Context, messages ...Message) (Reply, error) {
	ctx, span := c.tracer.Start(parent, "openai.chat", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("messages", len(messages)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, message := range messages {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(message.Role),
			Content: message.Content,
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	observe(providerOpenAI, "chat", start)
	if err != nil {
		fail(span, providerOpenAI, "chat", err)
		return Reply{}, fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		fail(span, providerOpenAI, "chat", err)
		return Reply{}, err
	}

	message := resp.Choices[0].Message
	if message.Content == "" && len(message.ToolCalls) > 0 {
		calls := make([]interface{}, 0, len(message.ToolCalls))
		for _, call := range message.ToolCalls {
			calls = append(calls, map[string]interface{}{
				"name":      call.Function.Name,
				"arguments": call.Function.Arguments,
			})
		}
		return ObjectReply(map[string]interface{}{"tool_calls": calls}), nil
	}

	c.logger.Debug().Int("prompt_tokens", resp.Usage.PromptTokens).Int("completion_tokens", resp.Usage.CompletionTokens).Msg("chat completion finished")

	return TextReply(message.Content), nil
}

// DescribeImage asks the vision-capable model what the image shows.
func (c *OpenAIClient) DescribeImage(parent context.Context, imageURL, prompt string) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.describe_image", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.VisionMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	observe(providerOpenAI, "vision", start)
	if err != nil {
		fail(span, providerOpenAI, "vision", err)
		return "", fmt.Errorf("openai describe image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe sends the buffered audio to Whisper.
func (c *OpenAIClient) Transcribe(parent context.Context, fileName string, audio io.Reader) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.transcribe")
	defer span.End()

	start := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: fileName,
		Reader:   audio,
	})
	observe(providerOpenAI, "transcribe", start)
	if err != nil {
		fail(span, providerOpenAI, "transcribe", err)
		return "", fmt.Errorf("openai transcribe: %w", err)
	}

	return resp.Text, nil
}

// Embed returns one embedding per input text.
func (c *OpenAIClient) Embed(parent context.Context, texts []string) ([][]float32, error) {
	ctx, span := c.tracer.Start(parent, "openai.embed", trace.WithAttributes(
		attribute.Int("inputs", len(texts)),
	))
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	observe(providerOpenAI, "embed", start)
	if err != nil {
		fail(span, providerOpenAI, "embed", err)
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		err := fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
		fail(span, providerOpenAI, "embed", err)
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			continue
		}
		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}

func openAIRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
