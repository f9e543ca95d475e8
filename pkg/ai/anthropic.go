package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const providerAnthropic = "anthropic"

// AnthropicConfig holds settings for the Anthropic messages API.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	Logger      zerolog.Logger
}

// AnthropicClient implements ChatModel on top of the Anthropic messages API.
// Replies are returned as block sequences since the API answers with typed
// content blocks.
type AnthropicClient struct {
	client anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicClient constructs a messages API client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/complaint-intake-api/pkg/ai/anthropic"),
		logger: cfg.Logger.With().Str("component", "anthropic").Logger(),
	}, nil
}

// Name returns the provider and model identifier.
func (c *AnthropicClient) Name() string {
	return providerAnthropic + ":" + c.cfg.Model
}

// Chat sends the conversation. System messages, wherever they appear, are
// hoisted into the system prompt.
func (c *AnthropicClient) Chat(parent context.Context, messages ...Message) (Reply, error) {
	ctx, span := c.tracer.Start(parent, "anthropic.chat", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: anthropic.Float(c.cfg.Temperature),
	}
	for _, message := range messages {
		switch message.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: message.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(message.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content)))
		}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	observe(providerAnthropic, "chat", start)
	if err != nil {
		fail(span, providerAnthropic, "chat", err)
		return Reply{}, fmt.Errorf("anthropic chat: %w", err)
	}

	blocks := make([]Block, 0, len(resp.Content))
	for _, block := range resp.Content {
		blocks = append(blocks, Block{Type: string(block.Type), Text: block.Text})
	}

	c.logger.Debug().Int64("input_tokens", resp.Usage.InputTokens).Int64("output_tokens", resp.Usage.OutputTokens).Msg("message finished")

	return BlocksReply(blocks...), nil
}
