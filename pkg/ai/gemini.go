package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	genai "google.golang.org/genai"
)

const providerGemini = "gemini"

// GeminiConfig holds settings for the Gemini API.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Logger      zerolog.Logger
}

// GeminiClient implements ChatModel with the official genai client. Each
// candidate part becomes one reply block.
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiClient constructs a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/complaint-intake-api/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// Name returns the provider and model identifier.
func (c *GeminiClient) Name() string {
	return providerGemini + ":" + c.cfg.Model
}

// Chat generates content for the conversation.
func (c *GeminiClient) Chat(parent context.Context, messages ...Message) (Reply, error) {
	ctx, span := c.tracer.Start(parent, "gemini.chat", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	temperature := c.cfg.Temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case RoleSystem:
			system = append(system, message.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: message.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: message.Content}}})
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n")}}}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
	observe(providerGemini, "chat", start)
	if err != nil {
		fail(span, providerGemini, "chat", err)
		return Reply{}, fmt.Errorf("gemini chat: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return BlocksReply(), nil
	}

	parts := resp.Candidates[0].Content.Parts
	blocks := make([]Block, 0, len(parts))
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			blocks = append(blocks, Block{Type: "text", Text: part.Text})
			continue
		}
		blocks = append(blocks, Block{Type: "other"})
	}

	return BlocksReply(blocks...), nil
}
