package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/complaint-intake-api/internal/observability"
	"github.com/noah-isme/complaint-intake-api/pkg/ai"
	"github.com/noah-isme/complaint-intake-api/pkg/vectorstore"
)

const (
	noFilter = "NO_FILTER"

	classifySystemPrompt   = "You are a system that identifies complaints and summarizes them in plain text without using markdown."
	classifyUserTemplate   = `Is the following text a complaint? If yes, provide a summary in plain text without using markdown: "%s"`
	categorySystemPrompt   = "You are a system that categorizes complaints into product and sub-product categories in plain text without using markdown."
	categoryUserTemplate   = `Based on the following text and relevant documents, categorize this complaint into a product and sub-product in plain text without using markdown: "%s". Relevant documents: "%s"`
	structuredSystemPrompt = "You are an AI that analyzes extracted video content and provides a structured response in JSON format."
	structuredUserTemplate = `
Analyze the following information extracted from a video and respond in the following JSON format:
{
  "is_complaint": <true_or_false>,
  "summary": "<summary_of_the_complaint>",
  "product": "<product_name>",
  "sub_product": "<sub_product_name>"
}
Information:
"%s"
`
	labelledSystemPrompt = "You are an AI that analyzes both text and images and provides concise results in plain text."
	labelledUserTemplate = `Analyze the following text and image. Is it a complaint? Provide a summary, product, and sub-product in plain text:
    - Text: "%s"
    - Image description: "%s"
    - Image URL: "%s"`
	selfQueryTemplate = `Your goal is to structure the user's query to match the request schema provided below.

Respond with a JSON object containing the following keys:
"query": string, text string to compare to document contents
"filter": string, logical condition statement for filtering documents, or "NO_FILTER" when none applies

Only use the attributes listed in the data source. If no attribute applies, use "NO_FILTER".

Data source:
content: Document content
attributes: {}

User query:
%s`
)

// Classifier decides whether evidence is a complaint. Each method asks for a
// different reply shape and parses it with the matching parser.
type Classifier interface {
	Classify(ctx context.Context, evidence string) (Classification, error)
	ClassifyStructured(ctx context.Context, evidence string) (StructuredAnalysis, error)
	ClassifyLabelled(ctx context.Context, text, description, imageURL string) (LabelledAnalysis, error)
}

// CategoryResolver assigns product labels to a complaint using retrieved references.
type CategoryResolver interface {
	Resolve(ctx context.Context, text string) (Category, error)
}

// Retriever finds reference documents relevant to a natural-language query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorstore.Match, error)
}

type chatClassifier struct {
	chat   ai.ChatModel
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewClassifier builds a classifier on top of a chat model.
func NewClassifier(chat ai.ChatModel, logger zerolog.Logger) Classifier {
	return &chatClassifier{
		chat:   chat,
		logger: logger.With().Str("component", "classifier").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/classifier"),
	}
}

func (c *chatClassifier) Classify(ctx context.Context, evidence string) (Classification, error) {
	ctx, span := c.tracer.Start(ctx, "classifier.plain")
	defer span.End()

	reply, err := ask(ctx, c.chat, classifySystemPrompt, fmt.Sprintf(classifyUserTemplate, evidence))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return Classification{}, fmt.Errorf("%w: classify: %w", ErrUpstream, err)
	}

	result := ParseClassification(reply)
	if result.Degraded {
		degrade(c.logger, "classification", reply)
	}
	span.SetAttributes(attribute.Bool("classifier.is_complaint", result.IsComplaint))
	return result, nil
}

func (c *chatClassifier) ClassifyStructured(ctx context.Context, evidence string) (StructuredAnalysis, error) {
	ctx, span := c.tracer.Start(ctx, "classifier.structured")
	defer span.End()

	reply, err := ask(ctx, c.chat, structuredSystemPrompt, fmt.Sprintf(structuredUserTemplate, evidence))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return StructuredAnalysis{}, fmt.Errorf("%w: classify structured: %w", ErrUpstream, err)
	}

	result, degraded := ParseStructuredAnalysis(reply)
	if degraded {
		degrade(c.logger, "structured", reply)
	}
	span.SetAttributes(attribute.Bool("classifier.is_complaint", result.IsComplaint))
	return result, nil
}

func (c *chatClassifier) ClassifyLabelled(ctx context.Context, text, description, imageURL string) (LabelledAnalysis, error) {
	ctx, span := c.tracer.Start(ctx, "classifier.labelled")
	defer span.End()

	reply, err := ask(ctx, c.chat, labelledSystemPrompt, fmt.Sprintf(labelledUserTemplate, text, description, imageURL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return LabelledAnalysis{}, fmt.Errorf("%w: classify labelled: %w", ErrUpstream, err)
	}

	result, degraded := ParseLabelledAnalysis(reply)
	if degraded {
		degrade(c.logger, "labelled", reply)
	}
	span.SetAttributes(attribute.Bool("classifier.is_complaint", result.IsComplaint))
	return result, nil
}

type ragCategoryResolver struct {
	chat      ai.ChatModel
	retriever Retriever
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewCategoryResolver builds a resolver grounding the categorisation prompt with retrieved documents.
func NewCategoryResolver(chat ai.ChatModel, retriever Retriever, logger zerolog.Logger) CategoryResolver {
	return &ragCategoryResolver{
		chat:      chat,
		retriever: retriever,
		logger:    logger.With().Str("component", "category_resolver").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/category"),
	}
}

func (r *ragCategoryResolver) Resolve(ctx context.Context, text string) (Category, error) {
	ctx, span := r.tracer.Start(ctx, "category.resolve")
	defer span.End()

	docs, err := r.retriever.Retrieve(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return Category{}, err
	}
	span.SetAttributes(attribute.Int("category.documents", len(docs)))

	reply, err := ask(ctx, r.chat, categorySystemPrompt, fmt.Sprintf(categoryUserTemplate, text, joinContents(docs)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "categorisation failed")
		return Category{}, fmt.Errorf("%w: categorise: %w", ErrUpstream, err)
	}

	category := ParseCategory(reply)
	if category.Product == nil || category.SubProduct == nil {
		degrade(r.logger, "category", reply)
	}
	return category, nil
}

type selfQueryRetriever struct {
	chat     ai.ChatModel
	embedder ai.Embedder
	index    vectorstore.Index
	topK     int
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewSelfQueryRetriever lets the chat model rewrite the query before the vector search.
// No metadata attributes are declared, so generated filters are never applied.
func NewSelfQueryRetriever(chat ai.ChatModel, embedder ai.Embedder, index vectorstore.Index, topK int, logger zerolog.Logger) Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &selfQueryRetriever{
		chat:     chat,
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger.With().Str("component", "self_query_retriever").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/retriever"),
	}
}

func (r *selfQueryRetriever) Retrieve(ctx context.Context, query string) ([]vectorstore.Match, error) {
	ctx, span := r.tracer.Start(ctx, "retriever.self_query")
	defer span.End()
	span.SetAttributes(attribute.String("retriever.index", r.index.Name()), attribute.Int("retriever.top_k", r.topK))

	reply, err := ask(ctx, r.chat, "", fmt.Sprintf(selfQueryTemplate, query))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query construction failed")
		return nil, fmt.Errorf("%w: construct query: %w", ErrUpstream, err)
	}

	structured, degraded := parseSelfQuery(reply, query)
	if degraded {
		degrade(r.logger, "self_query", reply)
	}
	if structured.Filter != noFilter {
		r.logger.Debug().Str("filter", structured.Filter).Msg("ignoring filter without declared attributes")
	}

	vectors, err := r.embedder.Embed(ctx, []string{structured.Query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: embed query: %w", ErrUpstream, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embed query: empty embedding response", ErrUpstream)
	}

	matches, err := r.index.Search(ctx, vectors[0], r.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("%w: search references: %w", ErrUpstream, err)
	}

	span.SetAttributes(attribute.Int("retriever.matches", len(matches)))
	return matches, nil
}

// ask sends a single instruction/prompt pair and normalizes the reply. An empty
// system prompt sends only the user message.
func ask(ctx context.Context, chat ai.ChatModel, system, user string) (string, error) {
	messages := make([]ai.Message, 0, 2)
	if system != "" {
		messages = append(messages, ai.System(system))
	}
	messages = append(messages, ai.User(user))

	reply, err := chat.Chat(ctx, messages...)
	if err != nil {
		return "", err
	}
	return reply.Normalize(), nil
}

func joinContents(docs []vectorstore.Match) string {
	contents := make([]string, 0, len(docs))
	for _, doc := range docs {
		contents = append(contents, doc.Content)
	}
	return strings.Join(contents, "\n")
}

func degrade(logger zerolog.Logger, stage, reply string) {
	observability.ParseDegradations().WithLabelValues(stage).Inc()
	logger.Warn().Str("stage", stage).Int("reply_length", len(reply)).Msg("model reply degraded to placeholders")
}
