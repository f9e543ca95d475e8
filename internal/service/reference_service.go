package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/pkg/ai"
	"github.com/noah-isme/complaint-intake-api/pkg/vectorstore"
)

const (
	assistantSystemPrompt = "You are a helpful assistant."
	embedBatchSize        = 64
)

// ReferenceService manages the grounding documents used by the category resolver.
type ReferenceService interface {
	Ingest(ctx context.Context, items []dto.ReferenceItem) (dto.ReferenceIngestResponse, error)
	Ask(ctx context.Context, payload dto.AskRequest) (dto.AskResponse, error)
}

type referenceService struct {
	embedder  ai.Embedder
	index     vectorstore.Index
	retriever Retriever
	chat      ai.ChatModel
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewReferenceService constructs the reference ingestion and question answering service.
func NewReferenceService(embedder ai.Embedder, index vectorstore.Index, retriever Retriever, chat ai.ChatModel, validate *validator.Validate, logger zerolog.Logger) ReferenceService {
	return &referenceService{
		embedder:  embedder,
		index:     index,
		retriever: retriever,
		chat:      chat,
		validator: validate,
		logger:    logger.With().Str("component", "reference_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/reference"),
	}
}

func (s *referenceService) Ingest(ctx context.Context, items []dto.ReferenceItem) (dto.ReferenceIngestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reference.ingest")
	defer span.End()

	docs, err := referenceDocuments(items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.ReferenceIngestResponse{}, err
	}
	span.SetAttributes(attribute.Int("reference.count", len(docs)))

	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		contents := make([]string, 0, len(batch))
		for _, doc := range batch {
			contents = append(contents, doc.Content)
		}

		vectors, err := s.embedder.Embed(ctx, contents)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "embedding failed")
			return dto.ReferenceIngestResponse{}, fmt.Errorf("%w: embed references: %w", ErrUpstream, err)
		}
		if len(vectors) != len(batch) {
			return dto.ReferenceIngestResponse{}, fmt.Errorf("%w: embed references: got %d vectors for %d documents", ErrUpstream, len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := s.index.Upsert(ctx, batch); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upsert failed")
			return dto.ReferenceIngestResponse{}, fmt.Errorf("%w: store references: %w", ErrUpstream, err)
		}
	}

	s.logger.Info().Int("count", len(docs)).Str("store", s.index.Name()).Msg("reference documents indexed")
	span.SetStatus(codes.Ok, "indexed")

	return dto.ReferenceIngestResponse{Indexed: len(docs), Store: s.index.Name()}, nil
}

func (s *referenceService) Ask(ctx context.Context, payload dto.AskRequest) (dto.AskResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reference.ask")
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.AskResponse{}, fmt.Errorf("%w: No question provided", ErrValidation)
	}

	docs, err := s.retriever.Retrieve(ctx, payload.Question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return dto.AskResponse{}, err
	}

	reply, err := s.chat.Chat(ctx,
		ai.System(assistantSystemPrompt),
		ai.User(payload.Question),
		ai.System(joinContents(docs)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer failed")
		return dto.AskResponse{}, fmt.Errorf("%w: answer question: %w", ErrUpstream, err)
	}

	return dto.AskResponse{Response: reply.Normalize()}, nil
}

// referenceDocuments maps index export entries onto documents whose content is
// the raw _source JSON and whose metadata records the entry id and position.
func referenceDocuments(items []dto.ReferenceItem) ([]vectorstore.Document, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one reference document is required", ErrValidation)
	}

	docs := make([]vectorstore.Document, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		source := bytes.TrimSpace(item.Source)
		if len(source) == 0 || bytes.Equal(source, []byte("null")) {
			return nil, fmt.Errorf("%w: item %d has no _source", ErrValidation, i)
		}

		var compact bytes.Buffer
		if err := json.Compact(&compact, source); err != nil {
			return nil, fmt.Errorf("%w: item %d has invalid _source", ErrValidation, i)
		}

		id := strings.TrimSpace(item.ID)
		if id == "" {
			id = "ref-" + strconv.Itoa(i)
		}
		if _, dup := seen[id]; dup {
			id = id + "-" + strconv.Itoa(i)
		}
		seen[id] = struct{}{}

		docs = append(docs, vectorstore.Document{
			ID:       id,
			Content:  compact.String(),
			Metadata: map[string]interface{}{"id": item.ID, "index": i},
		})
	}
	return docs, nil
}
