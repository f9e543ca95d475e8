package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/models"
	"github.com/noah-isme/complaint-intake-api/internal/observability"
	"github.com/noah-isme/complaint-intake-api/internal/repository"
)

// ErrValidation indicates a required request field is missing or malformed.
var ErrValidation = errors.New("validation failed")

// ComplaintService is the persistence gateway for classified complaints.
type ComplaintService interface {
	Insert(ctx context.Context, payload dto.ComplaintCreateRequest) (dto.ComplaintResponse, error)
	DeleteAll(ctx context.Context) (dto.ComplaintPurgeResponse, error)
	List(ctx context.Context, query dto.ComplaintListQuery) ([]dto.ComplaintResponse, error)
	EnsureSchema(ctx context.Context) (dto.SchemaResponse, error)
	Ping(ctx context.Context) (dto.DatabasePingResponse, error)
}

type complaintService struct {
	repo      repository.ComplaintRepository
	events    ComplaintEvents
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewComplaintService constructs the complaint persistence service.
func NewComplaintService(repo repository.ComplaintRepository, events ComplaintEvents, validate *validator.Validate, logger zerolog.Logger) ComplaintService {
	if events == nil {
		events = NopComplaintEvents{}
	}
	return &complaintService{
		repo:      repo,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "complaint_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/complaint"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *complaintService) Insert(ctx context.Context, payload dto.ComplaintCreateRequest) (dto.ComplaintResponse, error) {
	ctx, span := s.tracer.Start(ctx, "complaint.insert")
	defer span.End()

	payload.UserID = strings.TrimSpace(payload.UserID)
	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.ComplaintResponse{}, fmt.Errorf("%w: missing required fields", ErrValidation)
	}

	record := models.Complaint{
		UserID:     payload.UserID,
		Complaint:  *payload.Complaint,
		Summary:    payload.Summary,
		Product:    payload.Product,
		SubProduct: payload.SubProduct,
		DateSent:   s.now(),
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return dto.ComplaintResponse{}, fmt.Errorf("%w: insert complaint: %w", ErrUpstream, err)
	}

	span.SetAttributes(attribute.Int("complaint.id", int(record.ID)))
	observability.ComplaintsRecorded().Inc()

	response := dto.NewComplaintResponse(record)
	s.events.Recorded(ctx, response)
	s.logger.Info().Uint("complaint_id", record.ID).Str("user_id", record.UserID).Msg("complaint recorded")

	return response, nil
}

func (s *complaintService) DeleteAll(ctx context.Context) (dto.ComplaintPurgeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "complaint.delete_all")
	defer span.End()

	removed, err := s.repo.DeleteAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return dto.ComplaintPurgeResponse{}, fmt.Errorf("%w: delete complaints: %w", ErrUpstream, err)
	}

	span.SetAttributes(attribute.Int("complaint.deleted", len(removed)))
	observability.ComplaintsPurged().Add(float64(len(removed)))
	s.events.Purged(ctx, len(removed))
	s.logger.Warn().Int("count", len(removed)).Msg("complaints purged")

	return dto.ComplaintPurgeResponse{DeletedRows: dto.NewComplaintResponseSlice(removed)}, nil
}

func (s *complaintService) List(ctx context.Context, query dto.ComplaintListQuery) ([]dto.ComplaintResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	items, err := s.repo.List(ctx, repository.ComplaintFilter{UserID: strings.TrimSpace(query.UserID)})
	if err != nil {
		return nil, fmt.Errorf("%w: list complaints: %w", ErrUpstream, err)
	}
	return dto.NewComplaintResponseSlice(items), nil
}

func (s *complaintService) EnsureSchema(ctx context.Context) (dto.SchemaResponse, error) {
	if err := s.repo.EnsureSchema(ctx); err != nil {
		return dto.SchemaResponse{}, fmt.Errorf("%w: ensure schema: %w", ErrUpstream, err)
	}
	return dto.SchemaResponse{Table: models.Complaint{}.TableName(), Ready: true}, nil
}

func (s *complaintService) Ping(ctx context.Context) (dto.DatabasePingResponse, error) {
	now, err := s.repo.Now(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("database connection failed")
		return dto.DatabasePingResponse{}, fmt.Errorf("%w: ping database: %w", ErrUpstream, err)
	}
	return dto.DatabasePingResponse{Time: now}, nil
}
