package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/observability"
)

// ErrUpstream indicates a hosted AI, storage or database call failed.
var ErrUpstream = errors.New("upstream service failed")

// AnalysisService runs the complaint pipeline for every input modality.
type AnalysisService interface {
	AnalyzeMessage(ctx context.Context, payload dto.MessageAnalysisRequest) (dto.AnalysisResult, error)
	AnalyzeAudio(ctx context.Context, upload Upload, userID string) (dto.AnalysisResult, error)
	DescribeImage(ctx context.Context, upload Upload) (dto.ImageDescriptionResponse, error)
	AnalyzeMessageImage(ctx context.Context, text string, upload Upload, userID string) (dto.AnalysisResult, error)
	AnalyzeVideo(ctx context.Context, upload Upload, userID string) (dto.VideoAnalysisResult, error)
}

type analysisService struct {
	inputs     InputNormalizer
	classifier Classifier
	resolver   CategoryResolver
	complaints ComplaintService
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewAnalysisService composes the pipeline stages. complaints may be nil to
// disable persistence of analysed complaints.
func NewAnalysisService(inputs InputNormalizer, classifier Classifier, resolver CategoryResolver, complaints ComplaintService, logger zerolog.Logger) AnalysisService {
	return &analysisService{
		inputs:     inputs,
		classifier: classifier,
		resolver:   resolver,
		complaints: complaints,
		logger:     logger.With().Str("component", "analysis_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/analysis"),
	}
}

func (s *analysisService) AnalyzeMessage(ctx context.Context, payload dto.MessageAnalysisRequest) (dto.AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.message")
	defer span.End()

	if payload.Text == "" {
		return dto.AnalysisResult{}, fmt.Errorf("%w: No text provided", ErrValidation)
	}

	start := time.Now()
	result, err := s.classifyAndResolve(ctx, s.inputs.Text(payload.Text), payload.UserID)
	s.record(span, "message", start, result.Complaint, err)
	return result, err
}

func (s *analysisService) AnalyzeAudio(ctx context.Context, upload Upload, userID string) (dto.AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.audio")
	defer span.End()

	start := time.Now()
	transcript, err := s.inputs.Audio(ctx, upload)
	if err != nil {
		s.record(span, "audio", start, false, err)
		return dto.AnalysisResult{}, err
	}

	result, err := s.classifyAndResolve(ctx, transcript, userID)
	s.record(span, "audio", start, result.Complaint, err)
	return result, err
}

func (s *analysisService) DescribeImage(ctx context.Context, upload Upload) (dto.ImageDescriptionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.image")
	defer span.End()

	start := time.Now()
	description, url, err := s.inputs.Image(ctx, upload)
	s.record(span, "image", start, false, err)
	if err != nil {
		return dto.ImageDescriptionResponse{}, err
	}
	return dto.ImageDescriptionResponse{Description: description, URL: url}, nil
}

func (s *analysisService) AnalyzeMessageImage(ctx context.Context, text string, upload Upload, userID string) (dto.AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.message_image")
	defer span.End()

	if strings.TrimSpace(text) == "" || len(upload.Data) == 0 {
		return dto.AnalysisResult{}, fmt.Errorf("%w: File and text are required", ErrValidation)
	}

	start := time.Now()
	description, url, err := s.inputs.Image(ctx, upload)
	if err != nil {
		s.record(span, "message_image", start, false, err)
		return dto.AnalysisResult{}, err
	}

	analysis, err := s.classifier.ClassifyLabelled(ctx, s.inputs.Text(text), description, url)
	if err != nil {
		s.record(span, "message_image", start, false, err)
		return dto.AnalysisResult{}, err
	}

	result := dto.AnalysisResult{
		Complaint:  analysis.IsComplaint,
		Summary:    analysis.Summary,
		Product:    &analysis.Product,
		SubProduct: &analysis.SubProduct,
	}
	if result.Complaint {
		result.Record, err = s.persist(ctx, userID, result.Summary, result.Product, result.SubProduct)
	}
	s.record(span, "message_image", start, result.Complaint, err)
	if err != nil {
		return dto.AnalysisResult{}, err
	}
	return result, nil
}

func (s *analysisService) AnalyzeVideo(ctx context.Context, upload Upload, userID string) (dto.VideoAnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.video")
	defer span.End()

	start := time.Now()
	evidence, err := s.inputs.Video(ctx, upload)
	if err != nil {
		s.record(span, "video", start, false, err)
		return dto.VideoAnalysisResult{}, err
	}

	analysis, err := s.classifier.ClassifyStructured(ctx, evidence)
	if err != nil {
		s.record(span, "video", start, false, err)
		return dto.VideoAnalysisResult{}, err
	}

	result := dto.VideoAnalysisResult{
		IsComplaint: analysis.IsComplaint,
		Summary:     analysis.Summary,
		Product:     analysis.Product,
		SubProduct:  analysis.SubProduct,
	}
	if result.IsComplaint {
		result.Record, err = s.persist(ctx, userID, result.Summary, &result.Product, &result.SubProduct)
	}
	s.record(span, "video", start, result.IsComplaint, err)
	if err != nil {
		return dto.VideoAnalysisResult{}, err
	}
	return result, nil
}

// classifyAndResolve runs the plain-text classifier and, for complaints only, the category resolver.
func (s *analysisService) classifyAndResolve(ctx context.Context, evidence, userID string) (dto.AnalysisResult, error) {
	classification, err := s.classifier.Classify(ctx, evidence)
	if err != nil {
		return dto.AnalysisResult{}, err
	}

	result := dto.AnalysisResult{Complaint: classification.IsComplaint, Summary: classification.Summary}
	if !classification.IsComplaint {
		return result, nil
	}

	category, err := s.resolver.Resolve(ctx, evidence)
	if err != nil {
		return dto.AnalysisResult{}, err
	}
	result.Product = category.Product
	result.SubProduct = category.SubProduct

	result.Record, err = s.persist(ctx, userID, result.Summary, result.Product, result.SubProduct)
	if err != nil {
		return dto.AnalysisResult{}, err
	}
	return result, nil
}

// persist stores an analysed complaint when the caller identified themselves.
func (s *analysisService) persist(ctx context.Context, userID, summary string, product, subProduct *string) (*dto.ComplaintResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || s.complaints == nil {
		return nil, nil
	}

	complaint := true
	record, err := s.complaints.Insert(ctx, dto.ComplaintCreateRequest{
		UserID:     userID,
		Complaint:  &complaint,
		Summary:    stringOr(&summary, placeholderSummary),
		Product:    stringOr(product, placeholderProduct),
		SubProduct: stringOr(subProduct, placeholderSubProduct),
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *analysisService) record(span trace.Span, modality string, start time.Time, complaint bool, err error) {
	observability.AnalysisLatency().WithLabelValues(modality).Observe(time.Since(start).Seconds())

	outcome := "not_complaint"
	switch {
	case err != nil && errors.Is(err, ErrUpstream):
		outcome = "upstream_error"
	case err != nil:
		outcome = "rejected"
	case modality == "image":
		outcome = "described"
	case complaint:
		outcome = "complaint"
	}
	observability.AnalysisRequests().WithLabelValues(modality, outcome).Inc()

	span.SetAttributes(attribute.String("analysis.modality", modality), attribute.String("analysis.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if errors.Is(err, ErrUpstream) {
			s.logger.Error().Err(err).Str("modality", modality).Msg("analysis pipeline failed")
		}
		return
	}
	span.SetStatus(codes.Ok, outcome)
}
