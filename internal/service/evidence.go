package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/complaint-intake-api/internal/observability"
	"github.com/noah-isme/complaint-intake-api/pkg/ai"
	"github.com/noah-isme/complaint-intake-api/pkg/videointel"
)

const imageDescriptionPrompt = "What is displayed in the image?"

var (
	// ErrUploadRequired indicates no file was supplied.
	ErrUploadRequired = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected MIME type does not match the endpoint.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// FileStorage abstracts durable upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// VideoAnnotator runs speech, label and text detection over raw video bytes.
type VideoAnnotator interface {
	Annotate(ctx context.Context, video []byte) (videointel.Annotation, error)
}

// Upload is a fully buffered file received from a client.
type Upload struct {
	Name string
	Data []byte
}

// InputNormalizer turns each input modality into a plain-text evidence string.
type InputNormalizer interface {
	Text(text string) string
	Image(ctx context.Context, upload Upload) (description, url string, err error)
	Audio(ctx context.Context, upload Upload) (string, error)
	Video(ctx context.Context, upload Upload) (string, error)
}

type inputNormalizer struct {
	storage     FileStorage
	vision      ai.ImageDescriber
	transcriber ai.Transcriber
	annotator   VideoAnnotator
	maxSize     int64
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewInputNormalizer wires the upstream services used to extract evidence.
func NewInputNormalizer(storage FileStorage, vision ai.ImageDescriber, transcriber ai.Transcriber, annotator VideoAnnotator, maxSizeMB int, logger zerolog.Logger) InputNormalizer {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &inputNormalizer{
		storage:     storage,
		vision:      vision,
		transcriber: transcriber,
		annotator:   annotator,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		logger:      logger.With().Str("component", "input_normalizer").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/complaint-intake-api/internal/service/evidence"),
	}
}

// Text passes user text through unchanged.
func (n *inputNormalizer) Text(text string) string {
	return text
}

func (n *inputNormalizer) Image(ctx context.Context, upload Upload) (string, string, error) {
	ctx, span := n.tracer.Start(ctx, "evidence.image")
	defer span.End()

	if _, err := n.guard(span, upload, "image/"); err != nil {
		return "", "", err
	}

	url, err := n.storage.Upload(ctx, upload.Name, bytes.NewReader(upload.Data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return "", "", fmt.Errorf("%w: store image: %w", ErrUpstream, err)
	}

	description, err := n.vision.DescribeImage(ctx, url, imageDescriptionPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vision failed")
		return "", "", fmt.Errorf("%w: describe image: %w", ErrUpstream, err)
	}

	return strings.TrimSpace(description), url, nil
}

func (n *inputNormalizer) Audio(ctx context.Context, upload Upload) (string, error) {
	ctx, span := n.tracer.Start(ctx, "evidence.audio")
	defer span.End()

	mime, err := n.guard(span, upload, "audio/", "video/webm", "video/mp4", "application/octet-stream")
	if err != nil {
		return "", err
	}

	name := upload.Name
	if name == "" || filepath.Ext(name) == "" {
		ext := mime.Extension()
		if ext == "" {
			ext = ".wav"
		}
		name = "audio" + ext
	}

	transcript, err := n.transcriber.Transcribe(ctx, name, bytes.NewReader(upload.Data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return "", fmt.Errorf("%w: transcribe audio: %w", ErrUpstream, err)
	}

	span.SetAttributes(attribute.Int("evidence.transcript_length", len(transcript)))
	return transcript, nil
}

func (n *inputNormalizer) Video(ctx context.Context, upload Upload) (string, error) {
	ctx, span := n.tracer.Start(ctx, "evidence.video")
	defer span.End()

	if _, err := n.guard(span, upload, "video/", "application/octet-stream"); err != nil {
		return "", err
	}

	if n.annotator == nil {
		span.SetStatus(codes.Error, "annotator not configured")
		return "", fmt.Errorf("%w: video annotation is not configured", ErrUpstream)
	}

	annotation, err := n.annotator.Annotate(ctx, upload.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "annotation failed")
		return "", fmt.Errorf("%w: annotate video: %w", ErrUpstream, err)
	}

	return annotation.Evidence(), nil
}

// guard enforces size and MIME family before any upstream call is made.
func (n *inputNormalizer) guard(span trace.Span, upload Upload, allowed ...string) (*mimetype.MIME, error) {
	if len(upload.Data) == 0 {
		span.SetStatus(codes.Error, "file missing")
		return nil, ErrUploadRequired
	}
	if int64(len(upload.Data)) > n.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return nil, ErrUploadTooLarge
	}

	mime := mimetype.Detect(upload.Data)
	span.SetAttributes(
		attribute.String("upload.detected_mime", mime.String()),
		attribute.Int("upload.size_bytes", len(upload.Data)),
	)
	if !mimeAllowed(mime, allowed) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		n.logger.Debug().Str("mime", mime.String()).Msg("upload rejected")
		return nil, ErrUploadTypeNotAllowed
	}
	return mime, nil
}

// mimeAllowed matches the detected type or one of its parents. The generic
// octet-stream root only matches when nothing more specific was detected.
func mimeAllowed(mime *mimetype.MIME, allowed []string) bool {
	const generic = "application/octet-stream"
	if mime.Is(generic) {
		for _, candidate := range allowed {
			if candidate == generic {
				return true
			}
		}
		return false
	}

	for m := mime; m != nil && !m.Is(generic); m = m.Parent() {
		value := strings.ToLower(m.String())
		for _, candidate := range allowed {
			if strings.HasSuffix(candidate, "/") && strings.HasPrefix(value, candidate) {
				return true
			}
			if m.Is(candidate) {
				return true
			}
		}
	}
	return false
}
