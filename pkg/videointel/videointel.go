package videointel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/option"
)

var tracer = otel.Tracer("github.com/noah-isme/complaint-intake-api/pkg/videointel")

// Config carries the service-account fields used to authenticate against Google Cloud.
type Config struct {
	ProjectID    string
	PrivateKey   string
	ClientEmail  string
	LanguageCode string
}

// Annotation is the subset of a video annotation result relevant to complaint analysis.
type Annotation struct {
	Transcripts  []string
	Labels       []string
	DetectedText []string
}

// Evidence renders the annotation as the three-line evidence string.
func (a Annotation) Evidence() string {
	return fmt.Sprintf("Transcription: %s\nLabels: %s\nDetected Text: %s",
		strings.Join(a.Transcripts, " "),
		strings.Join(a.Labels, ", "),
		strings.Join(a.DetectedText, ", "),
	)
}

// Client annotates raw video bytes with speech, label and on-screen text features.
type Client struct {
	api          *videointelligence.Client
	languageCode string
	logger       zerolog.Logger
}

// New dials the Video Intelligence API with the configured service account.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("google client email and private key are required")
	}

	creds, err := CredentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	api, err := videointelligence.NewClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("create video intelligence client: %w", err)
	}

	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en-US"
	}

	return &Client{
		api:          api,
		languageCode: lang,
		logger:       logger.With().Str("component", "videointel").Logger(),
	}, nil
}

// Annotate submits the video and blocks until the long-running annotation finishes.
func (c *Client) Annotate(ctx context.Context, video []byte) (Annotation, error) {
	ctx, span := tracer.Start(ctx, "videointel.Annotate")
	defer span.End()
	span.SetAttributes(attribute.Int("video.bytes", len(video)))

	start := time.Now()
	op, err := c.api.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputContent: video,
		Features: []videointelligencepb.Feature{
			videointelligencepb.Feature_TEXT_DETECTION,
			videointelligencepb.Feature_LABEL_DETECTION,
			videointelligencepb.Feature_SPEECH_TRANSCRIPTION,
		},
		VideoContext: &videointelligencepb.VideoContext{
			SpeechTranscriptionConfig: &videointelligencepb.SpeechTranscriptionConfig{
				LanguageCode:               c.languageCode,
				EnableAutomaticPunctuation: true,
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "annotate request failed")
		return Annotation{}, fmt.Errorf("annotate video: %w", err)
	}

	resp, err := op.Wait(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "annotation operation failed")
		return Annotation{}, fmt.Errorf("wait for annotation: %w", err)
	}

	annotation := Summarize(resp)
	c.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("transcripts", len(annotation.Transcripts)).
		Int("labels", len(annotation.Labels)).
		Int("texts", len(annotation.DetectedText)).
		Msg("video annotated")

	return annotation, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// Summarize extracts transcripts, segment labels and detected text from the first result.
func Summarize(resp *videointelligencepb.AnnotateVideoResponse) Annotation {
	var out Annotation
	if resp == nil || len(resp.GetAnnotationResults()) == 0 {
		return out
	}

	result := resp.GetAnnotationResults()[0]
	for _, transcription := range result.GetSpeechTranscriptions() {
		alternatives := transcription.GetAlternatives()
		if len(alternatives) == 0 {
			out.Transcripts = append(out.Transcripts, "")
			continue
		}
		out.Transcripts = append(out.Transcripts, alternatives[0].GetTranscript())
	}
	for _, label := range result.GetSegmentLabelAnnotations() {
		out.Labels = append(out.Labels, label.GetEntity().GetDescription())
	}
	for _, text := range result.GetTextAnnotations() {
		out.DetectedText = append(out.DetectedText, text.GetText())
	}

	return out
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id,omitempty"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// CredentialsJSON builds a service-account key document. Escaped newlines in
// the private key are expanded so keys can be stored on a single env line.
func CredentialsJSON(cfg Config) ([]byte, error) {
	payload, err := json.Marshal(serviceAccount{
		Type:        "service_account",
		ProjectID:   cfg.ProjectID,
		PrivateKey:  strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n"),
		ClientEmail: cfg.ClientEmail,
		TokenURI:    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("encode google credentials: %w", err)
	}
	return payload, nil
}
