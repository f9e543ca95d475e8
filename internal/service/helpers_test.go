package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/internal/models"
	"github.com/noah-isme/complaint-intake-api/internal/repository"
	"github.com/noah-isme/complaint-intake-api/pkg/ai"
	"github.com/noah-isme/complaint-intake-api/pkg/videointel"
)

var errUpstreamDown = errors.New("upstream unavailable")

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// scriptedChat returns the queued replies in order and records every prompt.
type scriptedChat struct {
	mu      sync.Mutex
	replies []ai.Reply
	errs    []error
	calls   [][]ai.Message
}

func newScriptedChat(replies ...ai.Reply) *scriptedChat {
	return &scriptedChat{replies: replies}
}

func (c *scriptedChat) failOn(call int, err error) *scriptedChat {
	for len(c.errs) <= call {
		c.errs = append(c.errs, nil)
	}
	c.errs[call] = err
	return c
}

func (c *scriptedChat) Name() string { return "scripted" }

func (c *scriptedChat) Chat(_ context.Context, messages ...ai.Message) (ai.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := len(c.calls)
	c.calls = append(c.calls, messages)
	if call < len(c.errs) && c.errs[call] != nil {
		return ai.Reply{}, c.errs[call]
	}
	if call >= len(c.replies) {
		return ai.Reply{}, fmt.Errorf("unexpected chat call %d", call)
	}
	return c.replies[call], nil
}

func (c *scriptedChat) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type stubEmbedder struct {
	inputs [][]string
	err    error
}

func (e *stubEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.inputs = append(e.inputs, inputs)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		out[i] = []float32{float32(len(input)%7) + 1, 1}
	}
	return out, nil
}

type stubTranscriber struct {
	transcript string
	err        error
	fileName   string
	payload    []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, fileName string, audio io.Reader) (string, error) {
	s.fileName = fileName
	s.payload, _ = io.ReadAll(audio)
	return s.transcript, s.err
}

type stubVision struct {
	description string
	err         error
	url         string
	prompt      string
}

func (s *stubVision) DescribeImage(_ context.Context, imageURL, prompt string) (string, error) {
	s.url = imageURL
	s.prompt = prompt
	return s.description, s.err
}

type stubStorage struct {
	url   string
	err   error
	names []string
}

func (s *stubStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	s.names = append(s.names, name)
	_, _ = io.Copy(io.Discard, reader)
	return s.url, s.err
}

type stubAnnotator struct {
	annotation videointel.Annotation
	err        error
	calls      int
}

func (s *stubAnnotator) Annotate(_ context.Context, _ []byte) (videointel.Annotation, error) {
	s.calls++
	return s.annotation, s.err
}

type recordingEvents struct {
	recorded []dto.ComplaintResponse
	purged   []int
}

func (e *recordingEvents) Recorded(_ context.Context, complaint dto.ComplaintResponse) {
	e.recorded = append(e.recorded, complaint)
}

func (e *recordingEvents) Purged(_ context.Context, count int) {
	e.purged = append(e.purged, count)
}

func setupComplaintService(t *testing.T) (ComplaintService, *gorm.DB, *recordingEvents) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Complaint{}))

	events := &recordingEvents{}
	svc := NewComplaintService(repository.NewComplaintRepository(db), events, validator.New(), testLogger())
	return svc, db, events
}

func countComplaints(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Complaint{}).Count(&count).Error)
	return count
}

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	wavBytes = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00")
	mp4Bytes = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom\x00\x00\x00\x08free")
)
