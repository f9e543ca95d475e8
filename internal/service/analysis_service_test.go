package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
	"github.com/noah-isme/complaint-intake-api/pkg/ai"
	"github.com/noah-isme/complaint-intake-api/pkg/vectorstore"
	"github.com/noah-isme/complaint-intake-api/pkg/videointel"
)

type pipelineFixture struct {
	chat        *scriptedChat
	embedder    *stubEmbedder
	index       *vectorstore.MemoryIndex
	storage     *stubStorage
	vision      *stubVision
	transcriber *stubTranscriber
	annotator   *stubAnnotator
	complaints  ComplaintService
	events      *recordingEvents
	service     AnalysisService
	count       func() int64
}

func newPipelineFixture(t *testing.T, chat *scriptedChat) *pipelineFixture {
	t.Helper()

	complaints, db, events := setupComplaintService(t)
	f := &pipelineFixture{
		chat:        chat,
		embedder:    &stubEmbedder{},
		index:       vectorstore.NewMemoryIndex(2),
		storage:     &stubStorage{url: "https://cdn.example.com/images/receipt.png"},
		vision:      &stubVision{description: "A bank statement showing two identical charges."},
		transcriber: &stubTranscriber{transcript: "My card was charged twice"},
		annotator:   &stubAnnotator{},
		complaints:  complaints,
		events:      events,
		count:       func() int64 { return countComplaints(t, db) },
	}

	require.NoError(t, f.index.Upsert(context.Background(), []vectorstore.Document{
		{ID: "1", Content: `{"product":"Credit card","sub_product":"Billing dispute"}`, Embedding: []float32{1, 1}},
		{ID: "2", Content: `{"product":"Mortgage","sub_product":"Escrow"}`, Embedding: []float32{0, 1}},
	}))

	inputs := NewInputNormalizer(f.storage, f.vision, f.transcriber, f.annotator, 1, testLogger())
	retriever := NewSelfQueryRetriever(chat, f.embedder, f.index, 4, testLogger())
	f.service = NewAnalysisService(inputs, NewClassifier(chat, testLogger()), NewCategoryResolver(chat, retriever, testLogger()), complaints, testLogger())
	return f
}

func TestAnalyzeMessageComplaintIsCategorisedAndPersisted(t *testing.T) {
	chat := newScriptedChat(
		ai.TextReply("Yes, the text is a complaint. The customer reports a duplicate card charge."),
		ai.TextReply(`{"query": "duplicate card charge", "filter": "NO_FILTER"}`),
		ai.TextReply("Product: Credit card\nSub-product: Billing dispute"),
	)
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "My card was charged twice", UserID: "user-1"})
	require.NoError(t, err)

	require.True(t, result.Complaint)
	require.Equal(t, "The customer reports a duplicate card charge.", result.Summary)
	require.Equal(t, "Credit card", *result.Product)
	require.Equal(t, "Billing dispute", *result.SubProduct)
	require.NotNil(t, result.Record)
	require.Equal(t, "user-1", result.Record.UserID)
	require.True(t, result.Record.Complaint)
	require.Equal(t, int64(1), f.count())
	require.Len(t, f.events.recorded, 1)

	require.Equal(t, 3, chat.callCount())
	classify := chat.calls[0]
	require.Equal(t, ai.System(classifySystemPrompt), classify[0])
	require.Equal(t, `Is the following text a complaint? If yes, provide a summary in plain text without using markdown: "My card was charged twice"`, classify[1].Content)

	require.Equal(t, [][]string{{"duplicate card charge"}}, f.embedder.inputs)

	categorise := chat.calls[2]
	require.Equal(t, categorySystemPrompt, categorise[0].Content)
	require.True(t, strings.Contains(categorise[1].Content, `Relevant documents: "{"product":"Credit card","sub_product":"Billing dispute"}`+"\n"))
}

func TestAnalyzeMessageNonComplaintSkipsResolver(t *testing.T) {
	chat := newScriptedChat(ai.TextReply("No. This is a question about business hours."))
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "What are your business hours?", UserID: "user-1"})
	require.NoError(t, err)

	require.False(t, result.Complaint)
	require.Nil(t, result.Product)
	require.Nil(t, result.SubProduct)
	require.Nil(t, result.Record)
	require.Equal(t, 1, chat.callCount(), "resolver must not run for non-complaints")
	require.Empty(t, f.embedder.inputs)
	require.Zero(t, f.count())
}

func TestAnalyzeMessageWithoutUserIDDoesNotPersist(t *testing.T) {
	chat := newScriptedChat(
		ai.TextReply("Yes. Overdraft fee charged without notice."),
		ai.TextReply("not json"),
		ai.TextReply("Product: Checking account"),
	)
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "I was charged an overdraft fee"})
	require.NoError(t, err)
	require.True(t, result.Complaint)
	require.Equal(t, "Checking account", *result.Product)
	require.Nil(t, result.SubProduct)
	require.Nil(t, result.Record)
	require.Zero(t, f.count())

	require.Equal(t, [][]string{{"I was charged an overdraft fee"}}, f.embedder.inputs, "unparsable self-query falls back to raw text")
}

func TestAnalyzeMessagePlaceholdersFillMissingCategory(t *testing.T) {
	chat := newScriptedChat(
		ai.TextReply("yes - the ATM kept my card"),
		ai.TextReply(`{"query": "atm card retained"}`),
		ai.TextReply(""),
	)
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "The ATM ate my card", UserID: "user-9"})
	require.NoError(t, err)
	require.Nil(t, result.Product)
	require.NotNil(t, result.Record)
	require.Equal(t, placeholderProduct, result.Record.Product)
	require.Equal(t, placeholderSubProduct, result.Record.SubProduct)
}

func TestAnalyzeMessageUpstreamFailureDoesNotPersist(t *testing.T) {
	chat := newScriptedChat(
		ai.TextReply("Yes, the text is a complaint. Charged twice."),
		ai.TextReply(`{"query": "charged twice"}`),
	).failOn(2, errUpstreamDown)
	f := newPipelineFixture(t, chat)

	_, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "My card was charged twice", UserID: "user-1"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUpstream))
	require.True(t, errors.Is(err, errUpstreamDown))
	require.Zero(t, f.count())
}

func TestAnalyzeMessageRetrievalFailurePropagates(t *testing.T) {
	chat := newScriptedChat(
		ai.TextReply("Yes. Charged twice."),
		ai.TextReply(`{"query": "charged twice"}`),
	)
	f := newPipelineFixture(t, chat)
	f.embedder.err = errUpstreamDown

	_, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "charged twice", UserID: "user-1"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Zero(t, f.count())
}

func TestAnalyzeMessageRequiresText(t *testing.T) {
	f := newPipelineFixture(t, newScriptedChat())

	_, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{})
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, f.chat.callCount())
}

func TestAnalyzeMessageNormalizesBlockReplies(t *testing.T) {
	chat := newScriptedChat(ai.BlocksReply(ai.Block{Type: "text", Text: "No."}, ai.Block{Type: "tool_use"}, ai.Block{Type: "text", Text: "Just a greeting."}))
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeMessage(context.Background(), dto.MessageAnalysisRequest{Text: "hello"})
	require.NoError(t, err)
	require.False(t, result.Complaint)
	require.Equal(t, "No.  Just a greeting.", result.Summary)
}

func TestAnalyzeAudioTranscribesThenClassifies(t *testing.T) {
	chat := newScriptedChat(ai.TextReply("No, that is not a complaint."))
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeAudio(context.Background(), Upload{Data: wavBytes}, "")
	require.NoError(t, err)
	require.False(t, result.Complaint)
	require.Equal(t, "audio.wav", f.transcriber.fileName)
	require.Equal(t, wavBytes, f.transcriber.payload)
	require.True(t, strings.Contains(chat.calls[0][1].Content, `"My card was charged twice"`))
}

func TestAnalyzeAudioTranscriptionFailure(t *testing.T) {
	chat := newScriptedChat()
	f := newPipelineFixture(t, chat)
	f.transcriber.err = errUpstreamDown

	_, err := f.service.AnalyzeAudio(context.Background(), Upload{Name: "voice.wav", Data: wavBytes}, "user-1")
	require.ErrorIs(t, err, ErrUpstream)
	require.Zero(t, chat.callCount())
	require.Zero(t, f.count())
}

func TestAnalyzeAudioRejectsNonAudio(t *testing.T) {
	f := newPipelineFixture(t, newScriptedChat())

	_, err := f.service.AnalyzeAudio(context.Background(), Upload{Name: "notes.txt", Data: []byte("plain text notes")}, "")
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	_, err = f.service.AnalyzeAudio(context.Background(), Upload{}, "")
	require.ErrorIs(t, err, ErrUploadRequired)

	large := append(append([]byte{}, wavBytes...), make([]byte, 1024*1024)...)
	_, err = f.service.AnalyzeAudio(context.Background(), Upload{Data: large}, "")
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestDescribeImageUploadsThenDescribes(t *testing.T) {
	f := newPipelineFixture(t, newScriptedChat())
	f.vision.description = "  A cracked phone screen.  "

	result, err := f.service.DescribeImage(context.Background(), Upload{Name: "phone.png", Data: pngBytes})
	require.NoError(t, err)
	require.Equal(t, "A cracked phone screen.", result.Description)
	require.Equal(t, f.storage.url, result.URL)
	require.Equal(t, f.storage.url, f.vision.url)
	require.Equal(t, imageDescriptionPrompt, f.vision.prompt)
}

func TestDescribeImageStorageFailure(t *testing.T) {
	f := newPipelineFixture(t, newScriptedChat())
	f.storage.err = errUpstreamDown

	_, err := f.service.DescribeImage(context.Background(), Upload{Name: "phone.png", Data: pngBytes})
	require.ErrorIs(t, err, ErrUpstream)
	require.Empty(t, f.vision.url)
}

func TestAnalyzeMessageImageUsesLabelledReply(t *testing.T) {
	chat := newScriptedChat(ai.TextReply("This is a complaint.\nSummary: Charged twice, statement attached\nProduct: Credit card\nSub-product: Billing dispute"))
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeMessageImage(context.Background(), "See attached statement", Upload{Name: "statement.png", Data: pngBytes}, "user-2")
	require.NoError(t, err)
	require.True(t, result.Complaint)
	require.Equal(t, "Charged twice, statement attached", result.Summary)
	require.Equal(t, "Credit card", *result.Product)
	require.Equal(t, "Billing dispute", *result.SubProduct)
	require.NotNil(t, result.Record)
	require.Equal(t, int64(1), f.count())

	prompt := chat.calls[0][1].Content
	require.True(t, strings.Contains(prompt, `Text: "See attached statement"`))
	require.True(t, strings.Contains(prompt, `Image description: "A bank statement showing two identical charges."`))
	require.True(t, strings.Contains(prompt, `Image URL: "https://cdn.example.com/images/receipt.png"`))
}

func TestAnalyzeMessageImageRequiresBoth(t *testing.T) {
	f := newPipelineFixture(t, newScriptedChat())

	_, err := f.service.AnalyzeMessageImage(context.Background(), "", Upload{Data: pngBytes}, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.service.AnalyzeMessageImage(context.Background(), "text", Upload{}, "")
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, f.storage.names)
}

func TestAnalyzeVideoStructuredReply(t *testing.T) {
	chat := newScriptedChat(ai.TextReply("```json\n{\"is_complaint\": true, \"summary\": \"Router shows error 503\", \"product\": \"Internet\", \"sub_product\": \"Router\"}\n```"))
	f := newPipelineFixture(t, chat)
	f.annotator.annotation = videointel.Annotation{
		Transcripts:  []string{"my router", "keeps failing"},
		Labels:       []string{"router"},
		DetectedText: []string{"ERROR 503"},
	}

	result, err := f.service.AnalyzeVideo(context.Background(), Upload{Name: "clip.mp4", Data: mp4Bytes}, "user-3")
	require.NoError(t, err)
	require.Equal(t, dto.VideoAnalysisResult{IsComplaint: true, Summary: "Router shows error 503", Product: "Internet", SubProduct: "Router", Record: result.Record}, result)
	require.NotNil(t, result.Record)
	require.Equal(t, "Internet", result.Record.Product)

	require.Equal(t, structuredSystemPrompt, chat.calls[0][0].Content)
	require.True(t, strings.Contains(chat.calls[0][1].Content, "\"Transcription: my router keeps failing\nLabels: router\nDetected Text: ERROR 503\""))
}

func TestAnalyzeVideoEmptyEvidenceDegrades(t *testing.T) {
	chat := newScriptedChat(ai.TextReply("I could not find anything in this video."))
	f := newPipelineFixture(t, chat)

	result, err := f.service.AnalyzeVideo(context.Background(), Upload{Name: "silent.mp4", Data: mp4Bytes}, "user-3")
	require.NoError(t, err)
	require.False(t, result.IsComplaint)
	require.Equal(t, placeholderSummary, result.Summary)
	require.Equal(t, placeholderProduct, result.Product)
	require.Equal(t, placeholderSubProduct, result.SubProduct)
	require.Nil(t, result.Record)
	require.Zero(t, f.count())
	require.Equal(t, 1, f.annotator.calls)
}

func TestAnalyzeVideoAnnotationFailure(t *testing.T) {
	chat := newScriptedChat()
	f := newPipelineFixture(t, chat)
	f.annotator.err = errUpstreamDown

	_, err := f.service.AnalyzeVideo(context.Background(), Upload{Data: mp4Bytes}, "user-3")
	require.ErrorIs(t, err, ErrUpstream)
	require.Zero(t, chat.callCount())
}

func TestVideoWithoutAnnotatorIsUpstreamFailure(t *testing.T) {
	inputs := NewInputNormalizer(&stubStorage{}, &stubVision{}, &stubTranscriber{}, nil, 1, testLogger())

	_, err := inputs.Video(context.Background(), Upload{Data: mp4Bytes})
	require.ErrorIs(t, err, ErrUpstream)
}
