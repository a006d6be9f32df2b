package grading

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{
		SessionToken: "tok",
		Category:     models.CategoryCivil,
		Rubric:       testRubric(),
		MaxScore:     d("100"),
		References: []models.NamedReference{
			{Key: "first", Reference: models.Reference{Text: "reference text"}},
		},
		Answer:   models.WrittenAnswer{Motivation: "because", Resolution: "granted"},
		Document: "intro\n\nbecause\n\ngranted",
	}
}

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Provider() string { return "fake" }
func (f *fakeCompleter) Model() string    { return "fake-model" }
func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

type panickingTier struct{}

func (panickingTier) Name() string     { return "panicky" }
func (panickingTier) Configured() bool { return true }
func (panickingTier) Grade(context.Context, Request) (*Outcome, error) {
	panic("boom")
}

func TestChain_EndpointTier(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scores":{"groups":[{"key":"structure","score":8},{"key":"law","score":15}]},"total":23,"feedback":"solid"}`))
	}))
	defer server.Close()

	chain := NewChain(discardLogger(),
		NewEndpointTier(server.URL, "secret", "", server.Client()),
		NewStubTier(true),
	)

	result, err := chain.Grade(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "civil", gotPayload["spec"])
	assert.Equal(t, "100.00", gotPayload["max_score"])
	assert.Contains(t, gotPayload, "compiled_document")
	assert.Contains(t, gotPayload, "meta")

	assert.Equal(t, "external", result.Grader)
	assert.Equal(t, "solid", result.Feedback)
	assert.True(t, result.Total.Equal(d("23")))
	assert.NotEmpty(t, result.RawOutput)
}

func TestChain_FallsBackToChatOnEndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	completer := &fakeCompleter{reply: "```json\n{\"groups\":[{\"key\":\"structure\",\"score\":12},{\"key\":\"law\",\"score\":5}],\"feedback\":\"meh\"}\n```"}
	chain := NewChain(discardLogger(),
		NewEndpointTier(server.URL, "secret", "", server.Client()),
		NewChatTier(completer),
		NewStubTier(true),
	)

	result, err := chain.Grade(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "fake-model", result.Grader)
	assert.Equal(t, "fake", result.Params["provider"])
	assert.True(t, result.Total.Equal(d("15")), "structure is clamped to 10")
	assert.Contains(t, completer.user, "== FIRST DECISION ==")
	assert.Contains(t, completer.user, "CANDIDATE DOCUMENT:\nintro")
	assert.Contains(t, completer.user, `"deductions"`)
	assert.Equal(t, systemPrompt, completer.system)
}

func TestChain_FallsBackToStubOnParseFailure(t *testing.T) {
	chain := NewChain(discardLogger(),
		NewChatTier(&fakeCompleter{reply: "sorry, no json today"}),
		NewStubTier(true),
	)

	result, err := chain.Grade(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "stub", result.Grader)
	// 70% of 10 and of 20
	assert.True(t, result.Scores.Groups[0].Score.Equal(d("7")))
	assert.True(t, result.Scores.Groups[1].Score.Equal(d("14")))
	assert.True(t, result.Scores.Groups[0].Criteria[0].Score.Equal(d("2.8")))
	assert.True(t, result.Total.Equal(d("21")))
	assert.True(t, result.Total.LessThanOrEqual(testRubric().TotalMax))
}

func TestChain_AllTiersUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	chain := NewChain(discardLogger(),
		NewEndpointTier(url, "secret", "", nil),
		NewChatTier(&fakeCompleter{err: errors.New("connection refused")}),
		NewStubTier(true),
	)
	result, err := chain.Grade(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "stub", result.Grader)
	assert.True(t, result.Total.LessThanOrEqual(testRubric().TotalMax))
}

func TestChain_FailsWithoutStub(t *testing.T) {
	chain := NewChain(discardLogger(),
		NewChatTier(&fakeCompleter{err: errors.New("unauthorized")}),
		panickingTier{},
		NewStubTier(false),
	)

	_, err := chain.Grade(context.Background(), testRequest())
	require.Error(t, err)

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	require.Len(t, chainErr.Failures, 2)
	assert.Equal(t, "chat", chainErr.Failures[0].Tier)
	assert.Equal(t, "panicky", chainErr.Failures[1].Tier)

	var callErr *ExternalCallError
	assert.ErrorAs(t, err, &callErr)
	assert.True(t, strings.Contains(err.Error(), "unauthorized"))
}

func TestChain_NothingConfigured(t *testing.T) {
	chain := NewChain(discardLogger(), NewEndpointTier("", "", "", nil), NewChatTier(nil), NewStubTier(false))
	assert.Empty(t, chain.Tiers())

	_, err := chain.Grade(context.Background(), testRequest())
	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Empty(t, chainErr.Failures)
}

func TestOpenAICompleter(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"groups\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	completer := NewOpenAICompleter(server.URL+"/v1", "key", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	content, err := completer.Complete(ctx, "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"groups":[]}`, content)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, float64(1800), body["max_tokens"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])
}

func TestBuildRequest(t *testing.T) {
	started := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Minute)
	session := &models.AssessmentSession{
		Token:         "tok",
		Kind:          models.ExamKindPractice,
		Category:      models.CategoryCriminal,
		StartedAt:     started,
		FinishedAt:    &finished,
		KeypressCount: 120,
		PasteBlocked:  2,
	}
	item := &models.AssessmentItem{
		Points: d("100"),
		References: datatypes.NewJSONType(models.References{
			First:  &models.Reference{Text: strings.Repeat("x", 50)},
			Appeal: &models.Reference{Text: ""},
		}),
	}

	req := BuildRequest(session, item, testRubric(), models.WrittenAnswer{Motivation: "m"}, strings.Repeat("y", 500),
		finished.Add(time.Hour), Limits{ReferenceChars: 1000, DocumentChars: 300})

	assert.Equal(t, models.CategoryCriminal, req.Category)
	require.Len(t, req.References, 1, "empty references are dropped")
	assert.Equal(t, "first", req.References[0].Key)
	assert.True(t, strings.HasSuffix(req.Document, TruncationMarker))
	assert.Equal(t, 5400, req.Meta.DurationSeconds)
	assert.Equal(t, 120, req.Meta.KeypressCount)
}

type traceKey struct{}

// ctxRecorder keeps the trace value of the context each record was logged with.
type ctxRecorder struct {
	mu     *sync.Mutex
	traces map[string]any
}

func (h ctxRecorder) Enabled(context.Context, slog.Level) bool { return true }
func (h ctxRecorder) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h ctxRecorder) WithGroup(string) slog.Handler             { return h }
func (h ctxRecorder) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.traces[r.Message] = ctx.Value(traceKey{})
	return nil
}

func TestChain_LogsWithRequestContext(t *testing.T) {
	rec := ctxRecorder{mu: &sync.Mutex{}, traces: map[string]any{}}
	chain := NewChain(slog.New(rec), panickingTier{}, NewStubTier(true))

	ctx := context.WithValue(context.Background(), traceKey{}, "req-42")
	result, err := chain.Grade(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, "stub", result.Grader)

	assert.Equal(t, "req-42", rec.traces["Grading tier failed"])
	assert.Equal(t, "req-42", rec.traces["Grading tier succeeded"])
}
