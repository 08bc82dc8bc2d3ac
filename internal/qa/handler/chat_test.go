package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/internal/qa/router"
	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm"
	"github.com/kart-io/anchora/pkg/llm/hash"
	qaopts "github.com/kart-io/anchora/pkg/options/qa"
)

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Chat(context.Context, []llm.Message) (string, error) {
	return s.reply, s.err
}

func (s *stubChat) Generate(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

func (s *stubChat) Name() string { return "stub" }

func newTestRouter(t *testing.T, chat llm.ChatProvider, uploadDir string) (*gin.Engine, *biz.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	embedder := hash.NewProviderWithDimension(32)
	vs := store.NewMemoryStore()

	chunker, err := biz.NewChunker(200, 40)
	require.NoError(t, err)

	extractor := biz.NewCitationExtractor("/api/documents/view")
	sessions := biz.NewSessionManager(time.Minute, 10)
	t.Cleanup(sessions.Close)

	prompt := "Context:\n{{context}}\n\nQuestion: {{question}}"
	svc := biz.NewService(
		biz.NewLoaderRegistry(),
		biz.NewIndexer(chunker, embedder, vs, 2, 4),
		biz.NewRetriever(embedder, vs, 7),
		biz.NewGenerator(chat, prompt, time.Second, time.Millisecond),
		extractor,
		biz.NewEvaluator(embedder, extractor, qaopts.NewEvaluationOptions()),
		sessions,
		vs,
		nil,
	)
	return router.New(gin.TestMode, svc, uploadDir), svc
}

func indexText(t *testing.T, svc *biz.Service, source, text string) {
	t.Helper()
	_, err := svc.IndexDocument(context.Background(), &biz.Document{Source: source, Text: text})
	require.NoError(t, err)
}

func doJSON(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChatReturnsWireShape(t *testing.T) {
	chat := &stubChat{reply: "Grounded answer [Source: doc.txt, Page: ?]."}
	engine, svc := newTestRouter(t, chat, t.TempDir())
	indexText(t, svc, "doc.txt", "Document content long enough to produce a chunk for retrieval in tests.")

	w := doJSON(engine, http.MethodPost, "/api/chat", `{"question":"what?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Response       string           `json:"response"`
		Sources        []biz.SourceInfo `json:"sources"`
		ConversationID string           `json:"conversation_id"`
		Timestamp      time.Time        `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Contains(t, body.Response, "Grounded answer")
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "doc.txt", body.Sources[0].Source)
	assert.NotEmpty(t, body.ConversationID)
	assert.False(t, body.Timestamp.IsZero())
}

func TestChatEmptyIndexReturns404(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	w := doJSON(engine, http.MethodPost, "/api/chat", `{"question":"anything?"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatMissingQuestionReturns400(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	w := doJSON(engine, http.MethodPost, "/api/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatQuotaExceededWireShape(t *testing.T) {
	chat := &stubChat{err: &llm.QuotaError{
		Message:    "monthly request quota exhausted",
		RetryAfter: 3600,
		QuotaLimit: 10000,
	}}
	engine, svc := newTestRouter(t, chat, t.TempDir())
	indexText(t, svc, "doc.txt", "Document content long enough to produce a chunk for retrieval in tests.")

	w := doJSON(engine, http.MethodPost, "/api/chat", `{"question":"what?"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "quota_exceeded", body["error"])
	assert.Equal(t, "monthly request quota exhausted", body["message"])
	assert.Equal(t, float64(3600), body["retry_after"])
	assert.Equal(t, float64(10000), body["quota_limit"])
	assert.Len(t, body, 4)
}

func TestChatQuotaExceededOmitsUnknownFields(t *testing.T) {
	chat := &stubChat{err: &llm.QuotaError{Message: "quota exhausted"}}
	engine, svc := newTestRouter(t, chat, t.TempDir())
	indexText(t, svc, "doc.txt", "Document content long enough to produce a chunk for retrieval in tests.")

	w := doJSON(engine, http.MethodPost, "/api/chat", `{"question":"what?"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "quota_exceeded", body["error"])
	assert.NotContains(t, body, "retry_after")
	assert.NotContains(t, body, "quota_limit")
}

func TestChatTransientFailureReturns502(t *testing.T) {
	chat := &stubChat{err: &llm.TransientError{Err: assert.AnError}}
	engine, svc := newTestRouter(t, chat, t.TempDir())
	indexText(t, svc, "doc.txt", "Document content long enough to produce a chunk for retrieval in tests.")

	w := doJSON(engine, http.MethodPost, "/api/chat", `{"question":"what?"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
