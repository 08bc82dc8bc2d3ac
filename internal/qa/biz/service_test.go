package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm/hash"
	qaopts "github.com/kart-io/anchora/pkg/options/qa"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

func newTestService(t *testing.T, chat *scriptedChat) (*Service, *store.MemoryStore) {
	t.Helper()

	embedder := hash.NewProviderWithDimension(64)
	vs := store.NewMemoryStore()

	chunker, err := NewChunker(100, 20)
	require.NoError(t, err)

	extractor := NewCitationExtractor("/api/documents/view")
	sessions := NewSessionManager(time.Minute, 10)
	t.Cleanup(sessions.Close)

	svc := NewService(
		NewLoaderRegistry(),
		NewIndexer(chunker, embedder, vs, 2, 4),
		NewRetriever(embedder, vs, 7),
		NewGenerator(chat, testPrompt, time.Second, time.Millisecond),
		extractor,
		NewEvaluator(embedder, extractor, qaopts.NewEvaluationOptions()),
		sessions,
		vs,
		nil,
	)
	return svc, vs
}

func indexDoc(t *testing.T, svc *Service, source, text string) int {
	t.Helper()
	res, err := svc.IndexDocument(context.Background(), &Document{Source: source, Text: text})
	require.NoError(t, err)
	return res.Chunks
}

func TestServiceChatOnEmptyIndex(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})

	_, err := svc.Chat(context.Background(), &ChatRequest{Question: "anything?"})
	require.ErrorIs(t, err, errors.ErrQAEmptyIndex)
}

func TestServiceChatRequiresQuestion(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})

	_, err := svc.Chat(context.Background(), &ChatRequest{})
	require.ErrorIs(t, err, errors.ErrQAInvalidRequest)
}

func TestServiceChatEndToEnd(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"Article 5 establishes mutual defense [Source: treaty.txt, Page: ?].",
	}}
	svc, _ := newTestService(t, chat)

	indexDoc(t, svc, "treaty.txt", "Article 5 establishes mutual defense obligations among the members of the alliance.")

	result, err := svc.Chat(context.Background(), &ChatRequest{Question: "What does Article 5 establish?"})
	require.NoError(t, err)

	assert.Contains(t, result.Response, "mutual defense")
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "treaty.txt", result.Sources[0].Source)
	assert.NotEmpty(t, result.ConversationID)
	assert.WithinDuration(t, time.Now(), result.Timestamp, time.Minute)
}

func TestServiceChatContinuesConversation(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"First answer [Source: doc.txt, Page: ?].",
		"Second answer [Source: doc.txt, Page: ?].",
	}}
	svc, _ := newTestService(t, chat)
	indexDoc(t, svc, "doc.txt", "Some document content long enough to form a chunk for retrieval purposes.")

	first, err := svc.Chat(context.Background(), &ChatRequest{Question: "first?"})
	require.NoError(t, err)

	second, err := svc.Chat(context.Background(), &ChatRequest{
		Question:       "second?",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	// The follow-up generation carried the first exchange as chat history.
	require.Len(t, chat.messages, 1)
	msgs := chat.messages[0]
	require.Len(t, msgs, 3)
	assert.Equal(t, "first?", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "First answer")
	assert.Contains(t, msgs[2].Content, "second?")
}

func TestServiceReindexReplacesChunks(t *testing.T) {
	svc, vs := newTestService(t, &scriptedChat{})

	n1 := indexDoc(t, svc, "doc.txt", "short content for a single chunk")
	require.Equal(t, 1, n1)

	// A longer re-index produces more chunks and fully replaces the old
	// generation.
	long := ""
	for i := 0; i < 30; i++ {
		long += "repeated sentence content here. "
	}
	n2 := indexDoc(t, svc, "doc.txt", long)
	require.Greater(t, n2, 1)

	total, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n2, total)
}

func TestServiceDeleteSource(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	n := indexDoc(t, svc, "doc.txt", "content that will be deleted shortly after indexing completes")

	deleted, err := svc.DeleteSource(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, n, deleted)

	deleted, err = svc.DeleteSource(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	_, err = svc.Chat(context.Background(), &ChatRequest{Question: "anything?"})
	require.ErrorIs(t, err, errors.ErrQAEmptyIndex)
}

func TestServiceListIndexed(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	indexDoc(t, svc, "a.txt", "first document content with enough text to chunk properly")
	indexDoc(t, svc, "b.txt", "second document content with enough text to chunk properly")

	docs, err := svc.ListIndexed(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Source)
	assert.NotZero(t, docs[0].ChunkCount)
	assert.False(t, docs[0].LastIndexedAt.IsZero())
}

func TestServiceEvaluateGeneratesWhenNoAnswer(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"The document describes mutual defense obligations [Source: treaty.txt, Page: ?].",
	}}
	svc, _ := newTestService(t, chat)
	indexDoc(t, svc, "treaty.txt", "The alliance treaty describes mutual defense obligations among member states in detail.")

	report, err := svc.Evaluate(context.Background(), &EvaluateRequest{Question: "What are the obligations?"})
	require.NoError(t, err)
	assert.Equal(t, 1, chat.calls)
	assert.GreaterOrEqual(t, report.OverallScore, 0.0)
	assert.LessOrEqual(t, report.OverallScore, 1.0)
}

func TestServiceEvaluateProvidedAnswer(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	indexDoc(t, svc, "treaty.txt", "The alliance treaty describes mutual defense obligations among member states in detail.")

	report, err := svc.Evaluate(context.Background(), &EvaluateRequest{
		Question: "What are the obligations?",
		Answer:   "The treaty describes mutual defense obligations among member states [Source: treaty.txt, Page: ?].",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.CitationAccuracy.Ratio)
	assert.Equal(t, 1, report.CitationAccuracy.ValidCitations)
	assert.Empty(t, report.CitationAccuracy.MissingSources)
}

func TestServiceEvaluateSuppliedContextChunks(t *testing.T) {
	// Nothing is indexed; the supplied chunks alone feed the evaluation.
	svc, _ := newTestService(t, &scriptedChat{})

	report, err := svc.Evaluate(context.Background(), &EvaluateRequest{
		Question: "What are the obligations?",
		Answer:   "The treaty describes mutual defense obligations among member states [Source: treaty.txt, Page: ?].",
		ContextChunks: []ContextChunk{
			{Source: "treaty.txt", Page: 1, Text: "The alliance treaty describes mutual defense obligations among member states in detail."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ContextRelevance.TotalChunks)
	assert.Equal(t, 1.0, report.CitationAccuracy.Ratio)
}

func TestServiceEvaluateEmptyContextChunks(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})

	report, err := svc.Evaluate(context.Background(), &EvaluateRequest{
		Question:      "What are the obligations?",
		Answer:        "An answer scored against no context at all, by request.",
		ContextChunks: []ContextChunk{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ContextRelevance.TotalChunks)
	assert.Equal(t, 0.0, report.ContextRelevance.Average)
	assert.Equal(t, 0.0, report.Faithfulness.Score)
}

func TestServiceRetrieverTopKDefault(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})

	long := ""
	for i := 0; i < 60; i++ {
		long += "sentence number content for chunking purposes extended. "
	}
	n := indexDoc(t, svc, "big.txt", long)
	require.Greater(t, n, 7)

	chunks, err := svc.retriever.Retrieve(context.Background(), "sentence content", RetrieveOptions{})
	require.NoError(t, err)
	assert.Len(t, chunks, 7)
}
