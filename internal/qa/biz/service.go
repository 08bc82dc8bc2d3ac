package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// ChatRequest is a question against the indexed corpus.
type ChatRequest struct {
	// Question is the user's question.
	Question string `json:"question" binding:"required"`

	// ConversationID continues an existing conversation when set.
	ConversationID string `json:"conversation_id"`

	// Sources restricts retrieval to the named documents.
	Sources []string `json:"sources"`

	// TopK overrides the default retrieval depth when positive.
	TopK int `json:"top_k"`
}

// ChatResult is a grounded answer with its citations.
type ChatResult struct {
	Response       string       `json:"response"`
	Sources        []SourceInfo `json:"sources"`
	ConversationID string       `json:"conversation_id"`
	Timestamp      time.Time    `json:"timestamp"`
}

// IndexResult reports one indexed document.
type IndexResult struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks_count"`
}

// ContextChunk is a caller-supplied context passage for evaluation.
// Embedding and Score are optional; chunks without an embedding are
// re-embedded before scoring.
type ContextChunk struct {
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Score     float64   `json:"score,omitempty"`
}

// EvaluateRequest asks for a quality score. When ContextChunks is set
// (including an explicit empty list) the supplied chunks are evaluated
// as-is; otherwise context is retrieved for the question. When Answer is
// empty the service generates one first and scores that.
type EvaluateRequest struct {
	Question      string         `json:"question" binding:"required"`
	Answer        string         `json:"answer"`
	ContextChunks []ContextChunk `json:"context_chunks"`
	Sources       []string       `json:"sources"`
}

// Service wires the QA pipeline together: load, chunk, embed, store,
// retrieve, generate, cite, evaluate.
type Service struct {
	loaders   *LoaderRegistry
	indexer   *Indexer
	retriever *Retriever
	generator *Generator
	extractor *CitationExtractor
	evaluator *Evaluator
	sessions  *SessionManager
	store     store.VectorStore

	// queryCache is optional; nil disables caching.
	queryCache *QueryCache
}

// NewService assembles the QA service.
func NewService(
	loaders *LoaderRegistry,
	indexer *Indexer,
	retriever *Retriever,
	generator *Generator,
	extractor *CitationExtractor,
	evaluator *Evaluator,
	sessions *SessionManager,
	vs store.VectorStore,
	queryCache *QueryCache,
) *Service {
	return &Service{
		loaders:    loaders,
		indexer:    indexer,
		retriever:  retriever,
		generator:  generator,
		extractor:  extractor,
		evaluator:  evaluator,
		sessions:   sessions,
		store:      vs,
		queryCache: queryCache,
	}
}

// Chat answers a question grounded in the indexed documents.
func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req.Question == "" {
		return nil, errors.ErrQAInvalidRequest.WithMessage("question is required")
	}

	session := s.sessions.GetOrCreate(req.ConversationID)
	history := session.Messages()

	// Cached responses are only valid for history-free questions; a
	// follow-up depends on the conversation so far.
	if s.queryCache != nil && len(history) == 0 {
		if cached, ok := s.queryCache.Get(ctx, req.Question, req.Sources); ok {
			s.sessions.Record(session, req.Question, cached.Response)
			return &ChatResult{
				Response:       cached.Response,
				Sources:        cached.Sources,
				ConversationID: session.ID(),
				Timestamp:      time.Now(),
			}, nil
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, req.Question, RetrieveOptions{
		TopK:    req.TopK,
		Sources: req.Sources,
	})
	if err != nil {
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, req.Question, chunks, history)
	if err != nil {
		return nil, err
	}

	citations := s.extractor.Extract(answer, chunks)
	s.sessions.Record(session, req.Question, answer)

	result := &ChatResult{
		Response:       answer,
		Sources:        citations.Sources,
		ConversationID: session.ID(),
		Timestamp:      time.Now(),
	}

	if s.queryCache != nil && len(history) == 0 {
		s.queryCache.Set(ctx, req.Question, req.Sources, result)
	}
	return result, nil
}

// IndexFile loads, chunks, embeds, and stores a document from disk.
func (s *Service) IndexFile(ctx context.Context, path string) (*IndexResult, error) {
	doc, err := s.loaders.Load(path)
	if err != nil {
		return nil, err
	}
	return s.IndexDocument(ctx, doc)
}

// IndexDocument chunks, embeds, and stores an already loaded document.
func (s *Service) IndexDocument(ctx context.Context, doc *Document) (*IndexResult, error) {
	n, err := s.indexer.Index(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return &IndexResult{Source: doc.Source, Chunks: n}, nil
}

// DeleteSource removes every chunk of a source and returns the exact
// number removed. Deleting an unknown source removes zero chunks and is
// not an error.
func (s *Service) DeleteSource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, errors.ErrQAInvalidRequest.WithMessage("source is required")
	}

	n, err := s.store.DeleteBySource(ctx, source)
	if err != nil {
		return 0, errors.ErrQADeleteFailed.WithCause(err)
	}
	if n > 0 {
		s.invalidateCache(ctx)
		logger.Infow("deleted document", "source", source, "chunks", n)
	}
	return n, nil
}

// ListIndexed returns a summary of every indexed document.
func (s *Service) ListIndexed(ctx context.Context) ([]store.IndexedDocument, error) {
	docs, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, errors.ErrQAStoreFailure.WithCause(err)
	}
	return docs, nil
}

// SupportedExtensions returns the loadable file extensions.
func (s *Service) SupportedExtensions() []string {
	return s.loaders.Supported()
}

// Evaluate scores an answer for a question. Supplied context chunks are
// evaluated as a pure function of the request; without them, context is
// retrieved for the question. With no answer supplied, one is generated
// and scored.
func (s *Service) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluationReport, error) {
	if req.Question == "" {
		return nil, errors.ErrQAInvalidRequest.WithMessage("question is required")
	}

	var chunks []store.RetrievedChunk
	if req.ContextChunks != nil {
		chunks = make([]store.RetrievedChunk, len(req.ContextChunks))
		for i, c := range req.ContextChunks {
			chunks[i] = store.RetrievedChunk{
				Chunk: store.Chunk{
					Source:    c.Source,
					Page:      c.Page,
					Text:      c.Text,
					Embedding: c.Embedding,
				},
				Score: c.Score,
			}
		}
	} else {
		retrieved, err := s.retriever.Retrieve(ctx, req.Question, RetrieveOptions{Sources: req.Sources})
		if err != nil {
			return nil, err
		}
		chunks = retrieved
	}

	answer := req.Answer
	if answer == "" {
		generated, err := s.generator.Generate(ctx, req.Question, chunks, nil)
		if err != nil {
			return nil, err
		}
		answer = generated
	}

	return s.evaluator.Evaluate(ctx, req.Question, answer, chunks)
}

// ChunkCount returns the total number of indexed chunks.
func (s *Service) ChunkCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// EmbedderName returns the active embedding provider's name.
func (s *Service) EmbedderName() string {
	return s.indexer.embedder.Name()
}

// ChatProviderName returns the active chat provider's name.
func (s *Service) ChatProviderName() string {
	return s.generator.chat.Name()
}

// Close releases service resources.
func (s *Service) Close(ctx context.Context) error {
	s.sessions.Close()
	return s.store.Close(ctx)
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.queryCache != nil {
		s.queryCache.InvalidateAll(ctx)
	}
}
