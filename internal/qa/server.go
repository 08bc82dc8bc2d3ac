// Package qa assembles the grounded QA service from its components.
package qa

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kart-io/logger"

	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/internal/qa/router"
	"github.com/kart-io/anchora/internal/qa/store"
	milvuscomp "github.com/kart-io/anchora/pkg/component/milvus"
	rediscomp "github.com/kart-io/anchora/pkg/component/redis"
	"github.com/kart-io/anchora/pkg/llm"
	"github.com/kart-io/anchora/pkg/llm/resilience"
	cacheopts "github.com/kart-io/anchora/pkg/options/cache"
	httpopts "github.com/kart-io/anchora/pkg/options/http"
	llmopts "github.com/kart-io/anchora/pkg/options/llm"
	milvusopts "github.com/kart-io/anchora/pkg/options/milvus"
	qaopts "github.com/kart-io/anchora/pkg/options/qa"

	// Register the LLM provider backends.
	_ "github.com/kart-io/anchora/pkg/llm/hash"
	_ "github.com/kart-io/anchora/pkg/llm/ollama"
	_ "github.com/kart-io/anchora/pkg/llm/openai"
)

// Store driver names.
const (
	StoreDriverMemory = "memory"
	StoreDriverMilvus = "milvus"
)

// Config carries everything needed to assemble the server.
type Config struct {
	HTTP      *httpopts.Options
	QA        *qaopts.Options
	Embedding *llmopts.ProviderOptions
	Chat      *llmopts.ProviderOptions
	Cache     *cacheopts.Options

	// StoreDriver selects the vector store backend: memory or milvus.
	StoreDriver string
	Milvus      *milvusopts.Options
}

// Server is the assembled QA HTTP server.
type Server struct {
	cfg     *Config
	service *biz.Service
	httpSrv *http.Server
	redis   *rediscomp.Client
}

// NewServer builds all pipeline components from config.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	chat, err := llm.NewChatProvider(cfg.Chat.Provider, cfg.Chat.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}

	var redisClient *rediscomp.Client
	if cfg.Cache != nil && cfg.Cache.Enabled {
		redisClient, err = rediscomp.NewWithContext(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient.Client(), nil)
	}

	vs, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	chunker, err := biz.NewChunker(cfg.QA.ChunkSize, cfg.QA.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	extractor := biz.NewCitationExtractor("/api/documents/view")

	var queryCache *biz.QueryCache
	if redisClient != nil {
		queryCache = biz.NewQueryCache(redisClient.Client(), cfg.Cache.KeyPrefix, cfg.Cache.TTL)
	}

	service := biz.NewService(
		biz.NewLoaderRegistry(),
		biz.NewIndexer(chunker, embedder, vs, cfg.QA.IndexWorkers, cfg.QA.EmbedBatchSize),
		biz.NewRetriever(embedder, vs, cfg.QA.TopK),
		biz.NewGenerator(chat, cfg.QA.SystemPrompt, cfg.QA.QueryTimeout, cfg.QA.RetryWait),
		extractor,
		biz.NewEvaluator(embedder, extractor, cfg.QA.Evaluation),
		biz.NewSessionManager(cfg.QA.SessionTTL, cfg.QA.MaxHistory),
		vs,
		queryCache,
	)

	engine := router.New(cfg.HTTP.Mode, service, cfg.QA.UploadDir)
	engine.MaxMultipartMemory = cfg.HTTP.MaxUploadSize

	return &Server{
		cfg:     cfg,
		service: service,
		redis:   redisClient,
		httpSrv: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		},
	}, nil
}

func buildEmbedder(cfg *Config) (llm.EmbeddingProvider, error) {
	embedder, err := llm.NewEmbeddingProvider(cfg.Embedding.Provider, cfg.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	return resilience.NewResilientEmbeddingProvider(embedder, nil, nil), nil
}

func buildStore(ctx context.Context, cfg *Config) (store.VectorStore, error) {
	switch cfg.StoreDriver {
	case StoreDriverMemory, "":
		return store.NewMemoryStore(), nil
	case StoreDriverMilvus:
		client, err := milvuscomp.New(cfg.Milvus)
		if err != nil {
			return nil, err
		}
		return store.NewMilvusStore(ctx, client, cfg.QA.Collection, cfg.QA.EmbeddingDim)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server starting", "addr", s.cfg.HTTP.Addr, "store", s.cfg.StoreDriver)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http shutdown incomplete", "error", err)
	}
	if err := s.service.Close(shutdownCtx); err != nil {
		logger.Warnw("service close failed", "error", err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warnw("redis close failed", "error", err)
		}
	}
	return nil
}
