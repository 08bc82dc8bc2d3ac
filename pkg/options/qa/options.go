// Package qa provides configuration options for the grounded QA pipeline.
package qa

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/anchora/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// DefaultSystemPrompt instructs the model to answer only from the supplied
// context and to cite sources inline.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions using ONLY the provided context.
If the context does not contain the answer, say that you cannot answer from the available documents.
Always cite your sources inline using the format [Source: <filename>, Page: <number>].

Context:
{{context}}

Question: {{question}}

Answer:`

// Options contains QA pipeline configuration.
type Options struct {
	// ChunkSize is the chunk window size in Unicode characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks in Unicode characters.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the vector store collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// UploadDir is the directory holding uploaded documents.
	UploadDir string `json:"upload-dir" mapstructure:"upload-dir"`

	// SystemPrompt is the answer generation prompt template. It must
	// contain the {{context}} and {{question}} placeholders.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// QueryTimeout bounds a single answer generation call.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// RetryWait is the pause before the single retry of a transient
	// generation failure.
	RetryWait time.Duration `json:"retry-wait" mapstructure:"retry-wait"`

	// SessionTTL is how long idle conversation sessions are kept.
	SessionTTL time.Duration `json:"session-ttl" mapstructure:"session-ttl"`

	// MaxHistory is the maximum number of turns kept per session.
	MaxHistory int `json:"max-history" mapstructure:"max-history"`

	// IndexWorkers is the number of concurrent embedding batches during indexing.
	IndexWorkers int `json:"index-workers" mapstructure:"index-workers"`

	// EmbedBatchSize is the number of chunks embedded per provider call.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// Evaluation holds response quality evaluation settings.
	Evaluation *EvaluationOptions `json:"evaluation" mapstructure:"evaluation"`
}

// EvaluationOptions configures the response quality evaluator.
type EvaluationOptions struct {
	// RelevanceThreshold is the similarity above which a chunk counts as
	// relevant to the question.
	RelevanceThreshold float64 `json:"relevance-threshold" mapstructure:"relevance-threshold"`

	// SupportThreshold is the similarity above which a claim counts as
	// supported by a context chunk.
	SupportThreshold float64 `json:"support-threshold" mapstructure:"support-threshold"`

	// CitationRecThreshold triggers the citation recommendation below it.
	CitationRecThreshold float64 `json:"citation-rec-threshold" mapstructure:"citation-rec-threshold"`

	// RelevanceRecThreshold triggers the relevance recommendation below it.
	RelevanceRecThreshold float64 `json:"relevance-rec-threshold" mapstructure:"relevance-rec-threshold"`

	// FaithfulnessRecThreshold triggers the faithfulness recommendation below it.
	FaithfulnessRecThreshold float64 `json:"faithfulness-rec-threshold" mapstructure:"faithfulness-rec-threshold"`

	// CitationRecommendation is emitted when citation accuracy is low.
	CitationRecommendation string `json:"citation-recommendation" mapstructure:"citation-recommendation"`

	// RelevanceRecommendation is emitted when context relevance is low.
	RelevanceRecommendation string `json:"relevance-recommendation" mapstructure:"relevance-recommendation"`

	// FaithfulnessRecommendation is emitted when faithfulness is low.
	FaithfulnessRecommendation string `json:"faithfulness-recommendation" mapstructure:"faithfulness-recommendation"`
}

// NewEvaluationOptions creates default evaluation options.
func NewEvaluationOptions() *EvaluationOptions {
	return &EvaluationOptions{
		RelevanceThreshold:         0.5,
		SupportThreshold:           0.5,
		CitationRecThreshold:       0.8,
		RelevanceRecThreshold:      0.6,
		FaithfulnessRecThreshold:   0.7,
		CitationRecommendation:     "Improve citation formatting: ensure answers cite sources using [Source: file, Page: N]",
		RelevanceRecommendation:    "Retrieved context relevance is low: consider adjusting chunk size or embedding model",
		FaithfulnessRecommendation: "Answer contains claims not supported by context: strengthen grounding instructions",
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		TopK:           7,
		Collection:     "anchora_chunks",
		EmbeddingDim:   768,
		UploadDir:      "_output/uploads",
		SystemPrompt:   DefaultSystemPrompt,
		QueryTimeout:   60 * time.Second,
		RetryWait:      2 * time.Second,
		SessionTTL:     30 * time.Minute,
		MaxHistory:     20,
		IndexWorkers:   4,
		EmbedBatchSize: 16,
		Evaluation:     NewEvaluationOptions(),
	}
}

// AddFlags adds flags for QA options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, join+"qa.chunk-size", o.ChunkSize, "Chunk window size in characters.")
	fs.IntVar(&o.ChunkOverlap, join+"qa.chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks in characters.")
	fs.IntVar(&o.TopK, join+"qa.top-k", o.TopK, "Number of chunks retrieved per question.")
	fs.StringVar(&o.Collection, join+"qa.collection", o.Collection, "Vector store collection name.")
	fs.IntVar(&o.EmbeddingDim, join+"qa.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.UploadDir, join+"qa.upload-dir", o.UploadDir, "Directory for uploaded documents.")
	fs.DurationVar(&o.QueryTimeout, join+"qa.query-timeout", o.QueryTimeout, "Timeout for a single answer generation call.")
	fs.DurationVar(&o.RetryWait, join+"qa.retry-wait", o.RetryWait, "Wait before retrying a transient generation failure.")
	fs.DurationVar(&o.SessionTTL, join+"qa.session-ttl", o.SessionTTL, "Idle conversation session lifetime.")
	fs.IntVar(&o.MaxHistory, join+"qa.max-history", o.MaxHistory, "Maximum turns kept per session.")
	fs.IntVar(&o.IndexWorkers, join+"qa.index-workers", o.IndexWorkers, "Concurrent embedding batches during indexing.")
	fs.IntVar(&o.EmbedBatchSize, join+"qa.embed-batch-size", o.EmbedBatchSize, "Chunks embedded per provider call.")

	if o.Evaluation == nil {
		o.Evaluation = NewEvaluationOptions()
	}
	fs.Float64Var(&o.Evaluation.RelevanceThreshold, join+"qa.evaluation.relevance-threshold", o.Evaluation.RelevanceThreshold, "Similarity above which a chunk counts as relevant.")
	fs.Float64Var(&o.Evaluation.SupportThreshold, join+"qa.evaluation.support-threshold", o.Evaluation.SupportThreshold, "Similarity above which a claim counts as supported.")
	fs.Float64Var(&o.Evaluation.CitationRecThreshold, join+"qa.evaluation.citation-rec-threshold", o.Evaluation.CitationRecThreshold, "Citation accuracy below which a recommendation is emitted.")
	fs.Float64Var(&o.Evaluation.RelevanceRecThreshold, join+"qa.evaluation.relevance-rec-threshold", o.Evaluation.RelevanceRecThreshold, "Context relevance below which a recommendation is emitted.")
	fs.Float64Var(&o.Evaluation.FaithfulnessRecThreshold, join+"qa.evaluation.faithfulness-rec-threshold", o.Evaluation.FaithfulnessRecThreshold, "Faithfulness below which a recommendation is emitted.")
}

// Validate validates the QA options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk-overlap must be non-negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap (%d) must be smaller than chunk-size (%d)", o.ChunkOverlap, o.ChunkSize))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.SystemPrompt != "" {
		if !strings.Contains(o.SystemPrompt, "{{context}}") || !strings.Contains(o.SystemPrompt, "{{question}}") {
			errs = append(errs, fmt.Errorf("system-prompt must contain {{context}} and {{question}} placeholders"))
		}
	}
	if o.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("query-timeout must be positive"))
	}
	return errs
}

// Complete completes the QA options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.Evaluation == nil {
		o.Evaluation = NewEvaluationOptions()
	}
	if o.IndexWorkers <= 0 {
		o.IndexWorkers = 4
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 16
	}
	return nil
}
