package biz

import (
	"context"
	"regexp"
	"strings"

	"github.com/kart-io/anchora/internal/pkg/textutil"
	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm"
	qaopts "github.com/kart-io/anchora/pkg/options/qa"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// minClaimLength filters out sentence fragments too short to carry a
// checkable claim, measured in runes.
const minClaimLength = 20

// claimPrefixRegex strips discourse markers so claim embeddings compare
// on content rather than framing.
var claimPrefixRegex = regexp.MustCompile(`^(?i)(according to|based on|the document|it|this)\b[\s,:]*`)

// CitationAccuracy summarizes how the answer's citations check out
// against the retrieved sources.
type CitationAccuracy struct {
	TotalCitations   int      `json:"total_citations"`
	ValidCitations   int      `json:"valid_citations"`
	Ratio            float64  `json:"ratio"`
	MissingSources   []string `json:"missing_sources"`
	InvalidCitations []string `json:"invalid_citations"`
}

// ContextRelevance summarizes how related the retrieved chunks are to
// the question. Similarities are normalized into [0, 1].
type ContextRelevance struct {
	Average        float64 `json:"average_similarity"`
	Min            float64 `json:"min_similarity"`
	Max            float64 `json:"max_similarity"`
	RelevantChunks int     `json:"relevant_chunks"`
	TotalChunks    int     `json:"total_chunks"`
}

// Faithfulness summarizes how well the answer's claims are supported by
// the retrieved context.
type Faithfulness struct {
	Score             float64  `json:"faithfulness_score"`
	TotalClaims       int      `json:"total_claims"`
	SupportedClaims   int      `json:"supported_claims"`
	UnsupportedClaims []string `json:"unsupported_claims,omitempty"`
}

// EvaluationReport scores one answer against its retrieved context.
type EvaluationReport struct {
	CitationAccuracy CitationAccuracy `json:"citation_accuracy"`
	ContextRelevance ContextRelevance `json:"context_relevance"`
	Faithfulness     Faithfulness     `json:"answer_faithfulness"`
	OverallScore     float64          `json:"overall_score"`
	Recommendations  []string         `json:"recommendations,omitempty"`
}

// Evaluator scores answers on citation accuracy, context relevance, and
// faithfulness. Chunks that carry a stored embedding are compared as-is;
// the rest are re-embedded through the same provider used at query time,
// so scores reflect what retrieval actually saw.
type Evaluator struct {
	embedder  llm.EmbeddingProvider
	extractor *CitationExtractor
	opts      *qaopts.EvaluationOptions
}

// NewEvaluator creates an evaluator.
func NewEvaluator(embedder llm.EmbeddingProvider, extractor *CitationExtractor, opts *qaopts.EvaluationOptions) *Evaluator {
	if opts == nil {
		opts = qaopts.NewEvaluationOptions()
	}
	return &Evaluator{embedder: embedder, extractor: extractor, opts: opts}
}

// Evaluate scores an answer against its question and retrieved chunks.
// An empty chunk set zeroes the relevance and faithfulness components
// rather than failing.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, chunks []store.RetrievedChunk) (*EvaluationReport, error) {
	report := &EvaluationReport{}

	citations := e.extractor.Extract(answer, chunks)
	report.CitationAccuracy = citationAccuracy(citations)

	if len(chunks) > 0 {
		chunkVectors, err := e.chunkVectors(ctx, chunks)
		if err != nil {
			return nil, err
		}

		relevance, err := e.scoreRelevance(ctx, question, chunkVectors)
		if err != nil {
			return nil, err
		}
		report.ContextRelevance = *relevance

		faithfulness, err := e.scoreFaithfulness(ctx, answer, chunkVectors)
		if err != nil {
			return nil, err
		}
		report.Faithfulness = *faithfulness
	} else {
		report.ContextRelevance = ContextRelevance{}
		report.Faithfulness = Faithfulness{}
	}

	report.OverallScore = (report.CitationAccuracy.Ratio + report.ContextRelevance.Average + report.Faithfulness.Score) / 3

	report.Recommendations = e.recommend(report)
	return report, nil
}

func citationAccuracy(citations *CitationResult) CitationAccuracy {
	acc := CitationAccuracy{
		TotalCitations:   citations.TotalCitations(),
		ValidCitations:   citations.ValidCitations(),
		Ratio:            citations.CitationAccuracy(),
		MissingSources:   citations.MissingSources,
		InvalidCitations: citations.InvalidCitations,
	}
	if acc.MissingSources == nil {
		acc.MissingSources = []string{}
	}
	if acc.InvalidCitations == nil {
		acc.InvalidCitations = []string{}
	}
	return acc
}

// chunkVectors returns one embedding per chunk, reusing stored vectors
// and batching only the chunks that arrived as bare text.
func (e *Evaluator) chunkVectors(ctx context.Context, chunks []store.RetrievedChunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	var missing []int
	var texts []string
	for i, c := range chunks {
		if len(c.Embedding) > 0 {
			vectors[i] = c.Embedding
			continue
		}
		missing = append(missing, i)
		texts = append(texts, c.Text)
	}

	if len(texts) > 0 {
		embedded, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, errors.ErrQAEvalFailed.WithCause(err)
		}
		if len(embedded) != len(texts) {
			return nil, errors.ErrQAEvalFailed.WithMessagef("embedding count mismatch: want %d, got %d", len(texts), len(embedded))
		}
		for j, idx := range missing {
			vectors[idx] = embedded[j]
		}
	}
	return vectors, nil
}

func (e *Evaluator) scoreRelevance(ctx context.Context, question string, chunkVectors [][]float32) (*ContextRelevance, error) {
	queryVector, err := e.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, errors.ErrQAEvalFailed.WithCause(err)
	}

	rel := &ContextRelevance{TotalChunks: len(chunkVectors), Min: 1}
	var sum float64
	for _, v := range chunkVectors {
		sim := textutil.NormalizeCosineSimilarity(textutil.CosineSimilarity(queryVector, v))
		sum += sim
		if sim < rel.Min {
			rel.Min = sim
		}
		if sim > rel.Max {
			rel.Max = sim
		}
		if sim > e.opts.RelevanceThreshold {
			rel.RelevantChunks++
		}
	}
	rel.Average = sum / float64(len(chunkVectors))
	return rel, nil
}

func (e *Evaluator) scoreFaithfulness(ctx context.Context, answer string, chunkVectors [][]float32) (*Faithfulness, error) {
	claims := ExtractClaims(answer)
	f := &Faithfulness{TotalClaims: len(claims)}
	if len(claims) == 0 {
		// supported/total with no claims scores 0, same as no citations.
		return f, nil
	}

	claimVectors, err := e.embedder.Embed(ctx, claims)
	if err != nil {
		return nil, errors.ErrQAEvalFailed.WithCause(err)
	}
	if len(claimVectors) != len(claims) {
		return nil, errors.ErrQAEvalFailed.WithMessagef("embedding count mismatch: want %d, got %d", len(claims), len(claimVectors))
	}

	for i, cv := range claimVectors {
		best := -1.0
		for _, chv := range chunkVectors {
			sim := textutil.NormalizeCosineSimilarity(textutil.CosineSimilarity(cv, chv))
			if sim > best {
				best = sim
			}
		}
		if best > e.opts.SupportThreshold {
			f.SupportedClaims++
		} else {
			f.UnsupportedClaims = append(f.UnsupportedClaims, claims[i])
		}
	}

	f.Score = float64(f.SupportedClaims) / float64(f.TotalClaims)
	return f, nil
}

func (e *Evaluator) recommend(report *EvaluationReport) []string {
	var recs []string
	if report.CitationAccuracy.Ratio < e.opts.CitationRecThreshold {
		recs = append(recs, e.opts.CitationRecommendation)
	}
	if report.ContextRelevance.Average < e.opts.RelevanceRecThreshold {
		recs = append(recs, e.opts.RelevanceRecommendation)
	}
	if report.Faithfulness.Score < e.opts.FaithfulnessRecThreshold {
		recs = append(recs, e.opts.FaithfulnessRecommendation)
	}
	return recs
}

// ExtractClaims splits an answer into checkable claims: citations are
// stripped, the text is split on sentence punctuation, short fragments
// are dropped, and leading discourse markers are removed. The returned
// claims keep the answer's original wording otherwise.
func ExtractClaims(answer string) []string {
	withoutCitations := citationRegex.ReplaceAllString(answer, "")

	sentences := textutil.SplitSentences(withoutCitations, minClaimLength)
	claims := make([]string, 0, len(sentences))
	for _, s := range sentences {
		claim := strings.TrimSpace(claimPrefixRegex.ReplaceAllString(s, ""))
		if claim == "" {
			continue
		}
		claims = append(claims, claim)
	}
	return claims
}
