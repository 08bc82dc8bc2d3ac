package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anchora/internal/qa/store"
	qaopts "github.com/kart-io/anchora/pkg/options/qa"
)

// vectorTable maps exact texts to fixed embeddings so similarity
// outcomes are fully controlled.
type vectorTable struct {
	vectors map[string][]float32
	fallbck []float32
}

func (v *vectorTable) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if vec, ok := v.vectors[t]; ok {
			out[i] = vec
		} else {
			out[i] = v.fallbck
		}
	}
	return out, nil
}

func (v *vectorTable) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := v.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (v *vectorTable) Name() string { return "table" }

func evalChunk(source, text string) store.RetrievedChunk {
	return store.RetrievedChunk{
		Chunk: store.Chunk{Source: source, Page: 1, Text: text},
		Score: 0.9,
	}
}

func TestExtractClaims(t *testing.T) {
	answer := "According to the treaty, Article 5 establishes mutual defense obligations [Source: treaty.txt, Page: 3]. " +
		"It entered into force in 1949 after ratification. Short. " +
		"Based on the annex, members contribute proportionally to shared costs."

	claims := ExtractClaims(answer)
	require.Len(t, claims, 3)

	assert.Equal(t, "the treaty, Article 5 establishes mutual defense obligations", claims[0])
	assert.Equal(t, "entered into force in 1949 after ratification", claims[1])
	assert.Equal(t, "the annex, members contribute proportionally to shared costs", claims[2])
}

func TestExtractClaimsDropsShortFragments(t *testing.T) {
	claims := ExtractClaims("Yes. No. Maybe so, it depends entirely on the circumstances involved.")
	require.Len(t, claims, 1)
	assert.Contains(t, claims[0], "depends entirely")
}

func TestExtractClaimsEmptyAnswer(t *testing.T) {
	assert.Empty(t, ExtractClaims(""))
	assert.Empty(t, ExtractClaims("[Source: a.txt, Page: 1]"))
}

func TestEvaluateEmptyContextZeroes(t *testing.T) {
	e := NewEvaluator(&vectorTable{fallbck: []float32{1, 0}}, NewCitationExtractor(""), nil)

	report, err := e.Evaluate(context.Background(), "question", "Some answer without any grounding whatsoever.", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.CitationAccuracy.TotalCitations)
	assert.Equal(t, 0.0, report.CitationAccuracy.Ratio)
	assert.Equal(t, 0.0, report.ContextRelevance.Average)
	assert.Equal(t, 0, report.ContextRelevance.TotalChunks)
	assert.Equal(t, 0.0, report.Faithfulness.Score)
	assert.Equal(t, 0.0, report.OverallScore)
	assert.NotEmpty(t, report.Recommendations)
}

func TestEvaluateCitationAccuracyDetail(t *testing.T) {
	e := NewEvaluator(&vectorTable{fallbck: []float32{1, 0}}, NewCitationExtractor(""), nil)

	answer := "Claim supported by the treaty text here [Source: treaty.txt, Page: 1]. " +
		"Another claim from nowhere [Source: ghost.txt, Page: 2]."
	report, err := e.Evaluate(context.Background(), "q", answer, []store.RetrievedChunk{
		evalChunk("treaty.txt", "treaty content"),
		evalChunk("annex.txt", "annex content"),
	})
	require.NoError(t, err)

	acc := report.CitationAccuracy
	assert.Equal(t, 2, acc.TotalCitations)
	assert.Equal(t, 1, acc.ValidCitations)
	assert.InDelta(t, 0.5, acc.Ratio, 1e-9)
	assert.Equal(t, []string{"annex.txt"}, acc.MissingSources)
	require.Len(t, acc.InvalidCitations, 1)
	assert.Contains(t, acc.InvalidCitations[0], "ghost.txt")
}

func TestEvaluateRelevanceAggregates(t *testing.T) {
	question := "What does Article 5 say?"
	relevantText := "Article 5 establishes mutual defense obligations for members."
	irrelevantText := "The cafeteria menu changes weekly depending on the season."

	table := &vectorTable{
		vectors: map[string][]float32{
			question:       {1, 0},
			relevantText:   {1, 0},
			irrelevantText: {0, 1},
		},
		fallbck: []float32{0, 1},
	}

	e := NewEvaluator(table, NewCitationExtractor(""), nil)
	answer := "Article 5 establishes mutual defense obligations for members. [Source: treaty.txt, Page: 1]"

	report, err := e.Evaluate(context.Background(), question, answer, []store.RetrievedChunk{
		evalChunk("treaty.txt", relevantText),
		evalChunk("menu.txt", irrelevantText),
	})
	require.NoError(t, err)

	// Cosine 1 and 0 normalize to 1.0 and 0.5 on the [0, 1] scale.
	assert.InDelta(t, 0.75, report.ContextRelevance.Average, 1e-9)
	assert.InDelta(t, 0.5, report.ContextRelevance.Min, 1e-9)
	assert.InDelta(t, 1.0, report.ContextRelevance.Max, 1e-9)
	assert.Equal(t, 1, report.ContextRelevance.RelevantChunks)
	assert.Equal(t, 2, report.ContextRelevance.TotalChunks)
	assert.GreaterOrEqual(t, report.ContextRelevance.Average, report.ContextRelevance.Min)
	assert.LessOrEqual(t, report.ContextRelevance.Average, report.ContextRelevance.Max)
}

func TestEvaluateFaithfulness(t *testing.T) {
	supported := "Article 5 establishes mutual defense obligations for all members"
	unsupported := "The treaty was secretly amended in 1975 without any ratification"
	chunkText := "Article 5 establishes mutual defense obligations."

	table := &vectorTable{
		vectors: map[string][]float32{
			supported: {1, 0},
			chunkText: {1, 0},
		},
		fallbck: []float32{0, 1},
	}

	e := NewEvaluator(table, NewCitationExtractor(""), nil)
	answer := supported + ". The treaty was secretly amended in 1975 without any ratification."

	report, err := e.Evaluate(context.Background(), "q", answer, []store.RetrievedChunk{
		evalChunk("treaty.txt", chunkText),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Faithfulness.TotalClaims)
	assert.Equal(t, 1, report.Faithfulness.SupportedClaims)
	assert.InDelta(t, 0.5, report.Faithfulness.Score, 1e-9)
	require.Len(t, report.Faithfulness.UnsupportedClaims, 1)
	assert.Equal(t, unsupported, report.Faithfulness.UnsupportedClaims[0])
}

func TestEvaluateOverallIsEqualWeightedMean(t *testing.T) {
	question := "q"
	chunkText := "Article 5 establishes mutual defense obligations for members."

	table := &vectorTable{
		vectors: map[string][]float32{
			question:  {1, 0},
			chunkText: {1, 0},
		},
		fallbck: []float32{1, 0},
	}

	e := NewEvaluator(table, NewCitationExtractor(""), nil)
	answer := "Article 5 establishes mutual defense obligations for members [Source: treaty.txt, Page: 1]."

	report, err := e.Evaluate(context.Background(), question, answer, []store.RetrievedChunk{
		evalChunk("treaty.txt", chunkText),
	})
	require.NoError(t, err)

	expected := (report.CitationAccuracy.Ratio + report.ContextRelevance.Average + report.Faithfulness.Score) / 3
	assert.InDelta(t, expected, report.OverallScore, 1e-9)
	assert.InDelta(t, 1.0, report.OverallScore, 1e-9)
	assert.Empty(t, report.Recommendations)
}

func TestEvaluateNoClaimsScoresZeroFaithfulness(t *testing.T) {
	e := NewEvaluator(&vectorTable{fallbck: []float32{1, 0}}, NewCitationExtractor(""), nil)

	// Every sentence is under the claim length floor.
	report, err := e.Evaluate(context.Background(), "q", "Yes. No. Maybe.", []store.RetrievedChunk{
		evalChunk("doc.txt", "some document content"),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Faithfulness.TotalClaims)
	assert.Equal(t, 0, report.Faithfulness.SupportedClaims)
	assert.Equal(t, 0.0, report.Faithfulness.Score)
}

func TestEvaluateUsesSuppliedChunkEmbeddings(t *testing.T) {
	question := "q"
	// The table would embed the chunk text orthogonally to the question;
	// the stored vector matches it exactly, so the stored vector winning
	// proves re-embedding was skipped.
	table := &vectorTable{
		vectors: map[string][]float32{question: {1, 0}},
		fallbck: []float32{0, 1},
	}

	e := NewEvaluator(table, NewCitationExtractor(""), nil)
	chunk := evalChunk("doc.txt", "content")
	chunk.Embedding = []float32{1, 0}

	report, err := e.Evaluate(context.Background(), question, "An answer with no checkable claims.", []store.RetrievedChunk{chunk})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.ContextRelevance.Max, 1e-9)
}

func TestEvaluateRecommendations(t *testing.T) {
	opts := qaopts.NewEvaluationOptions()
	question := "q"
	table := &vectorTable{
		vectors: map[string][]float32{
			question:                     {1, 0, 0},
			"unrelated content entirely": {0, 1, 0},
		},
		fallbck: []float32{0, 0, 1},
	}

	e := NewEvaluator(table, NewCitationExtractor(""), opts)
	// No citations, irrelevant context, unsupported claims.
	answer := "This answer makes a completely ungrounded assertion about the topic."

	report, err := e.Evaluate(context.Background(), question, answer, []store.RetrievedChunk{
		evalChunk("doc.txt", "unrelated content entirely"),
	})
	require.NoError(t, err)

	assert.Contains(t, report.Recommendations, opts.CitationRecommendation)
	assert.Contains(t, report.Recommendations, opts.RelevanceRecommendation)
	assert.Contains(t, report.Recommendations, opts.FaithfulnessRecommendation)
}
