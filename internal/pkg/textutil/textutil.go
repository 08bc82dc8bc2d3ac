// Package textutil provides text processing helpers shared by the QA pipeline.
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity computes the cosine similarity of two vectors.
// The result is in [-1, 1]; 1 means identical direction, -1 opposite.
// Mismatched or empty vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity maps a cosine similarity into [0, 1]. Inputs
// outside [-1, 1], which can occur with inner-product scores on vectors
// that are not unit length, are clamped.
func NormalizeCosineSimilarity(similarity float64) float64 {
	n := (similarity + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// HashString returns the MD5 hex digest of s. Used for cache keys only.
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString truncates s to at most maxLen Unicode characters.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

var sentenceSplitRegex = regexp.MustCompile(`[.!?]+`)

// SplitSentences splits text on sentence-terminating punctuation and
// returns trimmed sentences longer than minLen Unicode characters.
func SplitSentences(text string, minLen int) []string {
	parts := sentenceSplitRegex.Split(text, -1)
	var sentences []string
	for _, part := range parts {
		sentence := strings.TrimSpace(part)
		if utf8.RuneCountInString(sentence) > minLen {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// ContainsString reports whether list contains s.
func ContainsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
