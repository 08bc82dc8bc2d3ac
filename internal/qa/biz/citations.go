package biz

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kart-io/anchora/internal/qa/store"
)

// citationRegex matches inline citations of the form
// [Source: treaty.txt, Page: 3] or [Source: notes.md, Page: ?].
var citationRegex = regexp.MustCompile(`\[Source:\s*([^,]+),\s*Page:\s*(\d+|\?)\]`)

// SourceInfo describes one cited source in a response.
type SourceInfo struct {
	// Source is the document identifier.
	Source string `json:"source"`

	// Page is the cited page, nil when the citation used "?".
	Page *int `json:"page,omitempty"`

	// DisplayText is the human-readable citation label.
	DisplayText string `json:"display_text"`

	// URL deep links to the cited location in the document viewer.
	URL string `json:"url"`
}

// CitationResult is the outcome of extracting citations from an answer.
type CitationResult struct {
	// Sources lists each valid citation once, in first-appearance order.
	Sources []SourceInfo `json:"sources"`

	// InvalidCitations lists citation strings whose source was not among
	// the retrieved chunks.
	InvalidCitations []string `json:"invalid_citations,omitempty"`

	// MissingSources lists retrieved sources the answer never cited.
	MissingSources []string `json:"missing_sources,omitempty"`

	// validCount counts valid citations including duplicates, so the
	// accuracy ratio weighs repeated citations the same as distinct ones.
	validCount int
}

// CitationExtractor parses inline citations and validates them against
// the retrieved chunk set. It performs no I/O and is deterministic.
type CitationExtractor struct {
	viewPath string
}

// NewCitationExtractor creates an extractor whose deep links are rooted
// at viewPath, for example "/api/documents/view".
func NewCitationExtractor(viewPath string) *CitationExtractor {
	if viewPath == "" {
		viewPath = "/api/documents/view"
	}
	return &CitationExtractor{viewPath: strings.TrimRight(viewPath, "/")}
}

// Extract finds every citation in the answer and classifies it. A
// citation is valid only when its source appears among the retrieved
// chunks; page numbers are not checked against chunk pages because a
// model may legitimately cite a page adjacent to a chunk boundary.
func (e *CitationExtractor) Extract(answer string, retrieved []store.RetrievedChunk) *CitationResult {
	retrievedSources := make(map[string]bool, len(retrieved))
	for _, c := range retrieved {
		retrievedSources[c.Source] = true
	}

	result := &CitationResult{Sources: []SourceInfo{}}
	seen := make(map[string]bool)
	cited := make(map[string]bool)

	for _, m := range citationRegex.FindAllStringSubmatch(answer, -1) {
		full, source, pageStr := m[0], strings.TrimSpace(m[1]), m[2]

		if !retrievedSources[source] {
			result.InvalidCitations = append(result.InvalidCitations, full)
			continue
		}
		cited[source] = true
		result.validCount++

		key := source + "|" + pageStr
		if seen[key] {
			continue
		}
		seen[key] = true

		info := SourceInfo{Source: source}
		if pageStr != "?" {
			page, err := strconv.Atoi(pageStr)
			if err == nil {
				info.Page = &page
			}
		}
		info.DisplayText = displayText(source, info.Page)
		info.URL = e.deepLink(source, info.Page)
		result.Sources = append(result.Sources, info)
	}

	for _, c := range retrieved {
		if !cited[c.Source] && !containsString(result.MissingSources, c.Source) {
			result.MissingSources = append(result.MissingSources, c.Source)
		}
	}

	return result
}

// CitationAccuracy returns the fraction of citations that are valid, or
// 0 when the answer contains no citations at all.
func (r *CitationResult) CitationAccuracy() float64 {
	total := r.TotalCitations()
	if total == 0 {
		return 0
	}
	return float64(r.validCount) / float64(total)
}

// TotalCitations returns the number of citations found in the answer,
// valid and invalid, counting duplicates.
func (r *CitationResult) TotalCitations() int {
	return r.validCount + len(r.InvalidCitations)
}

// ValidCitations returns the number of valid citations, counting
// duplicates.
func (r *CitationResult) ValidCitations() int {
	return r.validCount
}

func displayText(source string, page *int) string {
	if page != nil {
		return fmt.Sprintf("%s, p. %d", source, *page)
	}
	return source
}

func (e *CitationExtractor) deepLink(source string, page *int) string {
	link := e.viewPath + "/" + url.PathEscape(source)
	if page != nil {
		link += fmt.Sprintf("#page=%d", *page)
	}
	return link
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
