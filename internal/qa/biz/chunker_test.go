package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anchora/pkg/utils/errors"
)

func TestNewChunkerRejectsBadConfig(t *testing.T) {
	_, err := NewChunker(0, 0)
	require.ErrorIs(t, err, errors.ErrQAInvalidConfig)

	_, err = NewChunker(100, 100)
	require.ErrorIs(t, err, errors.ErrQAInvalidConfig)

	_, err = NewChunker(100, 150)
	require.ErrorIs(t, err, errors.ErrQAInvalidConfig)

	_, err = NewChunker(100, -1)
	require.ErrorIs(t, err, errors.ErrQAInvalidConfig)

	_, err = NewChunker(100, 20)
	require.NoError(t, err)
}

func TestChunkerSlidingWindow(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("x", 2400)
	chunks := c.Chunk(&Document{Source: "treaty.txt", Text: text})

	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 800, chunks[1].StartOffset)
	assert.Equal(t, 1600, chunks[2].StartOffset)

	assert.Len(t, []rune(chunks[0].Text), 1000)
	assert.Len(t, []rune(chunks[1].Text), 1000)
	assert.Len(t, []rune(chunks[2].Text), 800)

	assert.Equal(t, "treaty.txt:0", chunks[0].ID)
	assert.Equal(t, "treaty.txt", chunks[1].Source)
}

func TestChunkerReconstruction(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 17) // 170 chars
	chunks := c.Chunk(&Document{Source: "doc.txt", Text: text})
	require.NotEmpty(t, chunks)

	// Dropping each chunk's leading overlap and concatenating yields the
	// original text.
	var b strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch.Text)
		if i == 0 {
			b.WriteString(string(runes))
		} else {
			b.WriteString(string(runes[10:]))
		}
	}
	assert.Equal(t, text, b.String())
}

func TestChunkerCountsRunesNotBytes(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	// Multi-byte characters still count as one each.
	text := strings.Repeat("日本語の文章です。ここ", 3) // 33 runes
	chunks := c.Chunk(&Document{Source: "jp.txt", Text: text})

	require.Len(t, chunks, 4)
	for i := 0; i < 3; i++ {
		assert.Len(t, []rune(chunks[i].Text), 10)
	}
	assert.Len(t, []rune(chunks[3].Text), 9)
	assert.Equal(t, 8, chunks[1].StartOffset)
}

func TestChunkerEmptyDocument(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunk(&Document{Source: "empty.txt", Text: ""})
	assert.Empty(t, chunks)
}

func TestChunkerSingleShortChunk(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunk(&Document{Source: "short.txt", Text: "hello"})
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 5, chunks[0].EndOffset)
}

func TestChunkerPageAttachment(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("a", 250)
	doc := &Document{
		Source: "paged.pdf",
		Text:   text,
		Pages: []PageSpan{
			{Page: 1, Start: 0},
			{Page: 2, Start: 120},
			{Page: 3, Start: 240},
		},
	}

	chunks := c.Chunk(doc)
	require.Len(t, chunks, 3)

	// Each chunk gets the page containing its starting offset, even when
	// the chunk spans a page boundary.
	assert.Equal(t, 1, chunks[0].Page) // starts at 0
	assert.Equal(t, 1, chunks[1].Page) // starts at 80
	assert.Equal(t, 2, chunks[2].Page) // starts at 160
}

func TestChunkerNoPagesMeansZero(t *testing.T) {
	c, err := NewChunker(100, 0)
	require.NoError(t, err)

	chunks := c.Chunk(&Document{Source: "plain.txt", Text: strings.Repeat("a", 150)})
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 0, chunks[1].Page)
}
