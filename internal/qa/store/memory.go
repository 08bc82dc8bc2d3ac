package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/anchora/internal/pkg/textutil"
)

type memoryEntry struct {
	chunk Chunk
	// seq is the global insertion order, used to break score ties so
	// repeated searches return a stable ordering.
	seq uint64
}

type memorySource struct {
	entries   []memoryEntry
	indexedAt time.Time
}

// MemoryStore is an in-process VectorStore backed by maps. It is the
// default driver for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[string]*memorySource
	nextSeq uint64

	// writers serializes Upsert and DeleteBySource per source.
	writersMu sync.Mutex
	writers   map[string]*sync.Mutex
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources: make(map[string]*memorySource),
		writers: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) sourceWriter(source string) *sync.Mutex {
	s.writersMu.Lock()
	defer s.writersMu.Unlock()
	m, ok := s.writers[source]
	if !ok {
		m = &sync.Mutex{}
		s.writers[source] = m
	}
	return m
}

// Upsert atomically replaces the chunks of a source. The new generation
// is staged outside the store lock and swapped in as a single map write,
// so readers never observe a partially indexed source.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("upsert requires at least one chunk")
	}

	source := chunks[0].Source
	for _, c := range chunks {
		if c.Source != source {
			return fmt.Errorf("upsert chunks span multiple sources: %q and %q", source, c.Source)
		}
	}

	w := s.sourceWriter(source)
	w.Lock()
	defer w.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]memoryEntry, len(chunks))
	for i, c := range chunks {
		s.nextSeq++
		entries[i] = memoryEntry{chunk: c, seq: s.nextSeq}
	}

	s.sources[source] = &memorySource{
		entries:   entries,
		indexedAt: time.Now(),
	}
	return nil
}

// Search scores every chunk by cosine similarity normalized into [0, 1]
// and returns the top opts.TopK in descending order. Ties keep insertion
// order.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var filter map[string]bool
	if len(opts.SourceFilter) > 0 {
		filter = make(map[string]bool, len(opts.SourceFilter))
		for _, src := range opts.SourceFilter {
			filter[src] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// seq rides along inside the sorted element so the tie-break key moves
	// with its chunk during swaps.
	type scoredEntry struct {
		chunk RetrievedChunk
		seq   uint64
	}

	var scored []scoredEntry
	for source, ms := range s.sources {
		if filter != nil && !filter[source] {
			continue
		}
		for _, e := range ms.entries {
			score := textutil.NormalizeCosineSimilarity(textutil.CosineSimilarity(vector, e.chunk.Embedding))
			scored = append(scored, scoredEntry{
				chunk: RetrievedChunk{Chunk: e.chunk, Score: score},
				seq:   e.seq,
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].chunk.Score != scored[j].chunk.Score {
			return scored[i].chunk.Score > scored[j].chunk.Score
		}
		return scored[i].seq < scored[j].seq
	})

	if opts.TopK > 0 && len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}

	out := make([]RetrievedChunk, len(scored))
	for i, e := range scored {
		out[i] = e.chunk
	}
	return out, nil
}

// DeleteBySource removes a source's chunks and returns the exact count
// removed. A missing source removes zero chunks.
func (s *MemoryStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	w := s.sourceWriter(source)
	w.Lock()
	defer w.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sources[source]
	if !ok {
		return 0, nil
	}
	delete(s.sources, source)
	return len(ms.entries), nil
}

// ListSources returns per-source chunk counts and index timestamps.
func (s *MemoryStore) ListSources(ctx context.Context) ([]IndexedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]IndexedDocument, 0, len(s.sources))
	for source, ms := range s.sources {
		docs = append(docs, IndexedDocument{
			Source:        source,
			ChunkCount:    len(ms.entries),
			LastIndexedAt: ms.indexedAt,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

// Count returns the total chunk count across all sources.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, ms := range s.sources {
		total += len(ms.entries)
	}
	return total, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(context.Context) error { return nil }
