package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/anchora/internal/pkg/textutil"
	"github.com/kart-io/anchora/pkg/component/milvus"
)

var chunkOutputFields = []string{"source", "page", "text", "start_offset", "end_offset"}

// MilvusStore is a VectorStore backed by a Milvus collection.
type MilvusStore struct {
	client     *milvus.Client
	collection string

	writersMu sync.Mutex
	writers   map[string]*sync.Mutex
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore creates the collection if needed and returns a store
// bound to it.
func NewMilvusStore(ctx context.Context, client *milvus.Client, collection string, dimension int) (*MilvusStore, error) {
	schema := &milvus.CollectionSchema{
		Name:        collection,
		Description: "Document chunks with embeddings for grounded QA",
		Dimension:   dimension,
		PKMaxLen:    512,
		MetaFields: []milvus.MetaField{
			{Name: "source", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "page", DataType: entity.FieldTypeInt64},
			{Name: "text", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "start_offset", DataType: entity.FieldTypeInt64},
			{Name: "end_offset", DataType: entity.FieldTypeInt64},
			{Name: "indexed_at", DataType: entity.FieldTypeInt64},
		},
	}
	if err := client.CreateCollection(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to prepare collection %s: %w", collection, err)
	}

	return &MilvusStore{
		client:     client,
		collection: collection,
		writers:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *MilvusStore) sourceWriter(source string) *sync.Mutex {
	s.writersMu.Lock()
	defer s.writersMu.Unlock()
	m, ok := s.writers[source]
	if !ok {
		m = &sync.Mutex{}
		s.writers[source] = m
	}
	return m
}

func sourceFilterExpr(source string) string {
	return fmt.Sprintf("source == %s", strconv.Quote(source))
}

// Upsert replaces all chunks of a source. The previous generation is
// deleted first; if the insert fails, the partially written generation
// is deleted again so the source never ends up half indexed.
func (s *MilvusStore) Upsert(ctx context.Context, chunks []Chunk) error {
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

	if _, err := s.client.DeleteByFilter(ctx, s.collection, sourceFilterExpr(source)); err != nil {
		return fmt.Errorf("failed to clear previous chunks of %s: %w", source, err)
	}

	indexedAt := time.Now().Unix()
	data := &milvus.InsertData{
		IDs:        make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]any{
			"source":       make([]any, len(chunks)),
			"page":         make([]any, len(chunks)),
			"text":         make([]any, len(chunks)),
			"start_offset": make([]any, len(chunks)),
			"end_offset":   make([]any, len(chunks)),
			"indexed_at":   make([]any, len(chunks)),
		},
	}
	for i, c := range chunks {
		data.IDs[i] = c.ID
		data.Embeddings[i] = c.Embedding
		data.Metadata["source"][i] = c.Source
		data.Metadata["page"][i] = int64(c.Page)
		data.Metadata["text"][i] = c.Text
		data.Metadata["start_offset"][i] = int64(c.StartOffset)
		data.Metadata["end_offset"][i] = int64(c.EndOffset)
		data.Metadata["indexed_at"][i] = indexedAt
	}

	if err := s.client.Insert(ctx, s.collection, data); err != nil {
		// Roll back whatever subset made it in.
		if _, delErr := s.client.DeleteByFilter(context.WithoutCancel(ctx), s.collection, sourceFilterExpr(source)); delErr != nil {
			return fmt.Errorf("failed to insert chunks of %s (rollback also failed: %v): %w", source, delErr, err)
		}
		return fmt.Errorf("failed to insert chunks of %s: %w", source, err)
	}

	return nil
}

// Search performs a vector similarity search, optionally restricted to
// the given sources.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]RetrievedChunk, error) {
	filter := ""
	if len(opts.SourceFilter) > 0 {
		quoted := make([]string, len(opts.SourceFilter))
		for i, src := range opts.SourceFilter {
			quoted[i] = strconv.Quote(src)
		}
		filter = "source in ["
		for i, q := range quoted {
			if i > 0 {
				filter += ", "
			}
			filter += q
		}
		filter += "]"
	}

	results, err := s.client.Search(ctx, s.collection, vector, opts.TopK, filter, chunkOutputFields)
	if err != nil {
		return nil, err
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		c := RetrievedChunk{Score: textutil.NormalizeCosineSimilarity(float64(r.Score))}
		c.ID = r.ID
		if v, ok := r.Metadata["source"].(string); ok {
			c.Source = v
		}
		if v, ok := r.Metadata["page"].(int64); ok {
			c.Page = int(v)
		}
		if v, ok := r.Metadata["text"].(string); ok {
			c.Text = v
		}
		if v, ok := r.Metadata["start_offset"].(int64); ok {
			c.StartOffset = int(v)
		}
		if v, ok := r.Metadata["end_offset"].(int64); ok {
			c.EndOffset = int(v)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// DeleteBySource removes every chunk of a source and returns the count.
func (s *MilvusStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	w := s.sourceWriter(source)
	w.Lock()
	defer w.Unlock()

	deleted, err := s.client.DeleteByFilter(ctx, s.collection, sourceFilterExpr(source))
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// ListSources aggregates chunk counts and last index times per source.
func (s *MilvusStore) ListSources(ctx context.Context) ([]IndexedDocument, error) {
	rows, err := s.client.QueryByFilter(ctx, s.collection, `chunk_id != ""`, []string{"source", "indexed_at"})
	if err != nil {
		return nil, err
	}

	bySource := make(map[string]*IndexedDocument)
	order := make([]string, 0)
	for _, row := range rows {
		source, _ := row["source"].(string)
		if source == "" {
			continue
		}
		doc, ok := bySource[source]
		if !ok {
			doc = &IndexedDocument{Source: source}
			bySource[source] = doc
			order = append(order, source)
		}
		doc.ChunkCount++
		if ts, ok := row["indexed_at"].(int64); ok {
			at := time.Unix(ts, 0)
			if at.After(doc.LastIndexedAt) {
				doc.LastIndexedAt = at
			}
		}
	}

	docs := make([]IndexedDocument, 0, len(order))
	for _, source := range order {
		docs = append(docs, *bySource[source])
	}
	return docs, nil
}

// Count returns the total number of chunks in the collection.
func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, s.collection)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the underlying Milvus client.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
