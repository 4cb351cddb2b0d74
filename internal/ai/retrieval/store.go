// Package retrieval keeps a small trusted document set in memory,
// indexed by embedding, and answers nearest-neighbor queries by cosine
// similarity. Search is O(N) over the set, which is plenty for a
// knowledge base measured in hundreds of documents.
package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Metadata describes a document's provenance.
type Metadata struct {
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	SourceID  string    `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is one indexed entry. Its embedding is computed on ingest
// and replaced whenever the same id is re-indexed.
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"-"`
}

// SearchOptions tunes one query.
type SearchOptions struct {
	TopK                int
	SimilarityThreshold float64
	TypeFilter          string
}

// SearchResult pairs documents with their aligned scores.
type SearchResult struct {
	Documents           []Document `json:"documents"`
	Scores              []float64  `json:"scores"`
	HasRelevantTraining bool       `json:"has_relevant_training"`
}

// Store is the in-memory index. Document editing is assumed to be a
// single-actor activity; the mutex exists because unsynchronized map
// access is fatal in Go, not to make concurrent editing a feature.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]Document
	embedder Embedder
	log      *logrus.Logger
}

// NewStore creates an empty store over an embedder.
func NewStore(embedder Embedder, log *logrus.Logger) *Store {
	return &Store{
		docs:     make(map[string]Document),
		embedder: embedder,
		log:      log,
	}
}

// Index embeds the document content and stores it, replacing any
// previous document with the same id. An embedding failure surfaces to
// the caller: indexing is an operator action with someone there to
// react, unlike search.
func (s *Store) Index(ctx context.Context, doc Document) error {
	embedding, err := s.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return err
	}
	doc.Embedding = embedding
	if doc.Metadata.CreatedAt.IsZero() {
		doc.Metadata.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
	return nil
}

// Search embeds the query and ranks every stored document by cosine
// similarity. Embedding failures are swallowed into an empty result so
// grounding stays best-effort and never blocks generation.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) SearchResult {
	empty := SearchResult{Documents: []Document{}, Scores: []float64{}}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.WithError(err).Warn("search embedding failed, returning empty result")
		return empty
	}

	type scored struct {
		doc   Document
		score float64
	}

	s.mu.RLock()
	candidates := make([]scored, 0, len(s.docs))
	for _, doc := range s.docs {
		score := CosineSimilarity(queryVec, doc.Embedding)
		if score < opts.SimilarityThreshold {
			continue
		}
		if opts.TypeFilter != "" && doc.Metadata.Type != opts.TypeFilter {
			continue
		}
		candidates = append(candidates, scored{doc: doc, score: score})
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if opts.TopK > 0 && len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	result := SearchResult{
		Documents: make([]Document, 0, len(candidates)),
		Scores:    make([]float64, 0, len(candidates)),
	}
	for _, c := range candidates {
		result.Documents = append(result.Documents, c.doc)
		result.Scores = append(result.Scores, c.score)
	}
	result.HasRelevantTraining = len(result.Documents) > 0
	return result
}

// Remove deletes a document by id.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
}

// Clear empties the index.
func (s *Store) Clear() {
	s.mu.Lock()
	s.docs = make(map[string]Document)
	s.mu.Unlock()
}

// Len returns the number of indexed documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// CosineSimilarity is dot(a,b)/(|a||b|). Zero vectors and dimension
// mismatches score 0 rather than raising: a bad embedding should rank
// last, not break the whole search.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
