package services

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"eebc-advisor/internal/ai"
	"eebc-advisor/models"
)

// Sentinel errors for index integrity states. A dimension mismatch must be
// distinguishable from an empty index: the former requires a rebuild, the
// latter is just the missing-corpus degraded mode.
var (
	ErrNotBuilt          = errors.New("vector store has not been built")
	ErrNoChunks          = errors.New("cannot build index from zero chunks")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch: index rebuild required")
)

const vectorFileVersion = 1

// vectorFile is the persisted search-structure artifact. The chunk metadata
// lives in a separate JSON file; the two are always read and written as a
// pair.
type vectorFile struct {
	Version   int
	Dimension int
	Vectors   [][]float32
}

// indexSnapshot is an immutable (chunks, vectors) pairing. Build and Append
// construct a complete new snapshot and swap it in, so readers never observe
// a half-updated structure.
type indexSnapshot struct {
	dimension int
	chunks    []models.Chunk
	vectors   [][]float32
}

// VectorStore wraps an embedding function and a brute-force inner-product
// index over unit-norm vectors (equivalent to cosine similarity).
type VectorStore struct {
	embedder  ai.Embedder
	batchSize int

	mu   sync.RWMutex
	snap *indexSnapshot
}

// NewVectorStore creates a vector store over the given embedder. batchSize
// bounds how many texts are embedded per provider call.
func NewVectorStore(embedder ai.Embedder, batchSize int) *VectorStore {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &VectorStore{embedder: embedder, batchSize: batchSize}
}

// Ready reports whether the store holds a built index.
func (s *VectorStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Size returns the number of indexed chunks.
func (s *VectorStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return len(s.snap.chunks)
}

// Build embeds all chunks and atomically replaces any prior index state.
func (s *VectorStore) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	snap := &indexSnapshot{
		dimension: len(vectors[0]),
		chunks:    chunks,
		vectors:   vectors,
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Append embeds new chunks and adds them to the existing index without
// touching existing entries. Fails if the index has not been built or if the
// new vectors' dimensionality disagrees with the existing one.
func (s *VectorStore) Append(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.RLock()
	prev := s.snap
	s.mu.RUnlock()
	if prev == nil {
		return ErrNotBuilt
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	if len(vectors[0]) != prev.dimension {
		return fmt.Errorf("%w: index has %d, new vectors have %d",
			ErrDimensionMismatch, prev.dimension, len(vectors[0]))
	}

	next := &indexSnapshot{
		dimension: prev.dimension,
		chunks:    append(append([]models.Chunk(nil), prev.chunks...), chunks...),
		vectors:   append(append([][]float32(nil), prev.vectors...), vectors...),
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
	return nil
}

// Search embeds the query and returns up to topK chunks by descending
// cosine similarity. An unbuilt or empty index yields an empty result, not
// an error.
func (s *VectorStore) Search(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap == nil || len(snap.chunks) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 8
	}

	embedded, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := normalize(embedded[0])
	if len(queryVec) != snap.dimension {
		return nil, fmt.Errorf("%w: index has %d, query embedding has %d",
			ErrDimensionMismatch, snap.dimension, len(queryVec))
	}

	scores := make([]float32, len(snap.vectors))
	for i, v := range snap.vectors {
		scores[i] = dot(v, queryVec)
	}

	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]models.RetrievalResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, models.RetrievalResult{Chunk: snap.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// Save persists the search structure and the chunk metadata as two
// co-located files.
func (s *VectorStore) Save(vectorsPath, chunksPath string) error {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap == nil {
		return ErrNotBuilt
	}

	vf, err := os.Create(vectorsPath)
	if err != nil {
		return fmt.Errorf("failed to create vectors file: %w", err)
	}
	defer vf.Close()
	if err := gob.NewEncoder(vf).Encode(vectorFile{
		Version:   vectorFileVersion,
		Dimension: snap.dimension,
		Vectors:   snap.vectors,
	}); err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}

	data, err := json.Marshal(snap.chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	if err := os.WriteFile(chunksPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write chunks file: %w", err)
	}
	return nil
}

// Load restores a persisted index pair and verifies, via a cheap probe
// embedding, that its dimensionality matches the active embedding function.
// A mismatch surfaces as ErrDimensionMismatch and leaves the store
// unchanged, so stale results can never be served silently.
func (s *VectorStore) Load(ctx context.Context, vectorsPath, chunksPath string) error {
	vf, err := os.Open(vectorsPath)
	if err != nil {
		return fmt.Errorf("failed to open vectors file: %w", err)
	}
	defer vf.Close()

	var stored vectorFile
	if err := gob.NewDecoder(vf).Decode(&stored); err != nil {
		return fmt.Errorf("failed to decode vectors file: %w", err)
	}
	if stored.Version != vectorFileVersion {
		return fmt.Errorf("unsupported vectors file version %d", stored.Version)
	}

	data, err := os.ReadFile(chunksPath)
	if err != nil {
		return fmt.Errorf("failed to read chunks file: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("failed to unmarshal chunks: %w", err)
	}

	if len(chunks) != len(stored.Vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors",
			len(chunks), len(stored.Vectors))
	}
	if len(stored.Vectors) == 0 {
		return ErrNoChunks
	}

	probe, err := s.embedder.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	if len(probe[0]) != stored.Dimension {
		return fmt.Errorf("%w: stored index has %d, embedder produces %d",
			ErrDimensionMismatch, stored.Dimension, len(probe[0]))
	}

	snap := &indexSnapshot{
		dimension: stored.Dimension,
		chunks:    chunks,
		vectors:   stored.Vectors,
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// embedChunks embeds chunk texts in batches and unit-normalizes the result.
func (s *VectorStore) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
		}
		for _, v := range batch {
			vectors = append(vectors, normalize(v))
		}
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d, expected %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return vectors, nil
}

// normalize returns the L2-normalized copy of v. The epsilon floor keeps
// degenerate all-zero vectors finite. The same formula is applied at build
// and query time; ranking silently degrades if the two ever diverge.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + 1e-12
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
