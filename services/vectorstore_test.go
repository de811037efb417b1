package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"eebc-advisor/models"
)

func testChunks() []models.Chunk {
	return []models.Chunk{
		{ChunkID: "p1_c0_aaaaaaaaaa", Page: 1, Text: "lighting power density limits", Origin: models.OriginDocument},
		{ChunkID: "p2_c1_bbbbbbbbbb", Page: 2, Text: "envelope thermal transmittance", Origin: models.OriginDocument},
		{ChunkID: "p3_c2_cccccccccc", Page: 3, Text: "hvac system efficiency requirements", Origin: models.OriginDocument},
	}
}

func TestBuildRejectsEmptyChunks(t *testing.T) {
	store := NewVectorStore(&fakeEmbedder{dim: 8}, 64)
	if err := store.Build(context.Background(), nil); !errors.Is(err, ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestSearchOnUnbuiltStoreReturnsEmpty(t *testing.T) {
	store := NewVectorStore(&fakeEmbedder{dim: 8}, 64)
	results, err := store.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestBuildAndSearchRanksByCosineSimilarity(t *testing.T) {
	embedder := &fakeEmbedder{
		dim: 4,
		vectors: map[string][]float32{
			"lighting power density limits":       {1, 0, 0, 0},
			"envelope thermal transmittance":      {0, 1, 0, 0},
			"hvac system efficiency requirements": {0.9, 0.1, 0, 0},
			"lighting rules":                      {1, 0, 0, 0},
		},
	}
	store := NewVectorStore(embedder, 64)
	if err := store.Build(context.Background(), testChunks()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	results, err := store.Search(context.Background(), "lighting rules", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ChunkID != "p1_c0_aaaaaaaaaa" {
		t.Errorf("expected lighting chunk first, got %s", results[0].Chunk.ChunkID)
	}
	if results[1].Chunk.ChunkID != "p3_c2_cccccccccc" {
		t.Errorf("expected hvac chunk second, got %s", results[1].Chunk.ChunkID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not in descending score order: %f < %f", results[0].Score, results[1].Score)
	}
	if math.Abs(float64(results[0].Score)-1.0) > 1e-5 {
		t.Errorf("identical unit vectors should score ~1.0, got %f", results[0].Score)
	}
}

func TestSearchBatchingMatchesSingleBatch(t *testing.T) {
	ctx := context.Background()
	chunks := testChunks()

	small := NewVectorStore(&fakeEmbedder{dim: 8}, 1)
	big := NewVectorStore(&fakeEmbedder{dim: 8}, 64)
	if err := small.Build(ctx, chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := big.Build(ctx, chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	a, _ := small.Search(ctx, "efficiency", 3)
	b, _ := big.Search(ctx, "efficiency", 3)
	if len(a) != len(b) {
		t.Fatalf("result counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Chunk.ChunkID != b[i].Chunk.ChunkID || a[i].Score != b[i].Score {
			t.Errorf("batching changed result %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestAppendBeforeBuildFails(t *testing.T) {
	store := NewVectorStore(&fakeEmbedder{dim: 8}, 64)
	err := store.Append(context.Background(), testChunks())
	if !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}

func TestAppendExtendsWithoutTouchingExisting(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore(&fakeEmbedder{dim: 8}, 64)
	if err := store.Build(ctx, testChunks()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	extra := []models.Chunk{
		{ChunkID: "p1_c0_ffffffffff", Page: 1, Text: "form cell text", Origin: models.OriginForm},
	}
	if err := store.Append(ctx, extra); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if store.Size() != 4 {
		t.Fatalf("expected 4 chunks after append, got %d", store.Size())
	}

	results, err := store.Search(ctx, "form cell text", 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	found := false
	for _, r := range results {
		if r.Chunk.Origin == models.OriginForm {
			found = true
		}
	}
	if !found {
		t.Errorf("appended form chunk not retrievable")
	}
}

func TestAppendDimensionMismatchReported(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{dim: 8}
	store := NewVectorStore(embedder, 64)
	if err := store.Build(ctx, testChunks()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// Simulate the embedding model changing under the store.
	embedder.dim = 4
	err := store.Append(ctx, []models.Chunk{{ChunkID: "x", Page: 9, Text: "late chunk"}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if store.Size() != 3 {
		t.Errorf("failed append must not modify the index, size = %d", store.Size())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	vectorsPath := filepath.Join(dir, "index.vectors")
	chunksPath := filepath.Join(dir, "chunks.json")

	embedder := &fakeEmbedder{dim: 8}
	store := NewVectorStore(embedder, 64)
	if err := store.Build(ctx, testChunks()); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	before, err := store.Search(ctx, "thermal envelope", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if err := store.Save(vectorsPath, chunksPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	restored := NewVectorStore(embedder, 64)
	if err := restored.Load(ctx, vectorsPath, chunksPath); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	after, err := restored.Search(ctx, "thermal envelope", 3)
	if err != nil {
		t.Fatalf("search on restored store failed: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("result counts differ after round trip: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Chunk.ChunkID != after[i].Chunk.ChunkID || before[i].Score != after[i].Score {
			t.Errorf("result %d differs after round trip: %v vs %v", i, before[i], after[i])
		}
	}
}

func TestLoadDetectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	vectorsPath := filepath.Join(dir, "index.vectors")
	chunksPath := filepath.Join(dir, "chunks.json")

	store := NewVectorStore(&fakeEmbedder{dim: 8}, 64)
	if err := store.Build(ctx, testChunks()); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := store.Save(vectorsPath, chunksPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A different embedding model produces a different dimensionality; the
	// load must be refused before any search can return wrong results.
	other := NewVectorStore(&fakeEmbedder{dim: 4}, 64)
	err := other.Load(ctx, vectorsPath, chunksPath)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if other.Ready() {
		t.Errorf("store must stay unbuilt after a refused load")
	}
}

func TestNormalizeHandlesZeroVector(t *testing.T) {
	v := normalize([]float32{0, 0, 0})
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			t.Fatalf("component %d is not finite: %f", i, x)
		}
	}
}
