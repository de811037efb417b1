package services

import (
	"context"
	"fmt"
	"testing"

	"eebc-advisor/internal/ai"
	"eebc-advisor/models"
)

// retrievalFixture builds a store whose chunk and query vectors are pinned so
// similarity scores are exact and predictable.
func retrievalFixture(t *testing.T, chunkCount int) *VectorStore {
	t.Helper()

	vectors := map[string][]float32{
		"query about lighting": {1, 0, 0},
		"query about envelope": {0, 1, 0},
	}
	chunks := make([]models.Chunk, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		text := fmt.Sprintf("clause number %d", i)
		chunks = append(chunks, models.Chunk{
			ChunkID: fmt.Sprintf("p%d_c%d_%010d", i+1, i, i),
			Page:    i + 1,
			Text:    text,
			Origin:  models.OriginDocument,
		})
		// Give each chunk a distinct lighting-axis score and a weaker
		// envelope-axis score so the two queries rank them differently.
		vectors[text] = []float32{float32(chunkCount-i) / float32(chunkCount), float32(i+1) / float32(2*chunkCount), 0}
	}

	store := NewVectorStore(&fakeEmbedder{dim: 3, vectors: vectors}, 64)
	if err := store.Build(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return store
}

func expansionResponse(queries ...string) string {
	out := `{"queries": [`
	for i, q := range queries {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", q)
	}
	return out + `]}`
}

func TestRetrieveMergesKeepingMaxScore(t *testing.T) {
	store := retrievalFixture(t, 4)
	gen := &fakeGenerator{responses: map[ai.GenerationMode]string{
		ai.ModeExtract: expansionResponse("query about lighting", "query about envelope"),
	}}
	retriever := NewRetriever(gen, 4, 10)

	results, err := retriever.Retrieve(context.Background(), "lighting?", &models.BuildingProfile{}, store)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}

	seen := make(map[string]int)
	for _, r := range results {
		seen[r.Chunk.ChunkID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("chunk %s appears %d times after merge", id, n)
		}
	}

	// Chunk 0 scores highest on the lighting axis and low on the envelope
	// axis; the merged score must be the lighting one.
	var first models.RetrievalResult
	for _, r := range results {
		if r.Chunk.ChunkID == "p1_c0_0000000000" {
			first = r
		}
	}
	single, err := store.Search(context.Background(), "query about lighting", 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if first.Score != single[0].Score {
		t.Errorf("merged score %f, want max across queries %f", first.Score, single[0].Score)
	}
}

func TestRetrieveFallsBackToOriginalMessageOnExpansionFailure(t *testing.T) {
	store := NewVectorStore(&fakeEmbedder{
		dim: 3,
		vectors: map[string][]float32{
			"is lighting covered": {1, 0, 0},
			"lighting clause":     {1, 0, 0},
		},
	}, 64)
	err := store.Build(context.Background(), []models.Chunk{
		{ChunkID: "p1_c0_aaaaaaaaaa", Page: 1, Text: "lighting clause", Origin: models.OriginDocument},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	gen := &fakeGenerator{failModes: map[ai.GenerationMode]bool{ai.ModeExtract: true}}
	retriever := NewRetriever(gen, 4, 10)

	results, err := retriever.Retrieve(context.Background(), "is lighting covered", &models.BuildingProfile{}, store)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkID != "p1_c0_aaaaaaaaaa" {
		t.Fatalf("fallback retrieval missed the chunk: %+v", results)
	}
}

func TestRetrieveCapsExpandedQueries(t *testing.T) {
	store := retrievalFixture(t, 2)
	gen := &fakeGenerator{responses: map[ai.GenerationMode]string{
		ai.ModeExtract: expansionResponse("q1", "q2", "q3", "q4", "q5"),
	}}
	retriever := NewRetriever(gen, 2, 10)

	if _, err := retriever.Retrieve(context.Background(), "anything", &models.BuildingProfile{}, store); err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}

	queries := retriever.expandQueries(context.Background(), "anything", &models.BuildingProfile{})
	if len(queries) != maxExpandedQueries {
		t.Fatalf("expected %d queries, got %d: %v", maxExpandedQueries, len(queries), queries)
	}
	if queries[0] != "q1" || queries[2] != "q3" {
		t.Errorf("expansion should keep the first three queries in order, got %v", queries)
	}
}

func TestRetrieveDropsBlankExpandedQueries(t *testing.T) {
	gen := &fakeGenerator{responses: map[ai.GenerationMode]string{
		ai.ModeExtract: expansionResponse("  ", "", "real query"),
	}}
	retriever := NewRetriever(gen, 4, 10)

	queries := retriever.expandQueries(context.Background(), "original", &models.BuildingProfile{})
	if len(queries) != 1 || queries[0] != "real query" {
		t.Fatalf("expected only the non-blank query, got %v", queries)
	}
}

func TestRetrieveAllBlankExpansionFallsBack(t *testing.T) {
	gen := &fakeGenerator{responses: map[ai.GenerationMode]string{
		ai.ModeExtract: expansionResponse("", "   "),
	}}
	retriever := NewRetriever(gen, 4, 10)

	queries := retriever.expandQueries(context.Background(), "original question", &models.BuildingProfile{})
	if len(queries) != 1 || queries[0] != "original question" {
		t.Fatalf("expected fallback to original message, got %v", queries)
	}
}

func TestRetrieveCapsMergedResults(t *testing.T) {
	store := retrievalFixture(t, 15)
	gen := &fakeGenerator{responses: map[ai.GenerationMode]string{
		ai.ModeExtract: expansionResponse("query about lighting", "query about envelope"),
	}}
	retriever := NewRetriever(gen, 12, 10)

	results, err := retriever.Retrieve(context.Background(), "everything", &models.BuildingProfile{}, store)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected merged results capped at 10, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results out of order at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestRetrieveDeterministicTieBreak(t *testing.T) {
	// Two chunks with identical vectors tie exactly; order must still be
	// reproducible, by chunk id.
	vectors := map[string][]float32{
		"same clause a": {1, 0, 0},
		"same clause b": {1, 0, 0},
		"tie query":     {1, 0, 0},
	}
	store := NewVectorStore(&fakeEmbedder{dim: 3, vectors: vectors}, 64)
	err := store.Build(context.Background(), []models.Chunk{
		{ChunkID: "p2_c1_bbbbbbbbbb", Page: 2, Text: "same clause b", Origin: models.OriginDocument},
		{ChunkID: "p1_c0_aaaaaaaaaa", Page: 1, Text: "same clause a", Origin: models.OriginDocument},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	gen := &fakeGenerator{failModes: map[ai.GenerationMode]bool{ai.ModeExtract: true}}
	retriever := NewRetriever(gen, 4, 10)

	for i := 0; i < 5; i++ {
		results, err := retriever.Retrieve(context.Background(), "tie query", &models.BuildingProfile{}, store)
		if err != nil {
			t.Fatalf("retrieve failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].Chunk.ChunkID != "p1_c0_aaaaaaaaaa" {
			t.Fatalf("tie not broken by chunk id: %s first", results[0].Chunk.ChunkID)
		}
	}
}
