package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"eebc-advisor/internal/ai"
	"eebc-advisor/internal/logger"
	"eebc-advisor/models"
	"eebc-advisor/utils"
)

const maxExpandedQueries = 3

const expandSystemPrompt = "Generate short search queries for retrieving the best EEBC clauses from the code document. Output JSON only."

const expandPromptTemplate = `Return JSON like: {"queries": ["...", "...", "..."]}
User question: %s
Context: %s`

// Retriever expands a question into several phrasings, queries the vector
// store for each and merges the results by chunk identity.
type Retriever struct {
	llm        TextGenerator
	perQueryK  int
	maxResults int
}

// NewRetriever creates a multi-query retriever.
func NewRetriever(llm TextGenerator, perQueryK, maxResults int) *Retriever {
	if perQueryK <= 0 {
		perQueryK = 6
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Retriever{llm: llm, perQueryK: perQueryK, maxResults: maxResults}
}

// Retrieve returns up to maxResults chunks ranked by descending similarity.
// When a chunk is hit under more than one phrasing, the highest score wins —
// confirmation across phrasings is rewarded without double-counting. A
// partial result with a non-nil error means some queries failed; the caller
// decides whether the partial list is still useful.
func (r *Retriever) Retrieve(ctx context.Context, message string, profile *models.BuildingProfile, store *VectorStore) ([]models.RetrievalResult, error) {
	queries := r.expandQueries(ctx, message, profile)

	merged := make(map[string]models.RetrievalResult)
	var searchErr error
	for _, q := range queries {
		results, err := store.Search(ctx, q, r.perQueryK)
		if err != nil {
			searchErr = fmt.Errorf("search failed for query %q: %w", q, err)
			continue
		}
		for _, res := range results {
			prev, seen := merged[res.Chunk.ChunkID]
			if !seen || res.Score > prev.Score {
				merged[res.Chunk.ChunkID] = res
			}
		}
	}

	out := make([]models.RetrievalResult, 0, len(merged))
	for _, res := range merged {
		out = append(out, res)
	}
	// Descending score; equal scores fall back to chunk id so repeated calls
	// with identical inputs produce identical order.
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Chunk.ChunkID < out[b].Chunk.ChunkID
	})
	if len(out) > r.maxResults {
		out = out[:r.maxResults]
	}
	return out, searchErr
}

// expandQueries asks the extraction model for up to three alternative
// phrasings. The original message is the fallback: expansion failure never
// fails retrieval.
func (r *Retriever) expandQueries(ctx context.Context, message string, profile *models.BuildingProfile) []string {
	fallback := []string{message}
	if r.llm == nil {
		return fallback
	}

	ctxJSON, err := json.Marshal(profile)
	if err != nil {
		ctxJSON = []byte("{}")
	}

	raw, err := r.llm.Complete(ctx, ai.ModeExtract, expandSystemPrompt,
		fmt.Sprintf(expandPromptTemplate, message, ctxJSON))
	if err != nil {
		logger.Debug("Query expansion unavailable", "error", err)
		return fallback
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := utils.ParseModelJSON(raw, &parsed); err != nil {
		logger.Debug("Query expansion returned unparseable output", "error", err)
		return fallback
	}

	queries := make([]string, 0, maxExpandedQueries)
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxExpandedQueries {
			break
		}
	}
	if len(queries) == 0 {
		return fallback
	}
	return queries
}
