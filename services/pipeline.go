package services

import (
	"context"

	"eebc-advisor/internal/logger"
	"eebc-advisor/models"
)

// StoreSource yields the shared vector store. StoreProvider implements it
// with a lazy load-or-build; tests substitute a fixed store.
type StoreSource interface {
	Get(ctx context.Context) *VectorStore
}

// PipelineResult is everything one pipeline invocation produces. The updated
// profile is handed back to the caller, which owns multi-turn state.
type PipelineResult struct {
	Answer  string
	Verdict models.Verdict
	Sources []models.Source
	Profile *models.BuildingProfile
}

// Pipeline sequences extraction, applicability, retrieval and synthesis into
// one call. No step mutates shared state; every run is independent given its
// inputs.
type Pipeline struct {
	extractor   *ContextExtractor
	retriever   *Retriever
	synthesizer *Synthesizer
	stores      StoreSource
}

// NewPipeline creates a new pipeline
func NewPipeline(extractor *ContextExtractor, retriever *Retriever, synthesizer *Synthesizer, stores StoreSource) *Pipeline {
	return &Pipeline{
		extractor:   extractor,
		retriever:   retriever,
		synthesizer: synthesizer,
		stores:      stores,
	}
}

// Run answers one user message. Retrieval is skipped when no index is
// available — an explicit degraded mode where the answer still goes out,
// asking for more information instead of fabricating citations. Only a
// failed synthesis call is returned as an error.
func (p *Pipeline) Run(ctx context.Context, message string, prior *models.BuildingProfile) (*PipelineResult, error) {
	profile := p.extractor.Extract(ctx, message, prior)
	verdict := EvaluateApplicability(profile)

	var retrieved []models.RetrievalResult
	store := p.stores.Get(ctx)
	if store != nil && store.Ready() {
		results, err := p.retriever.Retrieve(ctx, message, profile, store)
		if err != nil {
			logger.Warn("Retrieval degraded", "error", err)
		}
		retrieved = results
	} else {
		logger.Debug("No index available, skipping retrieval")
	}

	answer, sources, err := p.synthesizer.Synthesize(ctx, message, profile, retrieved, verdict)
	if err != nil {
		return nil, err
	}

	return &PipelineResult{
		Answer:  answer,
		Verdict: verdict,
		Sources: sources,
		Profile: profile,
	}, nil
}
