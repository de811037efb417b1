package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"eebc-advisor/internal/ai"
	"eebc-advisor/internal/config"
	"eebc-advisor/internal/logger"
	"eebc-advisor/models"
)

// initTimeout bounds the one-shot load-or-build. It is deliberately generous:
// a cold build embeds the whole corpus through a rate-limited API.
const initTimeout = 15 * time.Minute

// StoreProvider owns the process-wide vector store with a
// construct-on-first-use lifecycle: the first caller loads the persisted
// index pair if present, otherwise builds it from the source documents.
// Later callers share the same instance.
type StoreProvider struct {
	cfg      *config.Config
	embedder ai.Embedder

	once  sync.Once
	store *VectorStore
}

// NewStoreProvider creates a new store provider
func NewStoreProvider(cfg *config.Config, embedder ai.Embedder) *StoreProvider {
	return &StoreProvider{cfg: cfg, embedder: embedder}
}

// Get returns the shared vector store, initializing it on first use. The
// returned store may be unbuilt (degraded mode, empty retrieval); that is
// not an error.
//
// Initialization runs once and must not inherit the triggering request's
// deadline: the sync.Once is consumed either way, so a canceled first
// request would otherwise leave every later caller with a permanently
// unbuilt store.
func (p *StoreProvider) Get(ctx context.Context) *VectorStore {
	p.once.Do(func() {
		p.store = NewVectorStore(p.embedder, p.cfg.EmbedBatchSize)
		initCtx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()
		p.initialize(initCtx)
	})
	return p.store
}

func (p *StoreProvider) initialize(ctx context.Context) {
	if fileExists(p.cfg.VectorsPath) && fileExists(p.cfg.ChunksPath) {
		logger.Info("Loading vector index from disk",
			"vectors", p.cfg.VectorsPath, "chunks", p.cfg.ChunksPath)
		err := p.store.Load(ctx, p.cfg.VectorsPath, p.cfg.ChunksPath)
		if err == nil {
			logger.Info("Vector index loaded", "chunks", p.store.Size())
			return
		}
		if errors.Is(err, ErrDimensionMismatch) {
			logger.Error("Persisted index is incompatible with the active embedding model, rebuilding", "error", err)
		} else {
			logger.Error("Failed to load vector index, rebuilding", "error", err)
		}
	}

	if p.cfg.SkipIndexBuild {
		logger.Warn("Index files not found and SKIP_INDEX_BUILD set — operating without index")
		return
	}

	if err := p.build(ctx); err != nil {
		logger.Error("Index build failed — operating without index", "error", err)
	}
}

// build extracts, chunks, embeds and persists the corpus: the primary code
// document first, then any supplementary forms appended with their own
// origin tag.
func (p *StoreProvider) build(ctx context.Context) error {
	logger.Info("Building vector index from source documents", "pdf", p.cfg.PDFPath)

	pages, err := NewPDFExtractor().ExtractPages(p.cfg.PDFPath)
	if err != nil {
		return err
	}

	chunker := NewChunkingService(p.cfg.MaxChunkSize, p.cfg.ChunkOverlap)
	chunks := chunker.ChunkPages(pages, models.OriginDocument)
	if err := p.store.Build(ctx, chunks); err != nil {
		return err
	}

	if p.cfg.FormsPath != "" && fileExists(p.cfg.FormsPath) {
		formPages, err := NewExcelExtractor().ExtractText(p.cfg.FormsPath)
		if err != nil {
			logger.Warn("Skipping supplementary forms", "path", p.cfg.FormsPath, "error", err)
		} else {
			formChunks := chunker.ChunkPages(formPages, models.OriginForm)
			if err := p.store.Append(ctx, formChunks); err != nil {
				logger.Warn("Failed to append supplementary form chunks", "error", err)
			}
		}
	}

	if err := p.store.Save(p.cfg.VectorsPath, p.cfg.ChunksPath); err != nil {
		logger.Error("Failed to persist vector index", "error", err)
	} else {
		logger.Info("Vector index built and saved", "chunks", p.store.Size())
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
