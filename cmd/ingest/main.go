// Command ingest builds the vector index offline: extract the code document
// (and optional supplementary forms), chunk, embed and persist the index
// pair, so the server can start against a warm corpus.
package main

import (
	"context"
	"flag"
	"log"

	"eebc-advisor/internal/ai"
	"eebc-advisor/internal/config"
	"eebc-advisor/internal/logger"
	"eebc-advisor/models"
	"eebc-advisor/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	pdfPath := flag.String("pdf", cfg.PDFPath, "path to the primary code PDF")
	formsPath := flag.String("forms", cfg.FormsPath, "path to a supplementary xlsx form (optional)")
	vectorsPath := flag.String("vectors", cfg.VectorsPath, "output path for the vector file")
	chunksPath := flag.String("chunks", cfg.ChunksPath, "output path for the chunk metadata file")
	flag.Parse()

	ctx := context.Background()

	embedder, err := ai.NewGeminiEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to create embedder:", err)
	}
	defer embedder.Close()

	pages, err := services.NewPDFExtractor().ExtractPages(*pdfPath)
	if err != nil {
		log.Fatal("PDF extraction failed:", err)
	}
	logger.Info("Extracted pages", "count", len(pages))

	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	chunks := chunker.ChunkPages(pages, models.OriginDocument)
	logger.Info("Chunked document", "chunks", len(chunks))

	store := services.NewVectorStore(embedder, cfg.EmbedBatchSize)
	if err := store.Build(ctx, chunks); err != nil {
		log.Fatal("Index build failed:", err)
	}

	if *formsPath != "" {
		formPages, err := services.NewExcelExtractor().ExtractText(*formsPath)
		if err != nil {
			log.Fatal("Form extraction failed:", err)
		}
		formChunks := chunker.ChunkPages(formPages, models.OriginForm)
		if err := store.Append(ctx, formChunks); err != nil {
			log.Fatal("Form append failed:", err)
		}
		logger.Info("Appended supplementary form chunks", "chunks", len(formChunks))
	}

	if err := store.Save(*vectorsPath, *chunksPath); err != nil {
		log.Fatal("Index save failed:", err)
	}
	logger.Info("Index built and saved",
		"chunks", store.Size(), "vectors", *vectorsPath, "metadata", *chunksPath)
}
