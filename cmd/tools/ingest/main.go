package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/david/sbir-scout/internal/ai"
	"github.com/david/sbir-scout/internal/analysis"
	"github.com/david/sbir-scout/internal/db"
	"github.com/david/sbir-scout/internal/ingest"
)

func main() {
	sourceID := flag.String("source", "", "Source ID to ingest (default: all registry sources)")
	noEmbed := flag.Bool("no-embed", false, "Skip embedding generation")
	noAnalyze := flag.Bool("no-analyze", false, "Skip signal extraction")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	reg, err := ingest.LoadRegistry(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	var embedder ai.Embedder
	if !*noEmbed {
		embedder = ai.NewOllamaClient(os.Getenv("OLLAMA_HOST"), os.Getenv("OLLAMA_EMBED_MODEL"), os.Getenv("OLLAMA_MODEL"))
	}

	var analyzer *analysis.Analyzer
	if !*noAnalyze {
		var extractor analysis.Extractor = analysis.NewRuleBasedExtractor()
		if strings.EqualFold(os.Getenv("ANALYSIS_EXTRACTOR"), "llm") {
			extractor = ai.NewSignalExtractor(ai.NewOllamaClient(os.Getenv("OLLAMA_HOST"), "", os.Getenv("OLLAMA_MODEL")))
		}
		analyzer = analysis.NewAnalyzer(extractor, analysis.NewCache())
	}

	pipeline := ingest.NewPipeline(db.NewStore(pool), analyzer, embedder)

	if *sourceID != "" {
		src := reg.Source(*sourceID)
		if src == nil {
			log.Fatalf("Unknown source %q", *sourceID)
		}
		stats, err := pipeline.RunSource(ctx, *src)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Printf("Done. Found: %d, Saved: %d, Analyzed: %d, Errors: %d",
			stats.TotalFound, stats.TotalSaved, stats.Analyzed, stats.Errors)
		return
	}

	stats := pipeline.RunAll(ctx, reg)
	log.Printf("Done. Found: %d, Saved: %d, Analyzed: %d, Errors: %d",
		stats.TotalFound, stats.TotalSaved, stats.Analyzed, stats.Errors)
}
