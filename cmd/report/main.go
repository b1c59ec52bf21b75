package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"order-exec-lab/internal/reporting"
	"order-exec-lab/internal/storage/migrations"
	pgstore "order-exec-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	stdout := flag.Bool("stdout", false, "Print the Markdown report instead of writing files")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run postgres migrations: %v", err)
	}

	gen := reporting.NewGenerator(pgstore.NewTrainingRunStore(pool), pgstore.NewEpisodeResultStore(pool))
	report, err := gen.Generate(ctx)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	md := reporting.RenderMarkdown(report)
	if *stdout {
		fmt.Print(md)
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("create output dir: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		logger.Fatalf("write markdown report: %v", err)
	}

	csvPath := filepath.Join(*outputDir, "evaluations.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Evaluations)), 0o644); err != nil {
		logger.Fatalf("write csv: %v", err)
	}

	logger.Printf("Wrote %s and %s (%d runs, %d evaluations)",
		mdPath, csvPath, report.RunCount, len(report.Evaluations))
}
