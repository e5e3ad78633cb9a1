// Command aggregate runs the single-pass aggregation pipeline over the
// transaction feed CSV, optionally joined with the salesperson info
// CSV, and writes the JSON artifacts (plus an optional workbook).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ceapulse/internal/config"
	"ceapulse/internal/dataprocessing"
	"ceapulse/internal/exporter"
	"ceapulse/internal/infrastructure"
	"ceapulse/pkg/contracts/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	transactionsPath := flag.String("transactions", cfg.Paths.TransactionsFile, "transaction feed CSV")
	infoPath := flag.String("info", cfg.Paths.InfoFile, "salesperson info CSV (optional)")
	outDir := flag.String("out", cfg.Paths.DataDir, "artifact output directory")
	workbookPath := flag.String("workbook", "", "also write a spreadsheet summary to this path")
	flag.Parse()

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	defer infrastructure.CloseLogFile()

	if err := run(context.Background(), logger, *transactionsPath, *infoPath, *outDir, *workbookPath); err != nil {
		logger.Error("aggregation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, transactionsPath, infoPath, outDir, workbookPath string) error {
	start := time.Now()

	var (
		result *dataprocessing.AggregationResult
		infos  map[string]domain.SalespersonInfo
	)

	// the two input files are independent; parse them concurrently
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f, err := os.Open(transactionsPath)
		if err != nil {
			return fmt.Errorf("open transaction feed: %w", err)
		}
		defer f.Close()

		agg := dataprocessing.NewAggregator(logger)
		result, err = agg.Consume(gctx, dataprocessing.NewReader(f, domain.MinTransactionColumns))
		return err
	})

	if infoPath != "" {
		g.Go(func() error {
			f, err := os.Open(infoPath)
			if err != nil {
				return fmt.Errorf("open salesperson info: %w", err)
			}
			defer f.Close()

			infos, err = dataprocessing.LoadDirectory(gctx, logger, f)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := exporter.NewWriter(outDir, logger).WriteAll(result, infos); err != nil {
		return err
	}

	if workbookPath != "" {
		if err := exporter.WriteWorkbook(workbookPath, result); err != nil {
			return err
		}
		logger.Info("wrote workbook", slog.String("path", workbookPath))
	}

	logger.Info("aggregation complete",
		slog.Int("total_records", result.Metadata.TotalRecords),
		slog.Int("unique_salespersons", result.Metadata.UniqueSalespersons),
		slog.Int("skipped_rows", result.SkippedRows),
		slog.Int("skipped_dates", result.SkippedDates),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
