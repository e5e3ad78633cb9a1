// Command upload pushes a directory of aggregation artifacts to the
// hosted relational store: the analytical rollups, the per-salesperson
// data, and the salesperson directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ceapulse/internal/config"
	"ceapulse/internal/dataprocessing"
	"ceapulse/internal/exporter"
	"ceapulse/internal/infrastructure"
	"ceapulse/internal/store"
	"ceapulse/pkg/contracts/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	dataDir := flag.String("data", cfg.Paths.DataDir, "artifact directory to upload")
	skipDirectory := flag.Bool("skip-directory", false, "do not upsert the salesperson directory")
	flag.Parse()

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	defer infrastructure.CloseLogFile()

	if err := run(context.Background(), cfg, logger, *dataDir, *skipDirectory); err != nil {
		logger.Error("upload failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, dataDir string, skipDirectory bool) error {
	client, err := store.NewClient(cfg.Store, logger)
	if err != nil {
		return err
	}

	result, infos, err := loadArtifacts(dataDir)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := client.UploadAggregates(ctx, result, cfg.Sync.UpsertBatchSize); err != nil {
		return err
	}

	if !skipDirectory && infos != nil {
		rows := make([]store.DirectoryRow, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, store.DirectoryRowFromInfo(info))
		}
		written, err := client.UpsertDirectory(ctx, rows, cfg.Sync.UpsertBatchSize)
		if err != nil {
			return err
		}
		logger.Info("upserted salesperson directory", slog.Int("rows", written))
	}

	logger.Info("upload complete",
		slog.Int("total_records", result.Metadata.TotalRecords),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func loadArtifacts(dataDir string) (*dataprocessing.AggregationResult, map[string]domain.SalespersonInfo, error) {
	r := exporter.NewReader(dataDir)

	result := &dataprocessing.AggregationResult{}
	var err error

	if result.Metadata, err = r.Metadata(); err != nil {
		return nil, nil, err
	}
	if result.TransactionsByYear, err = r.TransactionsByYear(); err != nil {
		return nil, nil, err
	}
	if result.SalespersonsByYear, err = r.SalespersonsByYear(); err != nil {
		return nil, nil, err
	}
	if result.TransactionTypeByYear, err = r.TransactionTypeByYear(); err != nil {
		return nil, nil, err
	}
	if result.PropertyTypeByYear, err = r.PropertyTypeByYear(); err != nil {
		return nil, nil, err
	}
	if result.SalespersonMonthly, err = r.SalespersonMonthly(); err != nil {
		return nil, nil, err
	}
	if result.SalespersonRecords, err = r.SalespersonRecords(); err != nil {
		return nil, nil, err
	}

	// the info artifact is optional
	infos, err := r.SalespersonInfo()
	if err != nil {
		infos = nil
	}
	return result, infos, nil
}
