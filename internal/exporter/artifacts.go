// Package exporter writes the aggregation pipeline's output artifacts:
// one JSON file per analytical view, plus an optional spreadsheet
// workbook for offline analysis.
package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ceapulse/internal/dataprocessing"
	"ceapulse/pkg/contracts/domain"
)

// Artifact file names under the data directory. Readers depend on these
// names; they are part of the pipeline's contract with its consumers.
const (
	MetadataFile              = "metadata.json"
	TransactionsByYearFile    = "transactions-by-year.json"
	SalespersonsByYearFile    = "salespersons-by-year.json"
	TransactionTypeByYearFile = "transaction-type-by-year.json"
	PropertyTypeByYearFile    = "property-type-by-year.json"
	SalespersonMonthlyFile    = "salesperson-monthly.json"
	SalespersonRecordsFile    = "salesperson-records.json"
	SalespersonInfoFile       = "salesperson-info.json"
)

// Writer persists aggregation artifacts under a data directory.
type Writer struct {
	dataDir string
	logger  *slog.Logger
}

// NewWriter creates an artifact writer rooted at dataDir.
func NewWriter(dataDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dataDir: dataDir, logger: logger}
}

// WriteAll writes every artifact of one aggregation run. infos may be
// nil when no salesperson info source was supplied; the info artifact
// is skipped in that case. Each file is written via a temp file and
// rename so a crash never leaves a half-written artifact behind.
func (w *Writer) WriteAll(result *dataprocessing.AggregationResult, infos map[string]domain.SalespersonInfo) error {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	artifacts := map[string]interface{}{
		MetadataFile:              result.Metadata,
		TransactionsByYearFile:    result.TransactionsByYear,
		SalespersonsByYearFile:    result.SalespersonsByYear,
		TransactionTypeByYearFile: result.TransactionTypeByYear,
		PropertyTypeByYearFile:    result.PropertyTypeByYear,
		SalespersonMonthlyFile:    result.SalespersonMonthly,
		SalespersonRecordsFile:    result.SalespersonRecords,
	}
	if infos != nil {
		artifacts[SalespersonInfoFile] = infos
	}

	for name, payload := range artifacts {
		if err := w.writeJSON(name, payload); err != nil {
			return err
		}
	}

	w.logger.Info("wrote aggregation artifacts",
		slog.String("dir", w.dataDir),
		slog.Int("files", len(artifacts)))
	return nil
}

func (w *Writer) writeJSON(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	target := filepath.Join(w.dataDir, name)
	tmp, err := os.CreateTemp(w.dataDir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// Reader loads artifacts back from a data directory. It is the data
// source for the file-based serving variant.
type Reader struct {
	dataDir string
}

// NewReader creates an artifact reader rooted at dataDir.
func NewReader(dataDir string) *Reader {
	return &Reader{dataDir: dataDir}
}

func (r *Reader) readJSON(name string, dest interface{}) error {
	data, err := os.ReadFile(filepath.Join(r.dataDir, name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// Metadata loads the sync metadata artifact.
func (r *Reader) Metadata() (domain.Metadata, error) {
	var meta domain.Metadata
	err := r.readJSON(MetadataFile, &meta)
	return meta, err
}

// TransactionsByYear loads the yearly transaction counts.
func (r *Reader) TransactionsByYear() (domain.YearlyCounts, error) {
	var counts domain.YearlyCounts
	err := r.readJSON(TransactionsByYearFile, &counts)
	return counts, err
}

// SalespersonsByYear loads the yearly unique-salesperson counts.
func (r *Reader) SalespersonsByYear() (domain.YearlyCounts, error) {
	var counts domain.YearlyCounts
	err := r.readJSON(SalespersonsByYearFile, &counts)
	return counts, err
}

// TransactionTypeByYear loads the transaction-type breakdown.
func (r *Reader) TransactionTypeByYear() (domain.TypeBreakdownByYear, error) {
	var breakdown domain.TypeBreakdownByYear
	err := r.readJSON(TransactionTypeByYearFile, &breakdown)
	return breakdown, err
}

// PropertyTypeByYear loads the property-type breakdown.
func (r *Reader) PropertyTypeByYear() (domain.TypeBreakdownByYear, error) {
	var breakdown domain.TypeBreakdownByYear
	err := r.readJSON(PropertyTypeByYearFile, &breakdown)
	return breakdown, err
}

// SalespersonMonthly loads the ranked per-salesperson time series.
func (r *Reader) SalespersonMonthly() ([]domain.SalespersonMonthly, error) {
	var monthly []domain.SalespersonMonthly
	err := r.readJSON(SalespersonMonthlyFile, &monthly)
	return monthly, err
}

// SalespersonRecords loads the per-salesperson transaction lists.
func (r *Reader) SalespersonRecords() (map[string][]domain.TransactionRecord, error) {
	var records map[string][]domain.TransactionRecord
	err := r.readJSON(SalespersonRecordsFile, &records)
	return records, err
}

// SalespersonInfo loads the salesperson directory artifact.
func (r *Reader) SalespersonInfo() (map[string]domain.SalespersonInfo, error) {
	var infos map[string]domain.SalespersonInfo
	err := r.readJSON(SalespersonInfoFile, &infos)
	return infos, err
}
