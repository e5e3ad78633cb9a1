package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ceapulse/pkg/contracts/domain"
)

// progressInterval controls how often the aggregation pass logs progress.
const progressInterval = 100000

// AggregationResult holds every derived view produced by one aggregation
// pass, plus the per-run skip counters. A result fully replaces the prior
// version of each view; there is no incremental merge.
type AggregationResult struct {
	TransactionsByYear    domain.YearlyCounts                    `json:"transactions_by_year"`
	SalespersonsByYear    domain.YearlyCounts                    `json:"salespersons_by_year"`
	SalespersonMonthly    []domain.SalespersonMonthly            `json:"salesperson_monthly"`
	TransactionTypeByYear domain.TypeBreakdownByYear             `json:"transaction_type_by_year"`
	PropertyTypeByYear    domain.TypeBreakdownByYear             `json:"property_type_by_year"`
	SalespersonRecords    map[string][]domain.TransactionRecord  `json:"salesperson_records"`
	Metadata              domain.Metadata                        `json:"metadata"`

	// SkippedRows counts rows dropped for having too few columns;
	// SkippedDates counts rows dropped for an unusable transaction date.
	// Both are an explicit, intentional tolerance policy of the feed.
	SkippedRows  int `json:"skipped_rows"`
	SkippedDates int `json:"skipped_dates"`
}

// monthlyAccumulator tracks one salesperson's display name and monthly
// counts during the pass.
type monthlyAccumulator struct {
	name    string
	monthly map[string]int
}

// Aggregator builds the five derived views in a single streaming pass
// over the transaction feed. All accumulators are owned by the aggregator
// for the duration of one run; nothing is shared across runs.
type Aggregator struct {
	logger *slog.Logger

	transactionsByYear    domain.YearlyCounts
	salespersonsPerYear   map[string]map[string]struct{}
	monthly               map[string]*monthlyAccumulator
	firstSeen             []string
	transactionTypeByYear domain.TypeBreakdownByYear
	propertyTypeByYear    domain.TypeBreakdownByYear
	records               map[string][]domain.TransactionRecord

	totalRecords int
	skippedDates int
}

// NewAggregator creates an aggregator with empty accumulators.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger:                logger,
		transactionsByYear:    make(domain.YearlyCounts),
		salespersonsPerYear:   make(map[string]map[string]struct{}),
		monthly:               make(map[string]*monthlyAccumulator),
		transactionTypeByYear: make(domain.TypeBreakdownByYear),
		propertyTypeByYear:    make(domain.TypeBreakdownByYear),
		records:               make(map[string][]domain.TransactionRecord),
	}
}

// Consume streams every row of the transaction feed through the
// aggregator. Rows the reader drops for column count and rows with an
// unusable transaction date are counted, never escalated.
func (a *Aggregator) Consume(ctx context.Context, r *Reader) (*AggregationResult, error) {
	for {
		fields, more := r.Next()
		if !more {
			break
		}

		a.Add(recordFromRow(fields))

		if r.Line()%progressInterval == 0 {
			a.logger.InfoContext(ctx, "aggregation progress",
				slog.Int("lines_read", r.Line()),
				slog.Int("records_processed", a.totalRecords))
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read transaction feed: %w", err)
	}

	result := a.Finalize(time.Now().UTC())
	result.SkippedRows = r.Skipped()

	a.logger.InfoContext(ctx, "aggregation pass complete",
		slog.Int("total_records", result.Metadata.TotalRecords),
		slog.Int("unique_salespersons", result.Metadata.UniqueSalespersons),
		slog.Int("skipped_rows", result.SkippedRows),
		slog.Int("skipped_dates", result.SkippedDates))

	return result, nil
}

// Add feeds one record through every accumulator. It reports false when
// the record's transaction date is unusable; such records are excluded
// from all derived views.
func (a *Aggregator) Add(rec domain.TransactionRecord) bool {
	year, monthYear, ok := NormalizeTransactionDate(rec.TransactionDate)
	if !ok {
		a.skippedDates++
		return false
	}

	regNum := rec.RegNum
	if regNum == "" {
		regNum = domain.UnknownRegNum
	}
	name := rec.Name
	if name == "" {
		name = "Unknown"
	}

	a.totalRecords++
	a.transactionsByYear[year]++

	set, exists := a.salespersonsPerYear[year]
	if !exists {
		set = make(map[string]struct{})
		a.salespersonsPerYear[year] = set
	}
	set[regNum] = struct{}{}

	acc, exists := a.monthly[regNum]
	if !exists {
		acc = &monthlyAccumulator{name: name, monthly: make(map[string]int)}
		a.monthly[regNum] = acc
		a.firstSeen = append(a.firstSeen, regNum)
	}
	acc.monthly[monthYear]++

	a.bumpType(a.transactionTypeByYear, year, rec.TransactionType)
	a.bumpType(a.propertyTypeByYear, year, rec.PropertyType)

	a.records[regNum] = append(a.records[regNum], normalizeRecord(rec, regNum, name))

	return true
}

func (a *Aggregator) bumpType(breakdown domain.TypeBreakdownByYear, year, label string) {
	if label == "" {
		label = "Unknown"
	}
	types, exists := breakdown[year]
	if !exists {
		types = make(map[string]int)
		breakdown[year] = types
	}
	types[label]++
}

// Finalize converts the accumulators into their presentation shapes:
// distinct-salesperson sets become counts, the per-salesperson monthly
// map becomes a list sorted by total descending with first-seen order as
// the stable tie-break, and the run metadata is stamped with now.
func (a *Aggregator) Finalize(now time.Time) *AggregationResult {
	salespersonsByYear := make(domain.YearlyCounts, len(a.salespersonsPerYear))
	for year, set := range a.salespersonsPerYear {
		salespersonsByYear[year] = len(set)
	}

	monthly := make([]domain.SalespersonMonthly, 0, len(a.monthly))
	for _, regNum := range a.firstSeen {
		acc := a.monthly[regNum]
		total := 0
		for _, count := range acc.monthly {
			total += count
		}
		monthly = append(monthly, domain.SalespersonMonthly{
			Name:    acc.name,
			RegNum:  regNum,
			Monthly: acc.monthly,
			Total:   total,
		})
	}
	sort.SliceStable(monthly, func(i, j int) bool {
		return monthly[i].Total > monthly[j].Total
	})

	return &AggregationResult{
		TransactionsByYear:    a.transactionsByYear,
		SalespersonsByYear:    salespersonsByYear,
		SalespersonMonthly:    monthly,
		TransactionTypeByYear: a.transactionTypeByYear,
		PropertyTypeByYear:    a.propertyTypeByYear,
		SalespersonRecords:    a.records,
		Metadata: domain.Metadata{
			LastSync:           now.Format(time.RFC3339),
			TotalRecords:       a.totalRecords,
			UniqueSalespersons: len(a.monthly),
		},
		SkippedDates: a.skippedDates,
	}
}

// recordFromRow maps a transaction feed row onto a TransactionRecord.
// Column order follows the published feed layout.
func recordFromRow(fields []string) domain.TransactionRecord {
	return domain.TransactionRecord{
		Name:            fields[0],
		TransactionDate: fields[1],
		RegNum:          fields[2],
		PropertyType:    fields[3],
		TransactionType: fields[4],
		Represented:     fields[5],
		Town:            fields[6],
		District:        fields[7],
		GeneralLocation: fields[8],
	}
}

// normalizeRecord fills the record copy kept for per-salesperson lookup,
// substituting the "-" sentinel for absent optional fields.
func normalizeRecord(rec domain.TransactionRecord, regNum, name string) domain.TransactionRecord {
	out := domain.TransactionRecord{
		Name:            name,
		RegNum:          regNum,
		TransactionDate: rec.TransactionDate,
		PropertyType:    rec.PropertyType,
		TransactionType: rec.TransactionType,
		Represented:     rec.Represented,
		Town:            rec.Town,
		District:        rec.District,
		GeneralLocation: rec.GeneralLocation,
	}
	for _, field := range []*string{
		&out.PropertyType, &out.TransactionType, &out.Represented,
		&out.Town, &out.District, &out.GeneralLocation,
	} {
		if *field == "" {
			*field = domain.MissingValue
		}
	}
	return out
}
