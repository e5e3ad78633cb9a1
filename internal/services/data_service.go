// Package services holds the read-side business logic between the HTTP
// handlers and the stored aggregation artifacts.
package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"ceapulse/internal/dataprocessing"
	apperrors "ceapulse/internal/errors"
	"ceapulse/internal/exporter"
	"ceapulse/pkg/contracts/domain"
)

// defaultLeaderboardLimit caps a date-range ranking response when the
// caller does not ask for fewer rows.
const defaultLeaderboardLimit = 100

// ArtifactSource loads the aggregation artifacts the data service
// serves. *exporter.Reader satisfies it.
type ArtifactSource interface {
	Metadata() (domain.Metadata, error)
	TransactionsByYear() (domain.YearlyCounts, error)
	SalespersonsByYear() (domain.YearlyCounts, error)
	TransactionTypeByYear() (domain.TypeBreakdownByYear, error)
	PropertyTypeByYear() (domain.TypeBreakdownByYear, error)
	SalespersonMonthly() ([]domain.SalespersonMonthly, error)
	SalespersonRecords() (map[string][]domain.TransactionRecord, error)
	SalespersonInfo() (map[string]domain.SalespersonInfo, error)
}

// DataService serves analytical reads over one aggregation run's
// artifacts. Artifacts are immutable between runs, so each one is
// loaded at most once per service instance.
type DataService struct {
	source ArtifactSource
	logger *slog.Logger

	mu      sync.Mutex
	monthly []domain.SalespersonMonthly
	records map[string][]domain.TransactionRecord
	infos   map[string]domain.SalespersonInfo
}

// NewDataService creates a data service over source.
func NewDataService(source ArtifactSource, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{
		source: source,
		logger: logger.With(slog.String("service", "data")),
	}
}

// Overview bundles the dashboard's headline artifacts.
type Overview struct {
	Metadata              domain.Metadata            `json:"metadata"`
	TransactionsByYear    domain.YearlyCounts        `json:"transactions_by_year"`
	SalespersonsByYear    domain.YearlyCounts        `json:"salespersons_by_year"`
	TransactionTypeByYear domain.TypeBreakdownByYear `json:"transaction_type_by_year"`
	PropertyTypeByYear    domain.TypeBreakdownByYear `json:"property_type_by_year"`
}

// GetOverview returns the headline aggregates for the dashboard.
func (s *DataService) GetOverview(ctx context.Context) (*Overview, error) {
	meta, err := s.source.Metadata()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load metadata", err)
	}
	transactions, err := s.source.TransactionsByYear()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load transactions by year", err)
	}
	salespersons, err := s.source.SalespersonsByYear()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load salespersons by year", err)
	}
	transactionTypes, err := s.source.TransactionTypeByYear()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load transaction types", err)
	}
	propertyTypes, err := s.source.PropertyTypeByYear()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load property types", err)
	}

	return &Overview{
		Metadata:              meta,
		TransactionsByYear:    transactions,
		SalespersonsByYear:    salespersons,
		TransactionTypeByYear: transactionTypes,
		PropertyTypeByYear:    propertyTypes,
	}, nil
}

func (s *DataService) loadMonthly() ([]domain.SalespersonMonthly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monthly == nil {
		monthly, err := s.source.SalespersonMonthly()
		if err != nil {
			return nil, apperrors.NewStorageError("failed to load salesperson monthly series", err)
		}
		s.monthly = monthly
	}
	return s.monthly, nil
}

// GetLeaderboard ranks salespersons by transaction count over the
// inclusive month range [start, end] ("YYYY-MM"). Salespersons with no
// transactions in the range are dropped; ties keep the overall-ranking
// order. An empty start or end leaves that side unbounded; a
// non-positive limit means the default of 100.
func (s *DataService) GetLeaderboard(ctx context.Context, start, end string, limit int) ([]domain.SalespersonTotal, error) {
	if limit <= 0 || limit > defaultLeaderboardLimit {
		limit = defaultLeaderboardLimit
	}

	monthly, err := s.loadMonthly()
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.SalespersonTotal, 0, limit)
	for _, sp := range monthly {
		total := 0
		for month, count := range sp.Monthly {
			if start != "" && month < start {
				continue
			}
			if end != "" && month > end {
				continue
			}
			total += count
		}
		if total > 0 {
			ranked = append(ranked, domain.SalespersonTotal{
				Name:         sp.Name,
				RegNum:       sp.RegNum,
				Transactions: total,
			})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Transactions > ranked[j].Transactions
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// DateRange is the span of months the loaded artifacts cover.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GetDateRange returns the earliest and latest month ("YYYY-MM") seen
// across all salesperson time series. A data set with no dated
// transactions yields a not-found error.
func (s *DataService) GetDateRange(ctx context.Context) (*DateRange, error) {
	monthly, err := s.loadMonthly()
	if err != nil {
		return nil, err
	}

	var r DateRange
	for _, sp := range monthly {
		for month := range sp.Monthly {
			if r.Start == "" || month < r.Start {
				r.Start = month
			}
			if month > r.End {
				r.End = month
			}
		}
	}
	if r.Start == "" {
		return nil, apperrors.NewNotFoundError("no dated transactions in data set")
	}
	return &r, nil
}

// SalespersonDetail joins a salesperson's transaction history with the
// directory entry. Info is nil when the directory has no entry for the
// registration number; the history is still served.
type SalespersonDetail struct {
	RegNum  string                     `json:"reg_num"`
	Info    *domain.SalespersonInfo    `json:"info"`
	Records []domain.TransactionRecord `json:"records"`
}

// GetSalesperson returns the detail view for one registration number.
func (s *DataService) GetSalesperson(ctx context.Context, regNum string) (*SalespersonDetail, error) {
	s.mu.Lock()
	if s.records == nil {
		records, err := s.source.SalespersonRecords()
		if err != nil {
			s.mu.Unlock()
			return nil, apperrors.NewStorageError("failed to load salesperson records", err)
		}
		s.records = records
	}
	if s.infos == nil {
		infos, err := s.source.SalespersonInfo()
		if err != nil {
			// the info artifact is optional; serve history without it
			s.logger.WarnContext(ctx, "salesperson info unavailable",
				slog.String("error", err.Error()))
			s.infos = map[string]domain.SalespersonInfo{}
		} else {
			s.infos = infos
		}
	}
	records := s.records[regNum]
	info, hasInfo := s.infos[regNum]
	s.mu.Unlock()

	if len(records) == 0 && !hasInfo {
		return nil, apperrors.NewNotFoundError("salesperson not found: " + regNum)
	}

	detail := &SalespersonDetail{RegNum: regNum, Records: records}
	if hasInfo {
		detail.Info = &info
	}
	return detail, nil
}

// WriteWorkbook streams a spreadsheet summary of the loaded artifacts
// to w.
func (s *DataService) WriteWorkbook(ctx context.Context, w io.Writer) error {
	meta, err := s.source.Metadata()
	if err != nil {
		return apperrors.NewStorageError("failed to load metadata", err)
	}
	transactions, err := s.source.TransactionsByYear()
	if err != nil {
		return apperrors.NewStorageError("failed to load transactions by year", err)
	}
	salespersons, err := s.source.SalespersonsByYear()
	if err != nil {
		return apperrors.NewStorageError("failed to load salespersons by year", err)
	}
	transactionTypes, err := s.source.TransactionTypeByYear()
	if err != nil {
		return apperrors.NewStorageError("failed to load transaction types", err)
	}
	propertyTypes, err := s.source.PropertyTypeByYear()
	if err != nil {
		return apperrors.NewStorageError("failed to load property types", err)
	}
	monthly, err := s.loadMonthly()
	if err != nil {
		return err
	}

	result := &dataprocessing.AggregationResult{
		TransactionsByYear:    transactions,
		SalespersonsByYear:    salespersons,
		TransactionTypeByYear: transactionTypes,
		PropertyTypeByYear:    propertyTypes,
		SalespersonMonthly:    monthly,
		Metadata:              meta,
	}
	return exporter.WriteWorkbookTo(w, result)
}
