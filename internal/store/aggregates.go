package store

import (
	"context"
	"log/slog"
	"net/url"
	"sort"

	"ceapulse/internal/dataprocessing"
	"ceapulse/pkg/contracts/domain"
)

const (
	metadataTable              = "metadata"
	transactionsByYearTable    = "transactions_by_year"
	salespersonsByYearTable    = "salespersons_by_year"
	transactionTypeByYearTable = "transaction_type_by_year"
	propertyTypeByYearTable    = "property_type_by_year"
	salespersonMonthlyTable    = "salesperson_monthly"
	salespersonRecordsTable    = "salesperson_records"
)

type metadataRow struct {
	ID                 int    `json:"id"`
	LastSync           string `json:"last_sync"`
	TotalRecords       int    `json:"total_records"`
	UniqueSalespersons int    `json:"unique_salespersons"`
}

type yearCountRow struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

type typeCountRow struct {
	Year  string `json:"year"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type monthlyRow struct {
	RegNum    string `json:"reg_num"`
	Name      string `json:"name"`
	MonthYear string `json:"month_year"`
	Count     int    `json:"count"`
}

type recordRow struct {
	RegNum string                   `json:"reg_num"`
	Record domain.TransactionRecord `json:"record"`
}

// UploadAggregates writes a full aggregation result to the store. The
// single metadata row (id 1) and the yearly rollups are upserted in
// place; monthly counts are upserted keyed by salesperson and month;
// per-salesperson record lists are replaced wholesale, since there is
// no stable per-row key to upsert on.
func (c *Client) UploadAggregates(ctx context.Context, result *dataprocessing.AggregationResult, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	meta := []metadataRow{{
		ID:                 1,
		LastSync:           result.Metadata.LastSync,
		TotalRecords:       result.Metadata.TotalRecords,
		UniqueSalespersons: result.Metadata.UniqueSalespersons,
	}}
	if err := c.upsertRows(ctx, metadataTable, "id", meta); err != nil {
		return err
	}

	if err := c.upsertRows(ctx, transactionsByYearTable, "year", yearRows(result.TransactionsByYear)); err != nil {
		return err
	}
	if err := c.upsertRows(ctx, salespersonsByYearTable, "year", yearRows(result.SalespersonsByYear)); err != nil {
		return err
	}
	if err := c.upsertRows(ctx, transactionTypeByYearTable, "year,type", typeRows(result.TransactionTypeByYear)); err != nil {
		return err
	}
	if err := c.upsertRows(ctx, propertyTypeByYearTable, "year,type", typeRows(result.PropertyTypeByYear)); err != nil {
		return err
	}

	if err := c.uploadMonthly(ctx, result.SalespersonMonthly, batchSize); err != nil {
		return err
	}
	if err := c.replaceRecords(ctx, result.SalespersonRecords, batchSize); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "uploaded aggregates",
		slog.Int("total_records", result.Metadata.TotalRecords),
		slog.Int("unique_salespersons", result.Metadata.UniqueSalespersons))
	return nil
}

func yearRows(counts domain.YearlyCounts) []yearCountRow {
	rows := make([]yearCountRow, 0, len(counts))
	for year, count := range counts {
		rows = append(rows, yearCountRow{Year: year, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return rows
}

func typeRows(breakdown domain.TypeBreakdownByYear) []typeCountRow {
	var rows []typeCountRow
	for year, types := range breakdown {
		for typ, count := range types {
			rows = append(rows, typeCountRow{Year: year, Type: typ, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Type < rows[j].Type
	})
	return rows
}

func (c *Client) uploadMonthly(ctx context.Context, monthly []domain.SalespersonMonthly, batchSize int) error {
	var rows []monthlyRow
	for _, sp := range monthly {
		months := make([]string, 0, len(sp.Monthly))
		for month := range sp.Monthly {
			months = append(months, month)
		}
		sort.Strings(months)
		for _, month := range months {
			rows = append(rows, monthlyRow{
				RegNum:    sp.RegNum,
				Name:      sp.Name,
				MonthYear: month,
				Count:     sp.Monthly[month],
			})
		}
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := c.upsertRows(ctx, salespersonMonthlyTable, "reg_num,month_year", rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) replaceRecords(ctx context.Context, records map[string][]domain.TransactionRecord, batchSize int) error {
	// Match-all filter: every row has a non-negative id.
	query := url.Values{}
	query.Set("id", "gte.0")
	if err := c.deleteRows(ctx, salespersonRecordsTable, query); err != nil {
		return err
	}

	regNums := make([]string, 0, len(records))
	for regNum := range records {
		regNums = append(regNums, regNum)
	}
	sort.Strings(regNums)

	var rows []recordRow
	for _, regNum := range regNums {
		for _, rec := range records[regNum] {
			rows = append(rows, recordRow{RegNum: regNum, Record: rec})
		}
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := c.insertRows(ctx, salespersonRecordsTable, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}
