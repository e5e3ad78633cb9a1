package exporter

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"ceapulse/internal/dataprocessing"
	"ceapulse/pkg/contracts/domain"
)

// topSalespersonRows caps the workbook's ranking sheet; the full
// ranking stays in the JSON artifact.
const topSalespersonRows = 100

// WriteWorkbook writes a spreadsheet summary of one aggregation run to
// path. The workbook carries the yearly rollups, the type breakdowns,
// and the top of the salesperson ranking.
func WriteWorkbook(path string, result *dataprocessing.AggregationResult) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// WriteWorkbookTo streams the workbook to w instead of a file, for the
// download endpoint.
func WriteWorkbookTo(w io.Writer, result *dataprocessing.AggregationResult) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(result *dataprocessing.AggregationResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeOverviewSheet(f, result.Metadata); err != nil {
		return nil, err
	}
	if err := writeYearSheet(f, "Transactions by Year", result.TransactionsByYear); err != nil {
		return nil, err
	}
	if err := writeYearSheet(f, "Salespersons by Year", result.SalespersonsByYear); err != nil {
		return nil, err
	}
	if err := writeBreakdownSheet(f, "Transaction Types", result.TransactionTypeByYear); err != nil {
		return nil, err
	}
	if err := writeBreakdownSheet(f, "Property Types", result.PropertyTypeByYear); err != nil {
		return nil, err
	}
	if err := writeRankingSheet(f, result.SalespersonMonthly); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	return f, nil
}

func writeOverviewSheet(f *excelize.File, meta domain.Metadata) error {
	const sheet = "Overview"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	rows := [][]interface{}{
		{"Last Sync", meta.LastSync},
		{"Total Records", meta.TotalRecords},
		{"Unique Salespersons", meta.UniqueSalespersons},
	}
	return writeRows(f, sheet, rows)
}

func writeYearSheet(f *excelize.File, sheet string, counts domain.YearlyCounts) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	years := make([]string, 0, len(counts))
	for year := range counts {
		years = append(years, year)
	}
	sort.Strings(years)

	rows := [][]interface{}{{"Year", "Count"}}
	for _, year := range years {
		rows = append(rows, []interface{}{year, counts[year]})
	}
	return writeRows(f, sheet, rows)
}

func writeBreakdownSheet(f *excelize.File, sheet string, breakdown domain.TypeBreakdownByYear) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	years := make([]string, 0, len(breakdown))
	for year := range breakdown {
		years = append(years, year)
	}
	sort.Strings(years)

	rows := [][]interface{}{{"Year", "Type", "Count"}}
	for _, year := range years {
		types := make([]string, 0, len(breakdown[year]))
		for typ := range breakdown[year] {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			rows = append(rows, []interface{}{year, typ, breakdown[year][typ]})
		}
	}
	return writeRows(f, sheet, rows)
}

func writeRankingSheet(f *excelize.File, monthly []domain.SalespersonMonthly) error {
	const sheet = "Top Salespersons"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	limit := len(monthly)
	if limit > topSalespersonRows {
		limit = topSalespersonRows
	}

	rows := [][]interface{}{{"Rank", "Name", "Registration No", "Total Transactions"}}
	for i := 0; i < limit; i++ {
		sp := monthly[i]
		rows = append(rows, []interface{}{i + 1, sp.Name, sp.RegNum, sp.Total})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
