package exporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ceapulse/internal/dataprocessing"
	"ceapulse/pkg/contracts/domain"
)

func fixtureResult() *dataprocessing.AggregationResult {
	return &dataprocessing.AggregationResult{
		TransactionsByYear: domain.YearlyCounts{"2023": 2, "2024": 3},
		SalespersonsByYear: domain.YearlyCounts{"2023": 1, "2024": 2},
		SalespersonMonthly: []domain.SalespersonMonthly{
			{Name: "Tan Ah Kow", RegNum: "R1", Monthly: map[string]int{"2024-01": 3}, Total: 3},
			{Name: "Lim Bee Hoon", RegNum: "R2", Monthly: map[string]int{"2023-05": 2}, Total: 2},
		},
		TransactionTypeByYear: domain.TypeBreakdownByYear{"2024": {"WHOLE RENTAL": 3}},
		PropertyTypeByYear:    domain.TypeBreakdownByYear{"2024": {"HDB": 2, "CONDOMINIUM": 1}},
		SalespersonRecords: map[string][]domain.TransactionRecord{
			"R1": {{Name: "Tan Ah Kow", RegNum: "R1", TransactionDate: "JAN-2024"}},
		},
		Metadata: domain.Metadata{
			LastSync:           "2024-06-01T00:00:00Z",
			TotalRecords:       5,
			UniqueSalespersons: 2,
		},
	}
}

func TestWriteAll_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	infos := map[string]domain.SalespersonInfo{
		"R1": {RegNum: "R1", Name: "Tan Ah Kow", EstateAgentName: "Acme Realty"},
	}
	require.NoError(t, w.WriteAll(fixtureResult(), infos))

	for _, name := range []string{
		MetadataFile, TransactionsByYearFile, SalespersonsByYearFile,
		TransactionTypeByYearFile, PropertyTypeByYearFile,
		SalespersonMonthlyFile, SalespersonRecordsFile, SalespersonInfoFile,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	r := NewReader(dir)

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, 5, meta.TotalRecords)

	counts, err := r.TransactionsByYear()
	require.NoError(t, err)
	assert.Equal(t, 3, counts["2024"])

	monthly, err := r.SalespersonMonthly()
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "R1", monthly[0].RegNum)

	records, err := r.SalespersonRecords()
	require.NoError(t, err)
	assert.Len(t, records["R1"], 1)

	loaded, err := r.SalespersonInfo()
	require.NoError(t, err)
	assert.Equal(t, "Acme Realty", loaded["R1"].EstateAgentName)
}

func TestWriteAll_SkipsInfoWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)
	require.NoError(t, w.WriteAll(fixtureResult(), nil))

	_, err := os.Stat(filepath.Join(dir, SalespersonInfoFile))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteAll_NoPartialFileOnOverwrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	require.NoError(t, w.WriteAll(fixtureResult(), nil))
	require.NoError(t, w.WriteAll(fixtureResult(), nil))

	// no leftover temp files after rename-based replacement
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-")
	}
}

func TestReader_MissingArtifact(t *testing.T) {
	r := NewReader(t.TempDir())
	_, err := r.Metadata()
	require.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	require.NoError(t, WriteWorkbook(path, fixtureResult()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Overview")
	assert.Contains(t, sheets, "Transactions by Year")
	assert.Contains(t, sheets, "Top Salespersons")
	assert.NotContains(t, sheets, "Sheet1")

	rows, err := f.GetRows("Top Salespersons")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Rank", "Name", "Registration No", "Total Transactions"}, rows[0])
	assert.Equal(t, "Tan Ah Kow", rows[1][1])
}
