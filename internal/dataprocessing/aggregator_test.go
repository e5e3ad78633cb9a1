package dataprocessing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ceapulse/pkg/contracts/domain"
)

func txRecord(name, date, regNum, propType, txnType string) domain.TransactionRecord {
	return domain.TransactionRecord{
		Name:            name,
		TransactionDate: date,
		RegNum:          regNum,
		PropertyType:    propType,
		TransactionType: txnType,
		Represented:     "Seller",
		Town:            "Bedok",
		District:        "D16",
		GeneralLocation: "East",
	}
}

func TestAggregatorAdd(t *testing.T) {
	t.Run("unusable date excluded from all views", func(t *testing.T) {
		agg := NewAggregator(nil)

		assert.False(t, agg.Add(txRecord("Tan", "-", "R1", "HDB", "Resale")))
		assert.False(t, agg.Add(txRecord("Tan", "FOO-24", "R1", "HDB", "Resale")))

		result := agg.Finalize(time.Now())
		assert.Zero(t, result.Metadata.TotalRecords)
		assert.Empty(t, result.TransactionsByYear)
		assert.Empty(t, result.SalespersonMonthly)
		assert.Empty(t, result.SalespersonRecords)
		assert.Equal(t, 2, result.SkippedDates)
	})

	t.Run("missing reg num and types fall into buckets", func(t *testing.T) {
		agg := NewAggregator(nil)
		require.True(t, agg.Add(txRecord("", "JAN-2024", "", "", "")))

		result := agg.Finalize(time.Now())
		assert.Equal(t, 1, result.TransactionsByYear["2024"])
		assert.Equal(t, 1, result.TransactionTypeByYear["2024"]["Unknown"])
		assert.Equal(t, 1, result.PropertyTypeByYear["2024"]["Unknown"])

		require.Len(t, result.SalespersonMonthly, 1)
		assert.Equal(t, domain.UnknownRegNum, result.SalespersonMonthly[0].RegNum)
		assert.Equal(t, "Unknown", result.SalespersonMonthly[0].Name)

		records := result.SalespersonRecords[domain.UnknownRegNum]
		require.Len(t, records, 1)
		assert.Equal(t, domain.MissingValue, records[0].PropertyType)
	})
}

func TestAggregatorFinalize(t *testing.T) {
	agg := NewAggregator(nil)

	// R1: three transactions across two months, R2: one, R3: one.
	require.True(t, agg.Add(txRecord("Tan Wei Ming", "JAN-2024", "R1", "HDB", "Resale")))
	require.True(t, agg.Add(txRecord("Tan Wei Ming", "JAN-2024", "R1", "Condo", "Resale")))
	require.True(t, agg.Add(txRecord("Tan Wei Ming", "FEB-2024", "R1", "HDB", "Rental")))
	require.True(t, agg.Add(txRecord("Lim Ah Seng", "MAR-2023", "R2", "HDB", "Resale")))
	require.True(t, agg.Add(txRecord("Ong Mei Ling", "JAN-2024", "R3", "Landed", "Resale")))

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	result := agg.Finalize(now)

	t.Run("yearly counts", func(t *testing.T) {
		assert.Equal(t, domain.YearlyCounts{"2024": 4, "2023": 1}, result.TransactionsByYear)
		assert.Equal(t, domain.YearlyCounts{"2024": 2, "2023": 1}, result.SalespersonsByYear)
	})

	t.Run("type breakdown sums match yearly totals", func(t *testing.T) {
		for year, total := range result.TransactionsByYear {
			txnSum := 0
			for _, count := range result.TransactionTypeByYear[year] {
				txnSum += count
			}
			propSum := 0
			for _, count := range result.PropertyTypeByYear[year] {
				propSum += count
			}
			assert.Equal(t, total, txnSum, "transaction types for %s", year)
			assert.Equal(t, total, propSum, "property types for %s", year)
		}
	})

	t.Run("monthly list sorted by total with stable tie-break", func(t *testing.T) {
		require.Len(t, result.SalespersonMonthly, 3)
		assert.Equal(t, "R1", result.SalespersonMonthly[0].RegNum)
		assert.Equal(t, 3, result.SalespersonMonthly[0].Total)
		// R2 and R3 tie on total; first-seen order wins.
		assert.Equal(t, "R2", result.SalespersonMonthly[1].RegNum)
		assert.Equal(t, "R3", result.SalespersonMonthly[2].RegNum)
	})

	t.Run("total equals sum of monthly counts", func(t *testing.T) {
		for _, sp := range result.SalespersonMonthly {
			sum := 0
			for _, count := range sp.Monthly {
				sum += count
			}
			assert.Equal(t, sp.Total, sum, "salesperson %s", sp.RegNum)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		assert.Equal(t, 5, result.Metadata.TotalRecords)
		assert.Equal(t, 3, result.Metadata.UniqueSalespersons)
		assert.Equal(t, now.Format(time.RFC3339), result.Metadata.LastSync)
	})

	t.Run("record lists", func(t *testing.T) {
		assert.Len(t, result.SalespersonRecords["R1"], 3)
		assert.Len(t, result.SalespersonRecords["R2"], 1)
	})
}

func TestAggregatorConsume(t *testing.T) {
	input := strings.Join([]string{
		"salesperson_name,transaction_date,salesperson_reg_num,property_type,transaction_type,represented,town,district,general_location",
		"Tan Wei Ming,JAN-2024,R1,HDB,Resale,Seller,Bedok,D16,East",
		"Tan Wei Ming,FEB-2024,R1,HDB,Rental,Landlord,Bedok,D16,East",
		"Lim Ah Seng,JAN-2024,R2,Condo,Resale,Buyer,Tampines,D18,East",
		"malformed,row",
		"Ong Mei Ling,-,R3,HDB,Resale,Seller,Yishun,D27,North",
	}, "\n")

	agg := NewAggregator(nil)
	reader := NewReader(strings.NewReader(input), domain.MinTransactionColumns)

	result, err := agg.Consume(context.Background(), reader)
	require.NoError(t, err)

	// Malformed row and undated row are both skipped, separately counted.
	assert.Equal(t, 1, result.SkippedRows)
	assert.Equal(t, 1, result.SkippedDates)
	assert.Equal(t, 3, result.Metadata.TotalRecords)

	require.Len(t, result.SalespersonMonthly, 2)
	assert.Equal(t, "R1", result.SalespersonMonthly[0].RegNum)
	assert.Equal(t, 2, result.SalespersonMonthly[0].Total)
	assert.Equal(t, "R2", result.SalespersonMonthly[1].RegNum)
	assert.Equal(t, 1, result.SalespersonMonthly[1].Total)
}
