package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTransactionDate(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantYear      string
		wantMonthYear string
		wantOK        bool
	}{
		{name: "january", input: "JAN-2024", wantYear: "2024", wantMonthYear: "2024-01", wantOK: true},
		{name: "december", input: "DEC-2019", wantYear: "2019", wantMonthYear: "2019-12", wantOK: true},
		{name: "lowercase month", input: "sep-2021", wantYear: "2021", wantMonthYear: "2021-09", wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "dash placeholder", input: "-", wantOK: false},
		{name: "unknown month", input: "FOO-24", wantOK: false},
		{name: "missing year", input: "JAN-", wantOK: false},
		{name: "too many parts", input: "JAN-2024-01", wantOK: false},
		{name: "no separator", input: "JAN2024", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, monthYear, ok := NormalizeTransactionDate(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantYear, year)
				assert.Equal(t, tt.wantMonthYear, monthYear)
			}
		})
	}
}
