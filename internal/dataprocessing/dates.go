package dataprocessing

import "strings"

// monthNumbers maps the feed's three-letter month abbreviations to
// two-digit month numbers.
var monthNumbers = map[string]string{
	"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04",
	"MAY": "05", "JUN": "06", "JUL": "07", "AUG": "08",
	"SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
}

// NormalizeTransactionDate converts the feed's "MON-YYYY" transaction
// date into a calendar year and a sortable "YYYY-MM" key. The month
// abbreviation is case-insensitive.
//
// Empty input, "-", or anything outside the twelve standard
// abbreviations reports ok=false. Callers must treat that as "skip this
// record's date-derived aggregation", not as a fatal error: the feed is
// known to contain undated rows.
func NormalizeTransactionDate(dateStr string) (year, monthYear string, ok bool) {
	if dateStr == "" || dateStr == "-" {
		return "", "", false
	}

	parts := strings.Split(dateStr, "-")
	if len(parts) != 2 {
		return "", "", false
	}

	month, found := monthNumbers[strings.ToUpper(parts[0])]
	year = parts[1]
	if !found || year == "" {
		return "", "", false
	}

	return year, year + "-" + month, true
}
