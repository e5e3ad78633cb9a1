package domain

// YearlyCounts maps a four-digit year to a plain count. Used for both
// transactions-by-year and unique-salespersons-by-year.
type YearlyCounts map[string]int

// TypeBreakdownByYear maps a year to a mapping from type label to count.
// Invariant: the sum of a year's nested values equals that year's
// transaction count.
type TypeBreakdownByYear map[string]map[string]int

// Metadata is the singleton sync record, overwritten wholesale each run.
type Metadata struct {
	LastSync           string `json:"last_sync"`
	TotalRecords       int    `json:"total_records"`
	UniqueSalespersons int    `json:"unique_salespersons"`
}

// SalespersonTotal is one leaderboard row for a date-range query.
type SalespersonTotal struct {
	Name         string `json:"name"`
	RegNum       string `json:"reg_num"`
	Transactions int    `json:"transactions"`
}
