package domain

// TransactionRecord represents one row of the property transaction feed.
// Records are immutable once parsed: the parser creates them, the
// aggregation engine consumes them, nothing mutates them afterwards.
type TransactionRecord struct {
	Name            string `json:"name" db:"name" validate:"required"`
	RegNum          string `json:"reg_num" db:"reg_num" validate:"required"`
	TransactionDate string `json:"transaction_date" db:"transaction_date"`
	PropertyType    string `json:"property_type" db:"property_type"`
	TransactionType string `json:"transaction_type" db:"transaction_type"`
	Represented     string `json:"represented" db:"represented"`
	Town            string `json:"town" db:"town"`
	District        string `json:"district" db:"district"`
	GeneralLocation string `json:"general_location" db:"general_location"`
}

// MinTransactionColumns is the minimum field count a transaction row must
// carry to be processed. Shorter rows are skipped, not errors: the source
// feed routinely contains malformed trailing rows.
const MinTransactionColumns = 9

// UnknownRegNum is the bucket for rows that carry no registration number.
const UnknownRegNum = "UNKNOWN"

// MissingValue is the sentinel written for absent optional fields.
const MissingValue = "-"
