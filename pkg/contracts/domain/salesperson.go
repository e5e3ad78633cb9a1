package domain

// SalespersonInfo is one directory entry of the salesperson register,
// keyed by registration number. The directory is replaced wholesale on
// every sync; the movement detector reads it as the "before" state.
type SalespersonInfo struct {
	Name                  string `json:"name" db:"name"`
	RegNum                string `json:"reg_num" db:"reg_num" validate:"required"`
	RegistrationStartDate string `json:"registration_start_date" db:"registration_start_date"`
	RegistrationEndDate   string `json:"registration_end_date" db:"registration_end_date"`
	EstateAgentName       string `json:"estate_agent_name" db:"estate_agent_name"`
	EstateAgentLicenseNo  string `json:"estate_agent_license_no" db:"estate_agent_license_no"`
}

// MinInfoColumns is the minimum field count for a salesperson info row.
const MinInfoColumns = 6

// SalespersonMonthly is a salesperson's transaction time series keyed by
// "YYYY-MM", plus the derived total. Total always equals the sum of the
// monthly counts; it is computed once when aggregation finalizes and the
// whole set replaces the prior version on every run.
type SalespersonMonthly struct {
	Name    string         `json:"name"`
	RegNum  string         `json:"reg_num"`
	Monthly map[string]int `json:"monthly"`
	Total   int            `json:"total"`
}

// RegistryRecord is one record of the remote open-data registry feed.
type RegistryRecord struct {
	SalespersonName       string `json:"salesperson_name"`
	RegistrationNo        string `json:"registration_no"`
	RegistrationStartDate string `json:"registration_start_date"`
	RegistrationEndDate   string `json:"registration_end_date"`
	EstateAgentName       string `json:"estate_agent_name"`
	EstateAgentLicenseNo  string `json:"estate_agent_license_no"`
}
