package domain

import "time"

// Movement records a detected change in a salesperson's agency
// affiliation between two directory snapshots. Movements are append-only:
// once recorded they are never updated or deleted, and consumers order
// them by detection time.
//
// Old/new fields are pointers because an absent affiliation is stored as
// null, not as an empty string.
type Movement struct {
	ID                   int64      `json:"id,omitempty" db:"id"`
	DetectedAt           *time.Time `json:"detected_at,omitempty" db:"detected_at"`
	RegNum               string     `json:"reg_num" db:"reg_num"`
	SalespersonName      string     `json:"salesperson_name" db:"salesperson_name"`
	OldEstateAgentName   *string    `json:"old_estate_agent_name" db:"old_estate_agent_name"`
	NewEstateAgentName   *string    `json:"new_estate_agent_name" db:"new_estate_agent_name"`
	OldEstateAgentLicNo  *string    `json:"old_estate_agent_license_no" db:"old_estate_agent_license_no"`
	NewEstateAgentLicNo  *string    `json:"new_estate_agent_license_no" db:"new_estate_agent_license_no"`
}
