// Package movements detects agency-affiliation changes between the
// freshly fetched registry feed and the previously stored salesperson
// directory.
package movements

import (
	"strings"

	"ceapulse/pkg/contracts/domain"
)

// BuildLookup indexes stored directory entries by registration number so
// detection costs O(1) per remote record. The remote feed can carry tens
// of thousands of records.
func BuildLookup(stored []domain.SalespersonInfo) map[string]domain.SalespersonInfo {
	lookup := make(map[string]domain.SalespersonInfo, len(stored))
	for _, info := range stored {
		lookup[info.RegNum] = info
	}
	return lookup
}

// Detect compares every remote record against the stored directory and
// emits one Movement per registration number whose agency name changed.
// Agency names are compared after trimming whitespace, with
// empty-after-trim treated as absent. Registration numbers present only
// in the remote feed are new registrants, not movements. Emission order
// follows the remote record stream; consumers re-sort by detection time.
func Detect(remote []domain.RegistryRecord, stored map[string]domain.SalespersonInfo) []domain.Movement {
	var detected []domain.Movement

	for _, record := range remote {
		existing, known := stored[record.RegistrationNo]
		if !known {
			continue
		}

		oldAgent := normalizeAgency(existing.EstateAgentName)
		newAgent := normalizeAgency(record.EstateAgentName)

		if !equalAgency(oldAgent, newAgent) {
			detected = append(detected, domain.Movement{
				RegNum:              record.RegistrationNo,
				SalespersonName:     record.SalespersonName,
				OldEstateAgentName:  oldAgent,
				NewEstateAgentName:  newAgent,
				OldEstateAgentLicNo: normalizeAgency(existing.EstateAgentLicenseNo),
				NewEstateAgentLicNo: normalizeAgency(record.EstateAgentLicenseNo),
			})
		}
	}

	return detected
}

// normalizeAgency trims the value and maps empty or sentinel values to
// nil, the store's representation of an absent affiliation.
func normalizeAgency(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == domain.MissingValue {
		return nil
	}
	return &trimmed
}

func equalAgency(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
