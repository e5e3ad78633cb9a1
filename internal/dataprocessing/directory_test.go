package dataprocessing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectory(t *testing.T) {
	input := strings.Join([]string{
		"name,reg_num,registration_start_date,registration_end_date,estate_agent_name,estate_agent_license_no",
		"Tan Wei Ming,R1,2020-01-01,2025-12-31,ABC Realty,L123",
		"No Reg Num,,2020-01-01,2025-12-31,ABC Realty,L123",
		"Lim Ah Seng,R2,2019-06-01,,,",
		"Tan Wei Ming,R1,2021-01-01,2026-12-31,XYZ Realty,L456",
		"short,row",
	}, "\n")

	directory, err := LoadDirectory(context.Background(), nil, strings.NewReader(input))
	require.NoError(t, err)

	assert.Len(t, directory, 2)

	t.Run("duplicate reg num keeps last row", func(t *testing.T) {
		info := directory["R1"]
		assert.Equal(t, "XYZ Realty", info.EstateAgentName)
		assert.Equal(t, "L456", info.EstateAgentLicenseNo)
		assert.Equal(t, "2021-01-01", info.RegistrationStartDate)
	})

	t.Run("missing optional fields get sentinel", func(t *testing.T) {
		info := directory["R2"]
		assert.Equal(t, "-", info.RegistrationEndDate)
		assert.Equal(t, "-", info.EstateAgentName)
		assert.Equal(t, "-", info.EstateAgentLicenseNo)
	})

	t.Run("rows without reg num skipped", func(t *testing.T) {
		_, exists := directory[""]
		assert.False(t, exists)
	})
}
