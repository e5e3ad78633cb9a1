package store

import (
	"context"
	"log/slog"
	"net/url"

	"ceapulse/pkg/contracts/domain"
)

const directoryTable = "salesperson_info"

// DirectoryRow is the stored shape of one salesperson directory entry.
// Agency fields are pointers so that absent affiliations round-trip as
// nulls rather than empty strings or placeholder text.
type DirectoryRow struct {
	RegNum                string  `json:"reg_num"`
	Name                  string  `json:"name"`
	RegistrationStartDate *string `json:"registration_start_date"`
	RegistrationEndDate   *string `json:"registration_end_date"`
	EstateAgentName       *string `json:"estate_agent_name"`
	EstateAgentLicenseNo  *string `json:"estate_agent_license_no"`
}

// DirectoryRowFromRegistry maps one registry feed record to its stored
// shape. Placeholder values in the feed become nulls.
func DirectoryRowFromRegistry(rec domain.RegistryRecord) DirectoryRow {
	return DirectoryRow{
		RegNum:                rec.RegistrationNo,
		Name:                  rec.SalespersonName,
		RegistrationStartDate: nullable(rec.RegistrationStartDate),
		RegistrationEndDate:   nullable(rec.RegistrationEndDate),
		EstateAgentName:       nullable(rec.EstateAgentName),
		EstateAgentLicenseNo:  nullable(rec.EstateAgentLicenseNo),
	}
}

// DirectoryRowFromInfo maps a parsed directory entry to its stored
// shape. Placeholder values become nulls.
func DirectoryRowFromInfo(info domain.SalespersonInfo) DirectoryRow {
	return DirectoryRow{
		RegNum:                info.RegNum,
		Name:                  info.Name,
		RegistrationStartDate: nullable(info.RegistrationStartDate),
		RegistrationEndDate:   nullable(info.RegistrationEndDate),
		EstateAgentName:       nullable(info.EstateAgentName),
		EstateAgentLicenseNo:  nullable(info.EstateAgentLicenseNo),
	}
}

func nullable(value string) *string {
	if value == "" || value == domain.MissingValue {
		return nil
	}
	return &value
}

func orMissing(value *string) string {
	if value == nil || *value == "" {
		return domain.MissingValue
	}
	return *value
}

// LoadDirectory reads the full stored salesperson directory in one
// pass. Stored nulls come back as the placeholder value, matching the
// shape the ingestion pipeline produces.
func (c *Client) LoadDirectory(ctx context.Context) ([]domain.SalespersonInfo, error) {
	query := url.Values{}
	query.Set("select", "reg_num,name,registration_start_date,registration_end_date,estate_agent_name,estate_agent_license_no")

	var rows []DirectoryRow
	if _, err := c.selectRows(ctx, directoryTable, query, 0, -1, false, &rows); err != nil {
		return nil, err
	}

	infos := make([]domain.SalespersonInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, domain.SalespersonInfo{
			RegNum:                row.RegNum,
			Name:                  row.Name,
			RegistrationStartDate: orMissing(row.RegistrationStartDate),
			RegistrationEndDate:   orMissing(row.RegistrationEndDate),
			EstateAgentName:       orMissing(row.EstateAgentName),
			EstateAgentLicenseNo:  orMissing(row.EstateAgentLicenseNo),
		})
	}

	c.logger.InfoContext(ctx, "loaded stored directory", slog.Int("rows", len(infos)))
	return infos, nil
}

// UpsertDirectory writes the directory rows in fixed-size batches keyed
// on reg_num. The first failed batch aborts the write; earlier batches
// stay committed, so callers must tolerate at-least-once semantics.
// It returns the number of rows written.
func (c *Client) UpsertDirectory(ctx context.Context, rows []DirectoryRow, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	written := 0
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := c.upsertRows(ctx, directoryTable, "reg_num", rows[start:end]); err != nil {
			return written, err
		}
		written = end
		c.logger.DebugContext(ctx, "upserted directory batch",
			slog.Int("written", written), slog.Int("total", len(rows)))
	}
	return written, nil
}
