package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ceapulse/pkg/contracts/domain"
)

// LoadDirectory parses the salesperson registration-information CSV into
// a registration-number-keyed directory in one pass. Duplicate
// registration numbers keep the last row seen (overwrite, not merge);
// rows without a registration number are skipped. Missing optional
// fields default to the "-" sentinel so every entry carries the full
// field set.
func LoadDirectory(ctx context.Context, logger *slog.Logger, src io.Reader) (map[string]domain.SalespersonInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	directory := make(map[string]domain.SalespersonInfo)
	reader := NewReader(src, domain.MinInfoColumns)

	for {
		fields, more := reader.Next()
		if !more {
			break
		}

		regNum := fields[1]
		if regNum == "" {
			continue
		}

		info := domain.SalespersonInfo{
			Name:                  fields[0],
			RegNum:                regNum,
			RegistrationStartDate: fields[2],
			RegistrationEndDate:   fields[3],
			EstateAgentName:       fields[4],
			EstateAgentLicenseNo:  fields[5],
		}
		if info.Name == "" {
			info.Name = "Unknown"
		}
		for _, field := range []*string{
			&info.RegistrationStartDate, &info.RegistrationEndDate,
			&info.EstateAgentName, &info.EstateAgentLicenseNo,
		} {
			if *field == "" {
				*field = domain.MissingValue
			}
		}

		directory[regNum] = info
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read salesperson information: %w", err)
	}

	logger.InfoContext(ctx, "salesperson directory loaded",
		slog.Int("entries", len(directory)),
		slog.Int("skipped_rows", reader.Skipped()))

	return directory, nil
}
