package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"ceapulse/pkg/contracts/domain"
)

const movementsTable = "salesperson_movements"

// movementRow is the insert shape: the store assigns id and detected_at.
type movementRow struct {
	RegNum                  string  `json:"reg_num"`
	SalespersonName         string  `json:"salesperson_name"`
	OldEstateAgentName      *string `json:"old_estate_agent_name"`
	NewEstateAgentName      *string `json:"new_estate_agent_name"`
	OldEstateAgentLicenseNo *string `json:"old_estate_agent_license_no"`
	NewEstateAgentLicenseNo *string `json:"new_estate_agent_license_no"`
}

// InsertMovements appends detected movements in fixed-size batches.
// Movements are append-only history; they are never updated in place.
func (c *Client) InsertMovements(ctx context.Context, movements []domain.Movement, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	for start := 0; start < len(movements); start += batchSize {
		end := start + batchSize
		if end > len(movements) {
			end = len(movements)
		}
		rows := make([]movementRow, 0, end-start)
		for _, m := range movements[start:end] {
			rows = append(rows, movementRow{
				RegNum:                  m.RegNum,
				SalespersonName:         m.SalespersonName,
				OldEstateAgentName:      m.OldEstateAgentName,
				NewEstateAgentName:      m.NewEstateAgentName,
				OldEstateAgentLicenseNo: m.OldEstateAgentLicNo,
				NewEstateAgentLicenseNo: m.NewEstateAgentLicNo,
			})
		}
		if err := c.insertRows(ctx, movementsTable, rows); err != nil {
			return err
		}
	}

	c.logger.InfoContext(ctx, "persisted movements", slog.Int("count", len(movements)))
	return nil
}

// MovementPage is one page of movement history, newest first.
type MovementPage struct {
	Movements []domain.Movement `json:"movements"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
	HasMore   bool              `json:"has_more"`
}

// ListMovements reads one page of movement history ordered by detection
// time descending. A non-empty search term matches salesperson name,
// registration number, or either agency name, case-insensitively.
func (c *Client) ListMovements(ctx context.Context, search string, page, pageSize int) (*MovementPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 25
	}

	query := url.Values{}
	query.Set("select", "id,reg_num,salesperson_name,old_estate_agent_name,new_estate_agent_name,old_estate_agent_license_no,new_estate_agent_license_no,detected_at")
	query.Set("order", "detected_at.desc,id.desc")
	if search != "" {
		pattern := "*" + search + "*"
		query.Set("or", fmt.Sprintf("(salesperson_name.ilike.%s,reg_num.ilike.%s,old_estate_agent_name.ilike.%s,new_estate_agent_name.ilike.%s)",
			pattern, pattern, pattern, pattern))
	}

	from := (page - 1) * pageSize
	to := from + pageSize - 1

	var movements []domain.Movement
	total, err := c.selectRows(ctx, movementsTable, query, from, to, true, &movements)
	if err != nil {
		return nil, err
	}

	return &MovementPage{
		Movements: movements,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		HasMore:   page*pageSize < total,
	}, nil
}
