package store

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"ceapulse/pkg/contracts/domain"
)

const leaderboardProcedure = "get_leaderboard"

type leaderboardArgs struct {
	StartMonth string `json:"start_month"`
	EndMonth   string `json:"end_month"`
	RowLimit   int    `json:"row_limit"`
}

// Leaderboard ranks salespersons by transaction count over the
// inclusive month range [start, end] ("YYYY-MM"), highest first,
// truncated to limit rows. The server-side procedure does the
// aggregation; when the deployment lacks the procedure the client
// aggregates the monthly rows itself. Any other store failure
// propagates unchanged.
func (c *Client) Leaderboard(ctx context.Context, start, end string, limit int) ([]domain.SalespersonTotal, error) {
	if limit <= 0 {
		limit = 100
	}

	var totals []domain.SalespersonTotal
	err := c.rpc(ctx, leaderboardProcedure, leaderboardArgs{
		StartMonth: start,
		EndMonth:   end,
		RowLimit:   limit,
	}, &totals)
	if err == nil {
		return totals, nil
	}
	if !errors.Is(err, ErrProcedureNotFound) {
		return nil, err
	}

	c.logger.WarnContext(ctx, "leaderboard procedure missing, aggregating client-side")
	return c.leaderboardFallback(ctx, start, end, limit)
}

func (c *Client) leaderboardFallback(ctx context.Context, start, end string, limit int) ([]domain.SalespersonTotal, error) {
	query := url.Values{}
	query.Set("select", "reg_num,name,month_year,count")
	query.Add("month_year", "gte."+start)
	query.Add("month_year", "lte."+end)

	var rows []monthlyRow
	if _, err := c.selectRows(ctx, salespersonMonthlyTable, query, 0, -1, false, &rows); err != nil {
		return nil, err
	}

	totals := map[string]*domain.SalespersonTotal{}
	order := []string{}
	for _, row := range rows {
		entry, ok := totals[row.RegNum]
		if !ok {
			entry = &domain.SalespersonTotal{Name: row.Name, RegNum: row.RegNum}
			totals[row.RegNum] = entry
			order = append(order, row.RegNum)
		}
		entry.Transactions += row.Count
	}

	ranked := make([]domain.SalespersonTotal, 0, len(order))
	for _, regNum := range order {
		if totals[regNum].Transactions > 0 {
			ranked = append(ranked, *totals[regNum])
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Transactions > ranked[j].Transactions
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
