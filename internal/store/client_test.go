package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ceapulse/internal/config"
	"ceapulse/internal/dataprocessing"
	apperrors "ceapulse/internal/errors"
	"ceapulse/pkg/contracts/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.StoreConfig{
		URL:        server.URL,
		ServiceKey: "test-key",
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return client, server
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(config.StoreConfig{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestClient_AuthHeaders(t *testing.T) {
	var gotAPIKey, gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))

	_, err := client.LoadDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestLoadDirectory_NullsBecomeMissing(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/salesperson_info", r.URL.Path)
		w.Write([]byte(`[
			{"reg_num":"R123","name":"Tan Ah Kow","estate_agent_name":"Acme Realty","estate_agent_license_no":"L001"},
			{"reg_num":"R456","name":"Lim Bee Hoon","estate_agent_name":null,"estate_agent_license_no":null}
		]`))
	}))

	infos, err := client.LoadDirectory(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "Acme Realty", infos[0].EstateAgentName)
	assert.Equal(t, domain.MissingValue, infos[1].EstateAgentName)
	assert.Equal(t, domain.MissingValue, infos[1].EstateAgentLicenseNo)
}

func TestUpsertDirectory_Batching(t *testing.T) {
	var batches [][]DirectoryRow
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "reg_num", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "merge-duplicates")

		var batch []DirectoryRow
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		batches = append(batches, batch)
		w.WriteHeader(http.StatusCreated)
	}))

	rows := make([]DirectoryRow, 5)
	for i := range rows {
		rows[i].RegNum = string(rune('A' + i))
	}

	written, err := client.UpsertDirectory(context.Background(), rows, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, written)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestUpsertDirectory_FirstFailureAborts(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":"XX000","message":"out of disk"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rows := make([]DirectoryRow, 4)
	written, err := client.UpsertDirectory(context.Background(), rows, 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Equal(t, 2, written)
	assert.Equal(t, 2, calls)
}

func TestInsertMovements_NullAgencyFields(t *testing.T) {
	var payload []map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/salesperson_movements", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
	}))

	agency := "XYZ Realty"
	err := client.InsertMovements(context.Background(), []domain.Movement{{
		RegNum:             "R123",
		SalespersonName:    "Tan Ah Kow",
		NewEstateAgentName: &agency,
	}}, 1000)
	require.NoError(t, err)
	require.Len(t, payload, 1)
	assert.Equal(t, "XYZ Realty", payload[0]["new_estate_agent_name"])
	assert.Nil(t, payload[0]["old_estate_agent_name"])
}

func TestListMovements_PaginationAndSearch(t *testing.T) {
	var gotRange, gotOrder, gotOr string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		gotOrder = r.URL.Query().Get("order")
		gotOr = r.URL.Query().Get("or")
		w.Header().Set("Content-Range", "25-49/3573")
		w.Write([]byte(`[{"id":1,"reg_num":"R123","salesperson_name":"Tan Ah Kow"}]`))
	}))

	page, err := client.ListMovements(context.Background(), "Tan", 2, 25)
	require.NoError(t, err)
	assert.Equal(t, "25-49", gotRange)
	assert.Equal(t, "detected_at.desc,id.desc", gotOrder)
	assert.Contains(t, gotOr, "salesperson_name.ilike.*Tan*")
	assert.Equal(t, 3573, page.Total)
	require.Len(t, page.Movements, 1)
	assert.Equal(t, "R123", page.Movements[0].RegNum)
}

func TestLeaderboard_UsesProcedure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/rpc/get_leaderboard", r.URL.Path)

		var args leaderboardArgs
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "2024-01", args.StartMonth)
		assert.Equal(t, "2024-06", args.EndMonth)
		assert.Equal(t, 100, args.RowLimit)

		w.Write([]byte(`[{"name":"Tan Ah Kow","reg_num":"R123","transactions":42}]`))
	}))

	totals, err := client.Leaderboard(context.Background(), "2024-01", "2024-06", 0)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 42, totals[0].Transactions)
}

func TestLeaderboard_FallbackOnMissingProcedure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/v1/rpc/get_leaderboard" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"PGRST202","message":"function get_leaderboard not found"}`))
			return
		}

		require.Equal(t, "/rest/v1/salesperson_monthly", r.URL.Path)
		months := r.URL.Query()["month_year"]
		assert.Contains(t, months, "gte.2024-01")
		assert.Contains(t, months, "lte.2024-06")
		w.Write([]byte(`[
			{"reg_num":"R1","name":"Tan Ah Kow","month_year":"2024-01","count":3},
			{"reg_num":"R2","name":"Lim Bee Hoon","month_year":"2024-02","count":5},
			{"reg_num":"R1","name":"Tan Ah Kow","month_year":"2024-03","count":4}
		]`))
	}))

	totals, err := client.Leaderboard(context.Background(), "2024-01", "2024-06", 10)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "R1", totals[0].RegNum)
	assert.Equal(t, 7, totals[0].Transactions)
	assert.Equal(t, "R2", totals[1].RegNum)
	assert.Equal(t, 5, totals[1].Transactions)
}

func TestLeaderboard_OtherErrorsDoNotFallBack(t *testing.T) {
	monthlyQueried := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/v1/rpc/get_leaderboard" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":"XX000","message":"internal error"}`))
			return
		}
		monthlyQueried = true
	}))

	_, err := client.Leaderboard(context.Background(), "2024-01", "2024-06", 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.False(t, monthlyQueried)
}

func TestUploadAggregates_WritesAllTables(t *testing.T) {
	type call struct {
		method string
		path   string
		query  url.Values
		body   string
	}
	var calls []call
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, r.URL.Query(), string(body)})
		w.WriteHeader(http.StatusCreated)
	}))

	agg := &dataprocessing.AggregationResult{
		TransactionsByYear: domain.YearlyCounts{"2024": 3},
		SalespersonsByYear: domain.YearlyCounts{"2024": 2},
		SalespersonMonthly: []domain.SalespersonMonthly{
			{Name: "Tan Ah Kow", RegNum: "R1", Monthly: map[string]int{"2024-01": 3}, Total: 3},
		},
		TransactionTypeByYear: domain.TypeBreakdownByYear{"2024": {"WHOLE RENTAL": 3}},
		PropertyTypeByYear:    domain.TypeBreakdownByYear{"2024": {"HDB": 3}},
		SalespersonRecords: map[string][]domain.TransactionRecord{
			"R1": {{Name: "Tan Ah Kow", RegNum: "R1"}},
		},
		Metadata: domain.Metadata{
			LastSync:           "2024-06-01T00:00:00Z",
			TotalRecords:       3,
			UniqueSalespersons: 2,
		},
	}
	err := client.UploadAggregates(context.Background(), agg, 1000)
	require.NoError(t, err)

	paths := make([]string, 0, len(calls))
	for _, c := range calls {
		paths = append(paths, c.path)
	}
	assert.Contains(t, paths, "/rest/v1/metadata")
	assert.Contains(t, paths, "/rest/v1/transactions_by_year")
	assert.Contains(t, paths, "/rest/v1/salespersons_by_year")
	assert.Contains(t, paths, "/rest/v1/transaction_type_by_year")
	assert.Contains(t, paths, "/rest/v1/property_type_by_year")
	assert.Contains(t, paths, "/rest/v1/salesperson_monthly")
	assert.Contains(t, paths, "/rest/v1/salesperson_records")

	// metadata row is upserted with the fixed id 1
	assert.Contains(t, calls[0].body, `"id":1`)
	assert.Equal(t, "id", calls[0].query.Get("on_conflict"))

	// records table is cleared before re-insert
	var sawDelete bool
	for i, c := range calls {
		if c.path == "/rest/v1/salesperson_records" && c.method == http.MethodDelete {
			sawDelete = true
			for j := i + 1; j < len(calls); j++ {
				if calls[j].path == "/rest/v1/salesperson_records" {
					assert.Equal(t, http.MethodPost, calls[j].method)
				}
			}
		}
	}
	assert.True(t, sawDelete, "expected delete before record insert")
}
