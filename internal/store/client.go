// Package store is a thin client for the hosted relational store,
// reached over its REST interface. The pipeline only needs generic
// operations: full reads, filtered reads with range pagination, exact
//-match deletes, batched inserts, keyed batched upserts, and one
// server-side aggregation procedure with a client-side fallback.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ceapulse/internal/config"
	apperrors "ceapulse/internal/errors"
)

// ErrProcedureNotFound reports that a server-side procedure is absent.
// Only this error class triggers the client-side aggregation fallback;
// arbitrary store errors never do.
var ErrProcedureNotFound = errors.New("store procedure not found")

// procedure-missing codes: PGRST202 is the REST layer's unknown-function
// code, 42883 is the database's undefined-function code.
var procedureNotFoundCodes = map[string]bool{
	"PGRST202": true,
	"42883":    true,
}

// Client talks to the store's REST interface.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a store client from configuration. Missing
// credentials are a configuration failure, reported before any work
// begins and distinct from authentication failures.
func NewClient(cfg config.StoreConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, apperrors.NewConfigError("missing store credentials", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "store")),
	}, nil
}

// storeError is the REST interface's error body.
type storeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (c *Client) tableURL(table string, query url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doJSON issues one request with auth headers and decodes a JSON
// response into dest when dest is non-nil. It returns the response
// headers for callers that need the count from Content-Range.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, headers map[string]string, body, dest interface{}) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to encode store request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to build store request", err)
	}

	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewStorageError("store request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyError(resp)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, apperrors.NewStorageError("failed to decode store response", err)
		}
	}

	return resp.Header, nil
}

func (c *Client) classifyError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body storeError
	if err := json.Unmarshal(raw, &body); err == nil && body.Code != "" {
		if procedureNotFoundCodes[body.Code] {
			return fmt.Errorf("%w: %s", ErrProcedureNotFound, body.Message)
		}
		return apperrors.NewStorageError(
			fmt.Sprintf("store request failed (status %d, code %s)", resp.StatusCode, body.Code),
			errors.New(body.Message))
	}

	return apperrors.NewStorageError(
		fmt.Sprintf("store request failed (status %d)", resp.StatusCode),
		errors.New(strings.TrimSpace(string(raw))))
}

// selectRows reads rows from table with the given filter query,
// requesting the half-open row range [from, to]. A negative to reads to
// the end. The exact total (from Content-Range) is returned when the
// store was asked to count.
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, from, to int, exactCount bool, dest interface{}) (int, error) {
	headers := map[string]string{}
	if from > 0 || to >= 0 {
		rangeValue := strconv.Itoa(from) + "-"
		if to >= 0 {
			rangeValue += strconv.Itoa(to)
		}
		headers["Range"] = rangeValue
		headers["Range-Unit"] = "items"
	}
	if exactCount {
		headers["Prefer"] = "count=exact"
	}

	respHeaders, err := c.doJSON(ctx, http.MethodGet, c.tableURL(table, query), headers, nil, dest)
	if err != nil {
		return 0, err
	}

	if exactCount {
		return parseContentRangeTotal(respHeaders.Get("Content-Range")), nil
	}
	return 0, nil
}

// insertRows bulk-inserts rows into table.
func (c *Client) insertRows(ctx context.Context, table string, rows interface{}) error {
	headers := map[string]string{"Prefer": "return=minimal"}
	_, err := c.doJSON(ctx, http.MethodPost, c.tableURL(table, nil), headers, rows, nil)
	return err
}

// upsertRows bulk-upserts rows into table keyed by onConflict.
func (c *Client) upsertRows(ctx context.Context, table, onConflict string, rows interface{}) error {
	query := url.Values{}
	if onConflict != "" {
		query.Set("on_conflict", onConflict)
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	_, err := c.doJSON(ctx, http.MethodPost, c.tableURL(table, query), headers, rows, nil)
	return err
}

// deleteRows deletes rows from table matching the filter query.
func (c *Client) deleteRows(ctx context.Context, table string, query url.Values) error {
	_, err := c.doJSON(ctx, http.MethodDelete, c.tableURL(table, query), nil, nil, nil)
	return err
}

// rpc invokes a server-side procedure with args, decoding into dest.
func (c *Client) rpc(ctx context.Context, procedure string, args, dest interface{}) error {
	u := c.baseURL + "/rest/v1/rpc/" + procedure
	_, err := c.doJSON(ctx, http.MethodPost, u, nil, args, dest)
	return err
}

// parseContentRangeTotal extracts the total from "0-24/3573" style
// Content-Range values. Unknown totals come back as -1 from the store
// ("*/"); those and malformed values report zero.
func parseContentRangeTotal(value string) int {
	idx := strings.LastIndex(value, "/")
	if idx < 0 {
		return 0
	}
	total, err := strconv.Atoi(value[idx+1:])
	if err != nil || total < 0 {
		return 0
	}
	return total
}
