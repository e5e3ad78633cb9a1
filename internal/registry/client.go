// Package registry fetches the full salesperson register from the
// government open-data API, paginating with limit/offset until the
// reported total is reached. Any non-success HTTP status or an explicit
// failure flag in the response aborts the whole fetch; there is no
// retry, matching the sync pipeline's fail-fast contract.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	apperrors "ceapulse/internal/errors"
	"ceapulse/pkg/contracts/domain"
)

// Client pages through the remote registry feed.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRateLimit throttles page requests to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a registry client for baseURL, fetching pageSize
// records per request.
func NewClient(baseURL string, pageSize int, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse mirrors the datastore_search response envelope.
type apiResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []domain.RegistryRecord `json:"records"`
		Total   int                     `json:"total"`
		Limit   int                     `json:"limit"`
		Offset  int                     `json:"offset"`
	} `json:"result"`
}

// FetchAll retrieves every record of the registry feed. Pagination
// continues while the accumulated record count is below the reported
// total; the total comes from the first page.
func (c *Client) FetchAll(ctx context.Context) ([]domain.RegistryRecord, error) {
	var all []domain.RegistryRecord
	offset := 0
	total := -1

	c.logger.InfoContext(ctx, "fetching salesperson registry",
		slog.Int("page_size", c.pageSize))

	for total < 0 || offset < total {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewNetworkError("registry fetch cancelled", err)
		}

		page, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Result.Records...)
		total = page.Result.Total
		offset += c.pageSize

		c.logger.InfoContext(ctx, "registry page fetched",
			slog.Int("fetched", len(all)),
			slog.Int("total", total))
	}

	c.logger.InfoContext(ctx, "registry fetch complete", slog.Int("records", len(all)))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) (*apiResponse, error) {
	pageURL, err := c.pageURL(offset)
	if err != nil {
		return nil, apperrors.NewNetworkError("invalid registry URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to build registry request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("registry request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("registry request failed with status %d", resp.StatusCode), nil)
	}

	var page apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, apperrors.NewNetworkError("failed to decode registry response", err)
	}
	if !page.Success {
		return nil, apperrors.NewNetworkError("registry returned unsuccessful response", nil)
	}

	return &page, nil
}

func (c *Client) pageURL(offset int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
