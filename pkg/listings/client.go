// Package listings provides a client for the upstream comparable-listing
// service. Responses are kept as raw JSON maps because field names vary
// across providers and response versions; the comps normalizer owns the
// mapping to canonical records.
package listings

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/propsight/scout-cli/internal/retrieval"
)

// RawResponse is an upstream payload before normalization. The comparable
// array may appear under any of several known keys.
type RawResponse map[string]any

// Query identifies the subject property and pages the result set.
type Query struct {
	ID         string
	Address    string
	URL        string
	Limit      int
	Offset     int
	ExcludeIDs []string
}

// Client defines the comparable-listing operations.
type Client interface {
	// SaleComps fetches recently sold comparables for the subject.
	SaleComps(ctx context.Context, q Query) retrieval.Outcome[RawResponse]
	// RentalComps fetches rental comparables for the subject.
	RentalComps(ctx context.Context, q Query) retrieval.Outcome[RawResponse]
}

// Option configures the listings client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRetrievalClient swaps the underlying retrieval client.
func WithRetrievalClient(rc *retrieval.Client) Option {
	return func(c *httpClient) { c.retrieval = rc }
}

type httpClient struct {
	apiKey    string
	baseURL   string
	retrieval *retrieval.Client
}

// NewClient creates a listings client with the default retrieval policy.
func NewClient(apiKey, baseURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		retrieval: retrieval.NewClient(retrieval.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SaleComps(ctx context.Context, q Query) retrieval.Outcome[RawResponse] {
	return c.comps(ctx, "/v1/comps/sale", q)
}

func (c *httpClient) RentalComps(ctx context.Context, q Query) retrieval.Outcome[RawResponse] {
	return c.comps(ctx, "/v1/comps/rental", q)
}

func (c *httpClient) comps(ctx context.Context, path string, q Query) retrieval.Outcome[RawResponse] {
	params := url.Values{}
	switch {
	case q.ID != "":
		params.Set("zpid", q.ID)
	case q.Address != "":
		params.Set("address", q.Address)
	case q.URL != "":
		params.Set("url", q.URL)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if len(q.ExcludeIDs) > 0 {
		params.Set("exclude_ids", strings.Join(q.ExcludeIDs, ","))
	}

	headers := http.Header{}
	if c.apiKey != "" {
		headers.Set("Authorization", "Bearer "+c.apiKey)
	}

	return retrieval.GetJSON[RawResponse](ctx, c.retrieval, c.baseURL+path, params, headers)
}
