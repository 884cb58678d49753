// Package socrata provides a client for Socrata open-data (SODA) resource
// endpoints.
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the SODA resource operations.
type Client interface {
	// Count returns the number of rows matching the SoQL where clause.
	Count(ctx context.Context, where string) (int, error)
	// Rows fetches one page of rows for the query.
	Rows(ctx context.Context, q Query) ([]map[string]string, error)
}

// Query is one SoQL page request.
type Query struct {
	Select []string
	Where  string
	Order  string
	Limit  int
	Offset int
}

// Option configures the Socrata client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithAppToken sets an application token, lifting the anonymous rate limit.
func WithAppToken(token string) Option {
	return func(c *httpClient) {
		c.appToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL  string
	dataset  string
	appToken string
	http     *http.Client
}

// NewClient creates a client for one dataset. Retries are the caller's
// concern; this layer does a single request per call.
func NewClient(dataset string, opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.datos.gov.co",
		dataset: dataset,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Count runs a count(*) aggregation with the where clause.
func (c *httpClient) Count(ctx context.Context, where string) (int, error) {
	params := url.Values{}
	params.Set("$select", "count(*) as total")
	if where != "" {
		params.Set("$where", where)
	}

	rows, err := c.get(ctx, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, eris.New("socrata: empty count response")
	}

	total, err := strconv.Atoi(rows[0]["total"])
	if err != nil {
		return 0, eris.Wrapf(err, "socrata: parse count %q", rows[0]["total"])
	}
	return total, nil
}

// Rows fetches one page for the query.
func (c *httpClient) Rows(ctx context.Context, q Query) ([]map[string]string, error) {
	params := url.Values{}
	if len(q.Select) > 0 {
		params.Set("$select", strings.Join(q.Select, ","))
	}
	if q.Where != "" {
		params.Set("$where", q.Where)
	}
	if q.Order != "" {
		params.Set("$order", q.Order)
	}
	if q.Limit > 0 {
		params.Set("$limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("$offset", strconv.Itoa(q.Offset))
	}

	return c.get(ctx, params)
}

func (c *httpClient) get(ctx context.Context, params url.Values) ([]map[string]string, error) {
	endpoint := fmt.Sprintf("%s/resource/%s.json?%s", c.baseURL, c.dataset, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "socrata: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "socrata: request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, eris.Wrap(err, "socrata: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("socrata: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "socrata: decode response")
	}

	rows := make([]map[string]string, 0, len(raw))
	for _, r := range raw {
		row := make(map[string]string, len(r))
		for k, v := range r {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// stringify flattens a SODA JSON value. URL columns arrive as objects with
// a "url" member.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		if u, ok := t["url"].(string); ok {
			return u
		}
		b, _ := json.Marshal(t)
		return string(b)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
