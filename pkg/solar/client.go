// Package solar provides a client for the solar installations API.
package solar

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
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the local development API server.
const DefaultBaseURL = "http://localhost:8000"

// Client defines the solar API read operations.
type Client interface {
	// SolarStats returns per-state capacity summaries.
	SolarStats(ctx context.Context) ([]StateSummary, error)
	// States returns basic information for every state with installations.
	States(ctx context.Context) (*StatesResponse, error)
	// State returns statistics and installations for one state.
	State(ctx context.Context, code string) (*StateDetail, error)
	// Breakdown returns the yearly progression and technology mix of one state.
	Breakdown(ctx context.Context, code string) (*StateBreakdown, error)
	// Installations lists installations matching the query.
	Installations(ctx context.Context, q InstallationQuery) ([]Installation, error)
	// Stats returns nationwide statistics.
	Stats(ctx context.Context) (*NationwideStats, error)
}

// APIError is returned when the server reports a failure, either through a
// non-2xx status or an {"error": "..."} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("solar: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("solar: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the solar client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles outgoing requests to rps requests per second.
// A non-positive value disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new solar API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SolarStats(ctx context.Context) ([]StateSummary, error) {
	var out []StateSummary
	if err := c.get(ctx, "/api/solar/stats/", nil, &out); err != nil {
		return nil, eris.Wrap(err, "solar: solar stats")
	}
	return out, nil
}

func (c *httpClient) States(ctx context.Context) (*StatesResponse, error) {
	var out StatesResponse
	if err := c.get(ctx, "/api/states", nil, &out); err != nil {
		return nil, eris.Wrap(err, "solar: states")
	}
	return &out, nil
}

func (c *httpClient) State(ctx context.Context, code string) (*StateDetail, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, eris.New("solar: state code is required")
	}

	var out StateDetail
	if err := c.get(ctx, "/api/state/"+url.PathEscape(code), nil, &out); err != nil {
		return nil, eris.Wrapf(err, "solar: state %s", code)
	}
	return &out, nil
}

func (c *httpClient) Breakdown(ctx context.Context, code string) (*StateBreakdown, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, eris.New("solar: state code is required")
	}

	var out StateBreakdown
	if err := c.get(ctx, "/api/state/"+url.PathEscape(code)+"/breakdown", nil, &out); err != nil {
		return nil, eris.Wrapf(err, "solar: breakdown %s", code)
	}
	return &out, nil
}

func (c *httpClient) Installations(ctx context.Context, q InstallationQuery) ([]Installation, error) {
	var out []Installation
	if err := c.get(ctx, "/installations", q.values(), &out); err != nil {
		return nil, eris.Wrap(err, "solar: installations")
	}
	return out, nil
}

func (c *httpClient) Stats(ctx context.Context) (*NationwideStats, error) {
	var out NationwideStats
	if err := c.get(ctx, "/stats", nil, &out); err != nil {
		return nil, eris.Wrap(err, "solar: stats")
	}
	return &out, nil
}

// get issues a single GET and decodes the JSON body into out.
func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter wait")
		}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			apiErr.Message = eb.Error
		}
		return apiErr
	}

	// The state endpoint historically reported "not found" as a 200 with an error body.
	if len(body) > 0 && body[0] == '{' {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: eb.Error}
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

// values encodes the non-zero query fields.
func (q InstallationQuery) values() url.Values {
	v := url.Values{}
	if q.State != "" {
		v.Set("state", strings.ToUpper(q.State))
	}
	if q.Year != 0 {
		v.Set("year", strconv.Itoa(q.Year))
	}
	if q.MinCapacity > 0 {
		v.Set("min_capacity", strconv.FormatFloat(q.MinCapacity, 'f', -1, 64))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}
