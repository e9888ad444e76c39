// Package exchangerates implements the rate.Source collaborator against the
// exchangeratesapi.io historical endpoint: one GET per date, all known
// currencies in a single response.
package exchangerates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fxtools/exchange-rates/internal/rate"
)

const (
	defaultEndpoint = "https://api.exchangeratesapi.io"
	dateFormat      = "2006-01-02"
)

// Client fetches daily rate snapshots over HTTP.
type Client struct {
	client   *http.Client
	endpoint string
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		client:   http.DefaultClient,
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithClient sets the HTTP client.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithEndpoint overrides the default API endpoint.
func WithEndpoint(ep string) Option {
	return func(c *Client) { c.endpoint = ep }
}

// apiResponse is the provider's historical-rates payload. Error is set when
// the provider rejects the request (unknown base, date out of range, ...).
type apiResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
	Error string             `json:"error"`
}

// Fetch returns the snapshot for the given date and base currency. The
// returned snapshot carries the requested date: the provider answers
// non-trading days with the latest published rates.
func (c *Client) Fetch(ctx context.Context, date time.Time, base string) (*rate.Snapshot, error) {
	reqURL := fmt.Sprintf("%s/%s?base=%s", c.endpoint, date.Format(dateFormat), url.QueryEscape(base))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &rate.TransportError{Date: date, Base: base, Err: err}
	}

	res, err := c.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, &rate.TransportError{Date: date, Base: base, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &rate.TransportError{Date: date, Base: base, Err: err}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &rate.TransportError{
			Date: date, Base: base,
			Err: fmt.Errorf("parse response (HTTP %d): %w", res.StatusCode, err),
		}
	}

	if resp.Error != "" {
		return nil, &rate.SourceError{Date: date, Base: base, Message: resp.Error}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &rate.TransportError{
			Date: date, Base: base,
			Err: fmt.Errorf("provider returned HTTP %d", res.StatusCode),
		}
	}
	if len(resp.Rates) == 0 {
		return nil, &rate.SourceError{Date: date, Base: base, Message: "response contains no rates"}
	}

	respBase := resp.Base
	if respBase == "" {
		respBase = base
	}

	rates := make(map[string]float64, len(resp.Rates)+1)
	for k, v := range resp.Rates {
		rates[k] = v
	}
	// The base currency is its own unit rate; some responses omit it.
	if _, ok := rates[respBase]; !ok {
		rates[respBase] = 1.0
	}

	return &rate.Snapshot{Date: rate.Day(date), Base: respBase, Rates: rates}, nil
}
