package exchangerates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fxtools/exchange-rates/internal/rate"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := New(WithClient(ts.Client()), WithEndpoint(ts.URL))
	return ts, c
}

func TestFetch(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2024-01-02" {
			t.Errorf("path = %s, want /2024-01-02", r.URL.Path)
		}
		if got := r.URL.Query().Get("base"); got != "USD" {
			t.Errorf("base = %s, want USD", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"base":  "USD",
			"date":  "2024-01-02",
			"rates": map[string]float64{"EUR": 0.92, "CAD": 1.35},
		})
	})

	snap, err := c.Fetch(context.Background(), date, "USD")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !snap.Date.Equal(date) {
		t.Errorf("date = %s, want requested date", snap.Date)
	}
	if snap.Base != "USD" {
		t.Errorf("base = %s, want USD", snap.Base)
	}
	if snap.Rates["EUR"] != 0.92 {
		t.Errorf("EUR = %f, want 0.92", snap.Rates["EUR"])
	}
	// The provider omitted the base; it must be synthesized at 1.0.
	if snap.Rates["USD"] != 1.0 {
		t.Errorf("USD = %f, want synthesized 1.0", snap.Rates["USD"])
	}
}

func TestFetch_ErrorPayload(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Base 'XYZ' is not supported."})
	})

	_, err := c.Fetch(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "XYZ")
	var srcErr *rate.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error = %v, want *rate.SourceError", err)
	}
	if srcErr.Message != "Base 'XYZ' is not supported." {
		t.Errorf("message = %q, want the provider's message", srcErr.Message)
	}
}

func TestFetch_TransportError(t *testing.T) {
	ts, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	ts.Close() // force a connection failure

	_, err := c.Fetch(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "USD")
	var trErr *rate.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("error = %v, want *rate.TransportError", err)
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := c.Fetch(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "USD")
	var trErr *rate.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("error = %v, want *rate.TransportError", err)
	}
}

func TestFetch_EmptyRates(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"base": "USD", "rates": map[string]float64{}})
	})

	_, err := c.Fetch(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "USD")
	var srcErr *rate.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error = %v, want *rate.SourceError", err)
	}
}
