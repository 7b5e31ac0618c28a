package yahoo

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "AAPL"},
      "timestamp": [1704290400, 1704376800, 1704463200],
      "indicators": {
        "quote": [{
          "open":   [184.22, 182.15, null],
          "high":   [185.88, 183.09, 182.76],
          "low":    [183.43, 180.88, 180.17],
          "close":  [184.25, 181.91, 181.18],
          "volume": [58414500, 71983600, 62303300]
        }],
        "adjclose": [{
          "adjclose": [183.63, 181.30, 180.57]
        }]
      }
    }],
    "error": null
  }
}`

func TestGetDailyHistoryParsesBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("interval") != "1d" || q.Get("range") != "max" {
			t.Errorf("unexpected query: %v", q)
		}
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 1)
	bars, err := client.GetDailyHistory(context.Background(), "AAPL", nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// The third row carries a null open and must be dropped.
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	first := bars[0]
	if got := first.Date.Format("2006-01-02"); got != "2024-01-03" {
		t.Fatalf("first date = %s, want 2024-01-03", got)
	}
	if first.Date.Hour() != 0 || first.Date.Location() != time.UTC {
		t.Fatalf("date not normalized to UTC midnight: %v", first.Date)
	}
	if !first.Close.Equal(mustDecimal(t, "184.25")) {
		t.Fatalf("close = %s", first.Close)
	}
	if !first.AdjClose.Equal(mustDecimal(t, "183.63")) {
		t.Fatalf("adjclose = %s", first.AdjClose)
	}
	if first.Volume != 58414500 {
		t.Fatalf("volume = %d", first.Volume)
	}
}

func TestGetDailyHistoryRangedRequest(t *testing.T) {
	start := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("range") != "" {
			t.Errorf("range should be unset for bounded requests")
		}
		if q.Get("period1") != fmt.Sprintf("%d", start.Unix()) {
			t.Errorf("period1 = %s", q.Get("period1"))
		}
		if q.Get("period2") == "" {
			t.Errorf("period2 missing")
		}
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 1)
	if _, err := client.GetDailyHistory(context.Background(), "AAPL", &start); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestGetDailyHistoryGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("missing gzip accept-encoding")
		}
		if r.Header.Get("User-Agent") == "" || r.Header.Get("Referer") == "" {
			t.Errorf("missing browser headers")
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, chartFixture)
		gz.Close()
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 1)
	bars, err := client.GetDailyHistory(context.Background(), "AAPL", nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
}

func TestGetDailyHistoryChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 1)
	if _, err := client.GetDailyHistory(context.Background(), "NOPE", nil); err == nil {
		t.Fatalf("expected chart error")
	}
}

func TestGetDailyHistoryEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 1)
	bars, err := client.GetDailyHistory(context.Background(), "THIN", nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(bars) != 0 {
		t.Fatalf("bars = %d, want 0", len(bars))
	}
}

func TestGetDailyHistoryRetriesRateLimit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 3)
	bars, err := client.GetDailyHistory(context.Background(), "AAPL", nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 2", hits)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
}

func TestGetDailyHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, 1)
	_, err := client.GetDailyHistory(context.Background(), "AAPL", nil)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", apiErr.Status)
	}
}

func TestGetDailyHistoryEmptySymbol(t *testing.T) {
	client := NewClient(http.DefaultClient, "", 1)
	if _, err := client.GetDailyHistory(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for blank symbol")
	}
}
