package yahoo

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultHost = "https://query1.finance.yahoo.com"

type Client struct {
	host       string
	httpClient *http.Client
	maxRetries int
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string, maxRetries int) *Client {
	if host == "" {
		host = defaultHost
	}
	host = strings.TrimRight(host, "/")
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
		maxRetries: maxRetries,
	}
}

// GetDailyHistory fetches daily bars for symbol. A nil start requests the
// full available history; otherwise bars from start through now. An unknown
// symbol or an empty window yields zero bars without error only when the API
// says so via an empty result; API-level errors are returned as errors.
func (c *Client) GetDailyHistory(ctx context.Context, symbol string, start *time.Time) ([]Bar, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	query := url.Values{}
	query.Set("interval", "1d")
	query.Set("includeAdjustedClose", "true")
	if start == nil {
		query.Set("range", "max")
	} else {
		query.Set("period1", fmt.Sprintf("%d", start.Unix()))
		query.Set("period2", fmt.Sprintf("%d", time.Now().Unix()))
	}

	body, err := c.doRequest(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), symbol, query)
	if err != nil {
		return nil, err
	}
	return parseChart(body)
}

func (c *Client) doRequest(ctx context.Context, path, symbol string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		// Yahoo rejects requests without browser-like headers.
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko)")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set("Origin", "https://finance.yahoo.com")
		req.Header.Set("Referer", "https://finance.yahoo.com/quote/"+url.PathEscape(symbol))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = &APIError{Status: resp.StatusCode, Body: "rate limited"}
			continue
		}

		body, err := readBody(resp)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries, lastErr)
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func parseChart(body []byte) ([]Bar, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.Adjclose) > 0 {
		adj = result.Indicators.Adjclose[0].Adjclose
	}

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open := at(quote.Open, i)
		high := at(quote.High, i)
		low := at(quote.Low, i)
		closeP := at(quote.Close, i)
		if open == nil || high == nil || low == nil || closeP == nil {
			continue
		}

		bar := Bar{
			Date:  dateOf(ts),
			Open:  decimal.NewFromFloat(*open),
			High:  decimal.NewFromFloat(*high),
			Low:   decimal.NewFromFloat(*low),
			Close: decimal.NewFromFloat(*closeP),
		}
		if a := at(adj, i); a != nil {
			bar.AdjClose = decimal.NewFromFloat(*a)
		} else {
			bar.AdjClose = bar.Close
		}
		if v := atInt(quote.Volume, i); v != nil {
			bar.Volume = *v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func atInt(values []*int64, i int) *int64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// dateOf normalizes a bar timestamp to its UTC calendar date. The API
// reports the session open instant in exchange-local time.
func dateOf(ts int64) time.Time {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
