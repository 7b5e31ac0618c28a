package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"stockdata/internal/models"
	"stockdata/internal/repository"
)

func init() {
	// The screener export carries ragged vendor rows; tolerate them and let
	// per-row validation decide what is malformed.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		return r
	})
}

// screenerRow maps the Nasdaq screener export columns. Unknown vendor
// columns are ignored by gocsv.
type screenerRow struct {
	Symbol    string `csv:"Symbol"`
	Name      string `csv:"Name"`
	LastSale  string `csv:"Last Sale"`
	MarketCap string `csv:"Market Cap"`
	Country   string `csv:"Country"`
	IPOYear   string `csv:"IPO Year"`
	Sector    string `csv:"Sector"`
	Industry  string `csv:"Industry"`
}

type TickerLoadService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Now    func() time.Time
}

type TickerLoadResult struct {
	Rows      int `json:"rows"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// LoadFile reads a screener export and inserts every symbol not already
// present. Existing symbols are silently skipped and never mutated;
// malformed rows are logged and skipped without aborting the run.
func (s *TickerLoadService) LoadFile(ctx context.Context, path string) (TickerLoadResult, error) {
	result := TickerLoadResult{}

	f, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	var rows []*screenerRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return result, fmt.Errorf("read export: %w", err)
	}
	result.Rows = len(rows)

	now := s.now()
	tickers := make([]models.Ticker, 0, len(rows))
	valid := make([]*screenerRow, 0, len(rows))
	for i, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			result.Malformed++
			s.Logger.Warn("skipping malformed screener row", zap.Int("row", i+1))
			continue
		}
		tickers = append(tickers, models.Ticker{
			Symbol:      symbol,
			CompanyName: strings.TrimSpace(row.Name),
			Sector:      strings.TrimSpace(row.Sector),
			Industry:    strings.TrimSpace(row.Industry),
			LastUpdated: now,
		})
		valid = append(valid, row)
	}

	inserted, err := s.Repo.InsertTickers(ctx, tickers)
	if err != nil {
		return result, fmt.Errorf("insert tickers: %w", err)
	}
	result.Inserted = int(inserted)
	result.Skipped = len(tickers) - result.Inserted

	for _, row := range valid {
		if err := s.upsertKeyData(ctx, row, now); err != nil {
			s.Logger.Warn("key data upsert failed",
				zap.String("symbol", row.Symbol),
				zap.Error(err),
			)
		}
	}

	s.Logger.Info("ticker load complete",
		zap.Int("rows", result.Rows),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("malformed", result.Malformed),
	)
	return result, nil
}

// upsertKeyData stashes the vendor-extra columns as a JSON attribute bag.
func (s *TickerLoadService) upsertKeyData(ctx context.Context, row *screenerRow, now time.Time) error {
	attrs := map[string]string{}
	if v := strings.TrimSpace(row.LastSale); v != "" {
		attrs["last_sale"] = v
	}
	if v := strings.TrimSpace(row.MarketCap); v != "" {
		attrs["market_cap"] = v
	}
	if v := strings.TrimSpace(row.Country); v != "" {
		attrs["country"] = v
	}
	if v := strings.TrimSpace(row.IPOYear); v != "" {
		attrs["ipo_year"] = v
	}
	if len(attrs) == 0 {
		return nil
	}

	raw, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	return s.Repo.UpsertKeyData(ctx, &models.KeyData{
		Symbol:      strings.ToUpper(strings.TrimSpace(row.Symbol)),
		CompanyName: strings.TrimSpace(row.Name),
		Sector:      strings.TrimSpace(row.Sector),
		Industry:    strings.TrimSpace(row.Industry),
		Attrs:       datatypes.JSON(raw),
		LastUpdated: now,
	})
}

func (s *TickerLoadService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
