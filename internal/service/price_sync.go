package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stockdata/internal/client/yahoo"
	"stockdata/internal/models"
	"stockdata/internal/repository"
)

const priceSyncScope = "prices"

// Decision is the operator's answer at a chunk boundary.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionSkip
	DecisionAbort
)

// Outcome is the terminal state of one ticker within a sync run.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "skipped-duplicate"
	OutcomeEmpty     Outcome = "skipped-empty"
	OutcomeUpToDate  Outcome = "up-to-date"
	OutcomeFailed    Outcome = "failed"
)

// HistoryFetcher is the slice of the price-data client the sync needs.
type HistoryFetcher interface {
	GetDailyHistory(ctx context.Context, symbol string, start *time.Time) ([]yahoo.Bar, error)
}

type PriceSyncService struct {
	Repo   repository.Repository
	Quotes HistoryFetcher
	Logger *zap.Logger
	Now    func() time.Time
}

type SyncOptions struct {
	// Symbols restricts the universe; empty processes every stored ticker.
	Symbols   []string
	ChunkSize int
	DryRun    bool
	// Resume continues from the chunk cursor persisted by a previous run.
	Resume bool
	// Pause is the delay between tickers, to stay polite to the price API.
	Pause time.Duration
	// Confirm gates each chunk after the first; nil continues unattended.
	Confirm func(next, total int) Decision
}

type TickerResult struct {
	Symbol     string  `json:"symbol"`
	Outcome    Outcome `json:"outcome"`
	RowsAdded  int     `json:"rows_added"`
	Duplicates int     `json:"duplicates"`
	Error      string  `json:"error,omitempty"`
}

type SyncResult struct {
	Tickers       int            `json:"tickers"`
	Chunks        int            `json:"chunks"`
	ChunksSkipped int            `json:"chunks_skipped"`
	Processed     int            `json:"processed"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	Empty         int            `json:"empty"`
	UpToDate      int            `json:"up_to_date"`
	RowsAdded     int            `json:"rows_added"`
	WouldAdd      int            `json:"would_add,omitempty"`
	DryRun        bool           `json:"dry_run"`
	Aborted       bool           `json:"aborted"`
	Missing       []string       `json:"missing,omitempty"`
	Results       []TickerResult `json:"-"`
}

// Sync incrementally loads daily bars for the selected universe. Per-ticker
// failures never abort the run; only systemic errors (store unreachable,
// context canceled) do.
func (s *PriceSyncService) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	result := SyncResult{DryRun: opts.DryRun}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 50
	}

	symbols := normalizeSymbols(opts.Symbols)
	tickers, err := s.Repo.ListTickers(ctx, repository.ListTickersParams{Symbols: symbols})
	if err != nil {
		return result, fmt.Errorf("list tickers: %w", err)
	}
	if len(symbols) > 0 {
		result.Missing = missingSymbols(symbols, tickers)
		for _, sym := range result.Missing {
			s.Logger.Warn("requested symbol not in store", zap.String("symbol", sym))
		}
	}
	result.Tickers = len(tickers)
	if len(tickers) == 0 {
		s.Logger.Info("no tickers to sync")
		return result, nil
	}

	chunks := partitionTickers(tickers, chunkSize)
	result.Chunks = len(chunks)

	startChunk := 0
	if opts.Resume {
		startChunk = s.resumeCursor(ctx, len(chunks))
	}

	s.Logger.Info("price sync starting",
		zap.Int("tickers", len(tickers)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", chunkSize),
		zap.Int("start_chunk", startChunk),
		zap.Bool("dry_run", opts.DryRun),
	)

	for ci := startChunk; ci < len(chunks); ci++ {
		if ci > startChunk && opts.Confirm != nil {
			switch opts.Confirm(ci+1, len(chunks)) {
			case DecisionAbort:
				s.Logger.Info("sync aborted at chunk boundary", zap.Int("chunk", ci+1))
				result.Aborted = true
				s.logSummary(result)
				return result, nil
			case DecisionSkip:
				s.Logger.Info("skipping chunk", zap.Int("chunk", ci+1))
				result.ChunksSkipped++
				continue
			}
		}

		chunk := chunks[ci]
		s.Logger.Info("processing chunk",
			zap.Int("chunk", ci+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("tickers", len(chunk)),
		)

		var lastErr string
		for i, tk := range chunk {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}

			tr := s.syncTicker(ctx, tk, opts.DryRun)
			result.Results = append(result.Results, tr)
			result.Processed++
			switch tr.Outcome {
			case OutcomeFailed:
				result.Failed++
				lastErr = tr.Symbol + ": " + tr.Error
			case OutcomeEmpty:
				result.Empty++
				result.Succeeded++
			case OutcomeUpToDate:
				result.UpToDate++
				result.Succeeded++
			default:
				result.Succeeded++
				if opts.DryRun {
					result.WouldAdd += tr.RowsAdded
				} else {
					result.RowsAdded += tr.RowsAdded
				}
			}

			if opts.Pause > 0 && i < len(chunk)-1 {
				select {
				case <-time.After(opts.Pause):
				case <-ctx.Done():
					return result, ctx.Err()
				}
			}
		}

		if !opts.DryRun {
			s.checkpoint(ctx, ci+1, result, lastErr)
		}
	}

	s.logSummary(result)
	return result, nil
}

// syncTicker runs one ticker through the pending → fetched → validated →
// terminal-state pipeline. All errors are captured in the result.
func (s *PriceSyncService) syncTicker(ctx context.Context, tk models.Ticker, dryRun bool) TickerResult {
	tr := TickerResult{Symbol: tk.Symbol}

	last, err := s.Repo.LatestPriceDate(ctx, tk.ID)
	if err != nil {
		tr.Outcome = OutcomeFailed
		tr.Error = err.Error()
		s.Logger.Error("latest date lookup failed", zap.String("symbol", tk.Symbol), zap.Error(err))
		return tr
	}

	var start *time.Time
	if last != nil {
		next := last.AddDate(0, 0, 1)
		if !s.hasTradingDaysSince(next) {
			tr.Outcome = OutcomeUpToDate
			s.Logger.Info("already up to date",
				zap.String("symbol", tk.Symbol),
				zap.String("last", last.Format("2006-01-02")),
			)
			return tr
		}
		start = &next
		s.Logger.Info("fetching incremental history",
			zap.String("symbol", tk.Symbol),
			zap.String("from", next.Format("2006-01-02")),
		)
	} else {
		s.Logger.Info("no existing data, fetching full history", zap.String("symbol", tk.Symbol))
	}

	bars, err := s.Quotes.GetDailyHistory(ctx, tk.Symbol, start)
	if err != nil {
		tr.Outcome = OutcomeFailed
		tr.Error = err.Error()
		s.Logger.Warn("history fetch failed", zap.String("symbol", tk.Symbol), zap.Error(err))
		return tr
	}

	// Pre-check layer of the duplicate defense: the source may return bars
	// at or before the last stored date despite the requested window.
	if last != nil {
		bars = barsAfter(bars, *last)
	}
	if len(bars) == 0 {
		tr.Outcome = OutcomeEmpty
		s.Logger.Info("no new data available", zap.String("symbol", tk.Symbol))
		return tr
	}

	rows := make([]models.HistoricPrice, 0, len(bars))
	for _, bar := range bars {
		rows = append(rows, barToRow(tk.ID, bar))
	}

	if dryRun {
		tr.Outcome = OutcomeInserted
		tr.RowsAdded = len(rows)
		s.Logger.Info("dry run, would insert",
			zap.String("symbol", tk.Symbol),
			zap.Int("rows", len(rows)),
		)
		return tr
	}

	inserted, err := s.Repo.InsertPriceBars(ctx, rows)
	if err != nil {
		tr.Outcome = OutcomeFailed
		tr.Error = err.Error()
		s.Logger.Error("insert failed", zap.String("symbol", tk.Symbol), zap.Error(err))
		return tr
	}

	tr.RowsAdded = int(inserted)
	tr.Duplicates = len(rows) - int(inserted)
	if inserted == 0 {
		// Every candidate row already existed; the constraint absorbed them.
		tr.Outcome = OutcomeDuplicate
	} else {
		tr.Outcome = OutcomeInserted
	}
	s.Logger.Info("ticker synced",
		zap.String("symbol", tk.Symbol),
		zap.Int("rows_added", tr.RowsAdded),
		zap.Int("duplicates", tr.Duplicates),
	)
	return tr
}

// hasTradingDaysSince reports whether at least one weekday lies between
// next and today inclusive. A ticker whose last bar is Friday stays
// up to date over the weekend.
func (s *PriceSyncService) hasTradingDaysSince(next time.Time) bool {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for d := next; !d.After(today); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return true
		}
	}
	return false
}

func (s *PriceSyncService) resumeCursor(ctx context.Context, chunks int) int {
	state, err := s.Repo.GetSyncState(ctx, priceSyncScope)
	if err != nil {
		s.Logger.Warn("sync state lookup failed", zap.Error(err))
		return 0
	}
	if state == nil || state.Cursor == nil {
		return 0
	}
	cursor, err := strconv.Atoi(*state.Cursor)
	if err != nil || cursor < 0 || cursor >= chunks {
		return 0
	}
	return cursor
}

// checkpoint persists progress after a chunk. The cursor only advances at
// chunk boundaries, so an interrupted chunk is retried whole on resume while
// its committed rows survive as duplicates for the constraint to absorb.
func (s *PriceSyncService) checkpoint(ctx context.Context, nextChunk int, result SyncResult, lastErr string) {
	now := s.now()
	cursor := strconv.Itoa(nextChunk)
	state := &models.SyncState{
		Scope:         priceSyncScope,
		Cursor:        &cursor,
		LastAttemptAt: &now,
		StatsJSON: statsJSON(map[string]int{
			"processed":  result.Processed,
			"succeeded":  result.Succeeded,
			"failed":     result.Failed,
			"rows_added": result.RowsAdded,
		}),
	}
	// A chunk with failures was attempted, not succeeded.
	if lastErr == "" {
		state.LastSuccessAt = &now
	} else {
		state.LastError = &lastErr
	}
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.SaveSyncStateTx(ctx, tx, state)
	})
	if err != nil {
		s.Logger.Warn("sync state checkpoint failed", zap.Error(err))
	}
}

func (s *PriceSyncService) logSummary(result SyncResult) {
	s.Logger.Info("price sync finished",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("empty", result.Empty),
		zap.Int("up_to_date", result.UpToDate),
		zap.Int("rows_added", result.RowsAdded),
		zap.Int("would_add", result.WouldAdd),
		zap.Bool("aborted", result.Aborted),
	)
}

func (s *PriceSyncService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func partitionTickers(items []models.Ticker, size int) [][]models.Ticker {
	var chunks [][]models.Ticker
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func barsAfter(bars []yahoo.Bar, last time.Time) []yahoo.Bar {
	out := bars[:0]
	for _, bar := range bars {
		if bar.Date.After(last) {
			out = append(out, bar)
		}
	}
	return out
}

func barToRow(tickerID uint, bar yahoo.Bar) models.HistoricPrice {
	open := bar.Open
	high := bar.High
	low := bar.Low
	closeP := bar.Close
	adj := bar.AdjClose
	volume := bar.Volume
	return models.HistoricPrice{
		TickerID: tickerID,
		Date:     bar.Date,
		Open:     &open,
		High:     &high,
		Low:      &low,
		Close:    &closeP,
		AdjClose: &adj,
		Volume:   &volume,
	}
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := map[string]bool{}
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

func missingSymbols(requested []string, tickers []models.Ticker) []string {
	present := map[string]bool{}
	for _, tk := range tickers {
		present[tk.Symbol] = true
	}
	var missing []string
	for _, sym := range requested {
		if !present[sym] {
			missing = append(missing, sym)
		}
	}
	return missing
}

func statsJSON(stats map[string]int) datatypes.JSON {
	raw, err := json.Marshal(stats)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
