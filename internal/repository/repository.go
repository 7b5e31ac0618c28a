package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"stockdata/internal/models"
)

type ListTickersParams struct {
	// Symbols restricts the result to the given symbols; empty means all.
	Symbols []string
	Query   string
	Limit   int
	Offset  int
}

type ListPricesParams struct {
	Since *time.Time
	Limit int
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// InsertTickers inserts rows whose symbol is not already present and
	// reports how many were actually written.
	InsertTickers(ctx context.Context, items []models.Ticker) (int64, error)
	ListTickers(ctx context.Context, params ListTickersParams) ([]models.Ticker, error)
	CountTickers(ctx context.Context) (int64, error)
	UpsertKeyData(ctx context.Context, item *models.KeyData) error

	// LatestPriceDate returns the most recent stored bar date for a ticker,
	// or nil when no bars exist.
	LatestPriceDate(ctx context.Context, tickerID uint) (*time.Time, error)
	// InsertPriceBars writes bars with conflict-do-nothing on (ticker, date)
	// and reports how many rows were actually inserted.
	InsertPriceBars(ctx context.Context, items []models.HistoricPrice) (int64, error)
	ListPricesBySymbol(ctx context.Context, symbol string, params ListPricesParams) ([]models.HistoricPrice, error)
	CountPrices(ctx context.Context, tickerID uint) (int64, error)

	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}
