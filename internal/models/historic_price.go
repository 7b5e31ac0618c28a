package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoricPrice is one daily OHLCV bar. At most one row may exist per
// (ticker, date); the composite unique index is the storage-level guard,
// the sync service's last-date pre-check is the first.
type HistoricPrice struct {
	ID        uint             `gorm:"primaryKey;autoIncrement"`
	TickerID  uint             `gorm:"not null;uniqueIndex:idx_historic_prices_ticker_date;index:idx_historic_prices_ticker"`
	Date      time.Time        `gorm:"type:date;not null;uniqueIndex:idx_historic_prices_ticker_date;index:idx_historic_prices_date"`
	Open      *decimal.Decimal `gorm:"type:numeric(20,6)"`
	High      *decimal.Decimal `gorm:"type:numeric(20,6)"`
	Low       *decimal.Decimal `gorm:"type:numeric(20,6)"`
	Close     *decimal.Decimal `gorm:"type:numeric(20,6)"`
	AdjClose  *decimal.Decimal `gorm:"type:numeric(20,6)"`
	Volume    *int64
	CreatedAt time.Time
}

func (HistoricPrice) TableName() string {
	return "historic_prices"
}
