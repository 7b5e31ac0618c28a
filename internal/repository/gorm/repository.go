package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockdata/internal/models"
	"stockdata/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- tickers ----------------------------------------------------------------

func (s *Store) InsertTickers(ctx context.Context, items []models.Ticker) (int64, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) ListTickers(ctx context.Context, params repository.ListTickersParams) ([]models.Ticker, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Ticker{})
	if len(params.Symbols) > 0 {
		query = query.Where("symbol IN ?", params.Symbols)
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		like := "%" + strings.ToUpper(q) + "%"
		query = query.Where("symbol LIKE ? OR UPPER(company_name) LIKE ?", like, like)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}
	var items []models.Ticker
	if err := query.Order("symbol asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTickers(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Ticker{}).Count(&count).Error
	return count, err
}

func (s *Store) UpsertKeyData(ctx context.Context, item *models.KeyData) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_name",
			"sector",
			"industry",
			"attrs",
			"last_updated",
		}),
	}).Create(item).Error
}

// --- historic prices --------------------------------------------------------

func (s *Store) LatestPriceDate(ctx context.Context, tickerID uint) (*time.Time, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var bar models.HistoricPrice
	err := s.db.WithContext(ctx).
		Where("ticker_id = ?", tickerID).
		Order("date desc").
		First(&bar).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := bar.Date
	return &d, nil
}

func (s *Store) InsertPriceBars(ctx context.Context, items []models.HistoricPrice) (int64, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker_id"}, {Name: "date"}},
		DoNothing: true,
	}).CreateInBatches(&items, 500)
	return res.RowsAffected, res.Error
}

func (s *Store) ListPricesBySymbol(ctx context.Context, symbol string, params repository.ListPricesParams) ([]models.HistoricPrice, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.HistoricPrice{}).
		Joins("JOIN tickers ON tickers.id = historic_prices.ticker_id").
		Where("tickers.symbol = ?", strings.ToUpper(strings.TrimSpace(symbol)))
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("historic_prices.date >= ?", *params.Since)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	var items []models.HistoricPrice
	if err := query.Order("historic_prices.date asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPrices(ctx context.Context, tickerID uint) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.HistoricPrice{}).
		Where("ticker_id = ?", tickerID).
		Count(&count).Error
	return count, err
}

// --- sync state -------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).Where("scope = ?", scope).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	if tx == nil || state == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}},
		UpdateAll: true,
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
