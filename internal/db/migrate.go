package db

import (
	"stockdata/internal/models"
)

// AutoMigrate creates the schema if it does not exist. Safe to run
// repeatedly; existing rows are never touched.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Ticker{},
		&models.KeyData{},
		&models.HistoricPrice{},
		&models.SyncState{},
	)
}
