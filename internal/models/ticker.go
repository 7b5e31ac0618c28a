package models

import "time"

type Ticker struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Symbol      string    `gorm:"type:text;uniqueIndex;not null"`
	CompanyName string    `gorm:"type:text"`
	Sector      string    `gorm:"type:text"`
	Industry    string    `gorm:"type:text"`
	LastUpdated time.Time `gorm:"not null"`
}

func (Ticker) TableName() string {
	return "tickers"
}
