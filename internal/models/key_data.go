package models

import (
	"time"

	"gorm.io/datatypes"
)

// KeyData holds loosely structured ticker attributes that fall outside the
// primary tickers schema. Populated opportunistically from whatever extra
// columns the screener export carries.
type KeyData struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"type:text;uniqueIndex;not null"`
	CompanyName string `gorm:"type:text"`
	Sector      string `gorm:"type:text"`
	Industry    string `gorm:"type:text"`
	Attrs       datatypes.JSON
	LastUpdated time.Time `gorm:"not null"`
}

func (KeyData) TableName() string {
	return "key_data"
}
