package models

import (
	"time"

	"gorm.io/datatypes"
)

type SyncState struct {
	Scope         string  `gorm:"primaryKey;type:text"`
	Cursor        *string `gorm:"type:text"`
	WatermarkTS   *time.Time
	LastSuccessAt *time.Time
	LastAttemptAt *time.Time
	LastError     *string `gorm:"type:text"`
	StatsJSON     datatypes.JSON
}

func (SyncState) TableName() string {
	return "sync_state"
}
