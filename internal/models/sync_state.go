package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState tracks the progress of one producer scope, e.g. the daily
// price pull for a state.
type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:varchar(120)"`
	LastDate      *time.Time     `gorm:"type:date"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
