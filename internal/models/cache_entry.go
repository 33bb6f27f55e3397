package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry holds the resolved records for one cache key on one data date.
// Entries are append-only: a new date's data is a new row, never an
// overwrite. Only the hit counter is updated in place.
type CacheEntry struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	CacheKey string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_cache_key_date;index"`
	Date     time.Time `gorm:"type:date;not null;uniqueIndex:idx_cache_key_date;index"`

	// Denormalized filter columns so same-day scans can be scoped by
	// location without unpacking the filters JSON.
	Commodity string `gorm:"type:varchar(100);not null;default:'';index"`
	State     string `gorm:"type:varchar(100);not null;default:'';index"`
	District  string `gorm:"type:varchar(100);not null;default:'';index"`
	Market    string `gorm:"type:varchar(100);not null;default:''"`

	Filters datatypes.JSON `gorm:"type:jsonb"`
	Records datatypes.JSON `gorm:"type:jsonb;not null"`

	HitCount  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
