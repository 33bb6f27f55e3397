package repository

import (
	"context"
	"errors"
	"time"

	"mandi/internal/models"
)

// ErrNotConfigured marks a backing store that is unavailable for the process
// lifetime (e.g. no DSN). Callers degrade by skipping the tier, not by
// retrying.
var ErrNotConfigured = errors.New("store not configured")

// ListPricesParams filters price observations. String filters are
// case-insensitive substrings except Market, which is an exact
// case-insensitive match when MarketExact is set.
type ListPricesParams struct {
	Commodity   string
	State       string
	District    string
	Market      string
	MarketExact bool

	// Exactly one of Date or the From/To window is normally set.
	Date *time.Time
	From *time.Time
	To   *time.Time

	Limit int
}

// MarketScopeParams bounds the candidate set handed to the fuzzy matcher.
type MarketScopeParams struct {
	State    string
	District string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// MarketLocation is one distinct market with its locality.
type MarketLocation struct {
	Market   string
	District string
	State    string
}

// CacheStats summarizes the persistent cache for operators.
type CacheStats struct {
	Entries   int64      `json:"entries"`
	TotalHits int64      `json:"total_hits"`
	Dates     int64      `json:"dates"`
	OldestDay *time.Time `json:"oldest_day,omitempty"`
	NewestDay *time.Time `json:"newest_day,omitempty"`
}

type PriceRepository interface {
	UpsertPriceRecords(ctx context.Context, items []models.PriceRecord) error
	ListPrices(ctx context.Context, params ListPricesParams) ([]models.PriceRecord, error)
	ListMarketsInScope(ctx context.Context, params MarketScopeParams) ([]MarketLocation, error)
}

type CacheRepository interface {
	GetEntry(ctx context.Context, key string, date time.Time) (*models.CacheEntry, error)
	// ListEntriesForDay returns same-day entries scoped to a state and/or
	// district, for the broader-entry recovery scan.
	ListEntriesForDay(ctx context.Context, date time.Time, state, district string) ([]models.CacheEntry, error)
	UpsertEntry(ctx context.Context, item *models.CacheEntry) error
	IncrementHit(ctx context.Context, id uint64) error
	CacheStats(ctx context.Context) (CacheStats, error)
}

type SyncStateRepository interface {
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}

// Repository is the unified store the resolver, cache writer and producers
// share.
type Repository interface {
	PriceRepository
	CacheRepository
	SyncStateRepository
}
