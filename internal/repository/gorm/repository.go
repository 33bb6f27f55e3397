package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mandi/internal/models"
	"mandi/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return repository.ErrNotConfigured
	}
	return nil
}

// --- prices ------------------------------------------------------------

func (s *Store) UpsertPriceRecords(ctx context.Context, items []models.PriceRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ArrivalDate = dateOnly(items[i].ArrivalDate)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "arrival_date"},
			{Name: "state"},
			{Name: "district"},
			{Name: "market"},
			{Name: "commodity"},
			{Name: "variety"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_price",
			"max_price",
			"modal_price",
			"arrival_quantity",
			"updated_at",
		}),
	}).CreateInBatches(items, 500).Error
}

func (s *Store) ListPrices(ctx context.Context, params repository.ListPricesParams) ([]models.PriceRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&models.PriceRecord{})
	query = applyContains(query, "commodity", params.Commodity)
	query = applyContains(query, "state", params.State)
	query = applyContains(query, "district", params.District)
	if m := strings.TrimSpace(params.Market); m != "" {
		if params.MarketExact {
			query = query.Where("LOWER(market) = LOWER(?)", m)
		} else {
			query = query.Where("market ILIKE ?", "%"+m+"%")
		}
	}
	if params.Date != nil && !params.Date.IsZero() {
		query = query.Where("arrival_date = ?", dateOnly(*params.Date))
	} else {
		if params.From != nil && !params.From.IsZero() {
			query = query.Where("arrival_date >= ?", dateOnly(*params.From))
		}
		if params.To != nil && !params.To.IsZero() {
			query = query.Where("arrival_date <= ?", dateOnly(*params.To))
		}
	}
	limit := normalizeLimit(params.Limit, 200)
	var items []models.PriceRecord
	if err := query.Order("arrival_date desc").Order("market asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListMarketsInScope(ctx context.Context, params repository.MarketScopeParams) ([]repository.MarketLocation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&models.PriceRecord{}).
		Distinct("market", "district", "state")
	query = applyContains(query, "state", params.State)
	query = applyContains(query, "district", params.District)
	if params.From != nil && !params.From.IsZero() {
		query = query.Where("arrival_date >= ?", dateOnly(*params.From))
	}
	if params.To != nil && !params.To.IsZero() {
		query = query.Where("arrival_date <= ?", dateOnly(*params.To))
	}
	limit := normalizeLimit(params.Limit, 500)
	var items []repository.MarketLocation
	if err := query.Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- cache entries -------------------------------------------------------

func (s *Store) GetEntry(ctx context.Context, key string, date time.Time) (*models.CacheEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("cache_key = ?", key).
		Where("date = ?", dateOnly(date)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListEntriesForDay(ctx context.Context, date time.Time, state, district string) ([]models.CacheEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Where("date = ?", dateOnly(date))
	query = applyContains(query, "state", state)
	query = applyContains(query, "district", district)
	var items []models.CacheEntry
	if err := query.Order("created_at asc").Limit(200).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertEntry(ctx context.Context, item *models.CacheEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if item == nil || strings.TrimSpace(item.CacheKey) == "" {
		return nil
	}
	item.Date = dateOnly(item.Date)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"filters",
			"records",
			"commodity",
			"state",
			"district",
			"market",
		}),
	}).Create(item).Error
}

func (s *Store) IncrementHit(ctx context.Context, id uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

func (s *Store) CacheStats(ctx context.Context) (repository.CacheStats, error) {
	if err := s.ready(); err != nil {
		return repository.CacheStats{}, err
	}
	var out struct {
		Entries   int64
		TotalHits int64
		Dates     int64
		OldestDay *time.Time
		NewestDay *time.Time
	}
	err := s.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Select("COUNT(*) AS entries, COALESCE(SUM(hit_count),0) AS total_hits, COUNT(DISTINCT date) AS dates, MIN(date) AS oldest_day, MAX(date) AS newest_day").
		Scan(&out).Error
	if err != nil {
		return repository.CacheStats{}, err
	}
	return repository.CacheStats{
		Entries:   out.Entries,
		TotalHits: out.TotalHits,
		Dates:     out.Dates,
		OldestDay: out.OldestDay,
		NewestDay: out.NewestDay,
	}, nil
}

// --- sync state ----------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item models.SyncState
	err := s.db.WithContext(ctx).Where("scope = ?", scope).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if err := s.ready(); err != nil {
		return err
	}
	if state == nil || strings.TrimSpace(state.Scope) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_date",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var items []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ---------------------------------------------------------------

func applyContains(query *gorm.DB, column, value string) *gorm.DB {
	v := strings.TrimSpace(value)
	if v == "" {
		return query
	}
	return query.Where(column+" ILIKE ?", "%"+v+"%")
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 2000 {
		return 2000
	}
	return limit
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
