package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"mandi/internal/client/agmarknet"
	"mandi/internal/models"
)

// PriceProvider is the slice of the provider client the sync needs.
type PriceProvider interface {
	ListPrices(ctx context.Context, f agmarknet.Filters) ([]models.PriceRecord, error)
}

// SyncStore is the slice of the repository the sync writes through.
type SyncStore interface {
	UpsertPriceRecords(ctx context.Context, items []models.PriceRecord) error
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
}

// PriceSyncService pulls the day's observations for each configured scope
// into the relational store, so interactive queries can be served without
// touching the rate-limited provider.
type PriceSyncService struct {
	Store    SyncStore
	Provider PriceProvider
	Logger   *zap.Logger
}

// SyncOptions selects what to pull. A scope is "State" or "State/Commodity".
type SyncOptions struct {
	Scopes []string
	Limit  int
	// Date defaults to today.
	Date time.Time
}

type ScopeResult struct {
	Scope   string `json:"scope"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

type SyncResult struct {
	Date    string        `json:"date"`
	Scopes  []ScopeResult `json:"scopes"`
	Records int           `json:"records"`
	Errors  int           `json:"errors"`
}

// Sync runs every scope sequentially; one failing scope does not stop the
// rest. The returned error is reserved for misconfiguration.
func (s *PriceSyncService) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	if s.Provider == nil {
		return SyncResult{}, fmt.Errorf("price sync: provider is nil")
	}
	if s.Store == nil {
		return SyncResult{}, fmt.Errorf("price sync: store is nil")
	}
	date := opts.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	result := SyncResult{Date: date.Format("2006-01-02")}
	for _, scope := range opts.Scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		count, err := s.syncScope(ctx, scope, date, opts.Limit)
		sr := ScopeResult{Scope: scope, Records: count}
		if err != nil {
			sr.Error = err.Error()
			result.Errors++
			s.writeSyncError(ctx, scope, err)
		} else {
			result.Records += count
			s.writeSyncSuccess(ctx, scope, date, count)
		}
		result.Scopes = append(result.Scopes, sr)
	}
	return result, nil
}

func (s *PriceSyncService) syncScope(ctx context.Context, scope string, date time.Time, limit int) (int, error) {
	state, commodity := splitScope(scope)
	if state == "" {
		return 0, fmt.Errorf("scope %q has no state", scope)
	}
	records, err := s.Provider.ListPrices(ctx, agmarknet.Filters{
		State:     state,
		Commodity: commodity,
		Date:      agmarknet.FormatDate(date),
		Limit:     limit,
	})
	if err != nil {
		return 0, err
	}
	records = models.DedupeRecords(records)
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.Store.UpsertPriceRecords(ctx, records); err != nil {
		return 0, err
	}
	if s.Logger != nil {
		s.Logger.Info("price scope synced",
			zap.String("scope", scope),
			zap.String("date", date.Format("2006-01-02")),
			zap.Int("records", len(records)))
	}
	return len(records), nil
}

func (s *PriceSyncService) writeSyncSuccess(ctx context.Context, scope string, date time.Time, count int) {
	now := time.Now().UTC()
	stats, _ := json.Marshal(map[string]any{"records": count})
	err := s.Store.SaveSyncState(ctx, &models.SyncState{
		Scope:         scope,
		LastDate:      &date,
		LastSuccessAt: &now,
		LastAttemptAt: &now,
		StatsJSON:     datatypes.JSON(stats),
	})
	if err != nil && s.Logger != nil {
		s.Logger.Warn("save sync state failed", zap.String("scope", scope), zap.Error(err))
	}
}

func (s *PriceSyncService) writeSyncError(ctx context.Context, scope string, cause error) {
	if s.Logger != nil {
		s.Logger.Warn("price sync failed", zap.String("scope", scope), zap.Error(cause))
	}
	now := time.Now().UTC()
	msg := cause.Error()
	state := &models.SyncState{Scope: scope}
	// Keep the last success visible next to the new error.
	if prev, err := s.Store.GetSyncState(ctx, scope); err == nil && prev != nil {
		state = prev
	}
	state.LastAttemptAt = &now
	state.LastError = &msg
	err := s.Store.SaveSyncState(ctx, state)
	if err != nil && s.Logger != nil {
		s.Logger.Warn("save sync state failed", zap.String("scope", scope), zap.Error(err))
	}
}

// splitScope parses "State" or "State/Commodity".
func splitScope(scope string) (state, commodity string) {
	parts := strings.SplitN(scope, "/", 2)
	state = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		commodity = strings.TrimSpace(parts[1])
	}
	return state, commodity
}
