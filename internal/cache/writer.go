package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"mandi/internal/models"
	"mandi/internal/normalizer"
	"mandi/internal/repository"
)

// Writer is the only component that creates cache entries. Write-back is
// best-effort: failures are logged and swallowed, never surfaced to the
// resolution path.
type Writer struct {
	Repo   repository.CacheRepository
	Logger *zap.Logger
	Now    func() time.Time
}

// WriteBack stores the literal query result and its decomposed
// per-(commodity, location) sub-entries. dataDate is the date of the records
// themselves, which for historical substitutions differs from the query's
// requested date.
func (w *Writer) WriteBack(ctx context.Context, q models.Query, dataDate time.Time, records []models.PriceRecord) {
	if w == nil || w.Repo == nil || len(records) == 0 {
		return
	}
	key := normalizer.CacheKey(q)

	// The literal entry must not contain out-of-scope rows, or later
	// exact-key lookups would return them.
	scoped := FilterScope(q, records)
	if len(scoped) > 0 {
		w.store(ctx, key, q, dataDate, scoped)
	}

	// Decomposition runs over the full fetch, not the scoped subset, so a
	// broad fetch seeds entries that narrower queries can reuse.
	for _, g := range Decompose(key, q.Date, records) {
		w.store(ctx, g.Key, g.Query, dataDate, g.Records)
	}
}

func (w *Writer) store(ctx context.Context, key string, q models.Query, dataDate time.Time, records []models.PriceRecord) {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		w.warn("marshal cache records", key, err)
		return
	}
	filtersJSON, err := json.Marshal(q)
	if err != nil {
		w.warn("marshal cache filters", key, err)
		return
	}
	entry := &models.CacheEntry{
		CacheKey:  key,
		Date:      dataDate,
		Commodity: normalizer.Token(q.Commodity),
		State:     normalizer.Token(q.State),
		District:  normalizer.Token(q.District),
		Market:    normalizer.Token(q.Market),
		Filters:   datatypes.JSON(filtersJSON),
		Records:   datatypes.JSON(recordsJSON),
	}
	if err := w.Repo.UpsertEntry(ctx, entry); err != nil {
		w.warn("cache write-back", key, err)
	}
}

func (w *Writer) warn(msg, key string, err error) {
	if w.Logger != nil {
		w.Logger.Warn(msg+" failed", zap.String("cache_key", key), zap.Error(err))
	}
}
