package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"mandi/internal/cache"
	"mandi/internal/client/agmarknet"
	"mandi/internal/models"
	"mandi/internal/normalizer"
)

var testNow = time.Date(2024, 6, 20, 9, 30, 0, 0, time.UTC)

func newTestResolver(repo *stubRepo, provider Provider) *Resolver {
	nop := zap.NewNop()
	r := &Resolver{
		Provider: provider,
		Memory:   NewMemoryCache(time.Minute),
		Logger:   nop,
		Now:      func() time.Time { return testNow },
	}
	if repo != nil {
		r.Repo = repo
		r.Writer = &cache.Writer{Repo: repo, Logger: nop, Now: r.Now}
	}
	return r
}

func mustEntry(t *testing.T, q models.Query, date time.Time, records []models.PriceRecord) models.CacheEntry {
	t.Helper()
	raw, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal records: %v", err)
	}
	return models.CacheEntry{
		CacheKey:  normalizer.CacheKey(q),
		Date:      date,
		Commodity: normalizer.Token(q.Commodity),
		State:     normalizer.Token(q.State),
		District:  normalizer.Token(q.District),
		Market:    normalizer.Token(q.Market),
		Records:   datatypes.JSON(raw),
	}
}

func TestResolveMemoryHit(t *testing.T) {
	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool"}
	r := newTestResolver(&stubRepo{}, nil)
	r.Memory.Set(normalizer.CacheKey(q), []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow, 2500),
	})

	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceMemory || !res.FromCache {
		t.Fatalf("got success=%v source=%q fromCache=%v", res.Success, res.Source, res.FromCache)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records", len(res.Records))
	}
}

func TestResolveCacheExactHit(t *testing.T) {
	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool"}
	records := []models.PriceRecord{record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow.AddDate(0, 0, -1), 2500)}
	entry := mustEntry(t, q, dateOnly(testNow), records)
	entry.ID = 7
	repo := &stubRepo{entries: []models.CacheEntry{entry}}
	r := newTestResolver(repo, nil)

	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceCache || !res.FromCache {
		t.Fatalf("got success=%v source=%q fromCache=%v", res.Success, res.Source, res.FromCache)
	}
	if len(repo.hitIDs) != 1 || repo.hitIDs[0] != 7 {
		t.Fatalf("hit counter not incremented: %v", repo.hitIDs)
	}
	// The hit also seeds the memory tier.
	if r.Memory.Len() != 1 {
		t.Fatalf("memory not seeded, len=%d", r.Memory.Len())
	}
}

func TestResolveBroaderCacheScan(t *testing.T) {
	broad := models.Query{State: "Andhra Pradesh", District: "Kurnool"}
	records := []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow.AddDate(0, 0, -1), 2500),
		record("Onion", "Andhra Pradesh", "Kurnool", "Kurnool", testNow.AddDate(0, 0, -1), 1800),
	}
	entry := mustEntry(t, broad, dateOnly(testNow), records)
	entry.ID = 3
	repo := &stubRepo{entries: []models.CacheEntry{entry}}
	r := newTestResolver(repo, nil)

	narrow := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool"}
	res, err := r.Resolve(context.Background(), narrow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceCache {
		t.Fatalf("got success=%v source=%q", res.Success, res.Source)
	}
	if len(res.Records) != 1 || res.Records[0].Commodity != "Tomato" {
		t.Fatalf("expected the tomato record only, got %+v", res.Records)
	}
}

func TestResolveBroaderScanNeedsCommodity(t *testing.T) {
	broad := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool"}
	records := []models.PriceRecord{record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow, 2500)}
	repo := &stubRepo{entries: []models.CacheEntry{mustEntry(t, broad, dateOnly(testNow), records)}}
	r := newTestResolver(repo, nil)

	// A location-wide query must not be served from a narrower slice.
	res, err := r.Resolve(context.Background(), models.Query{State: "Andhra Pradesh", District: "Kurnool"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Success {
		t.Fatalf("expected a miss, got source %q", res.Source)
	}
}

func TestResolveDatabaseExactMarket(t *testing.T) {
	repo := &stubRepo{prices: []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow.AddDate(0, 0, -2), 2500),
	}}
	r := newTestResolver(repo, nil)

	q := models.Query{Commodity: "tomato", State: "andhra pradesh", District: "kurnool", Market: "ADONI"}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceDatabase || res.FromCache {
		t.Fatalf("got success=%v source=%q fromCache=%v", res.Success, res.Source, res.FromCache)
	}
	if res.CorrectedMarket != nil {
		t.Fatalf("no correction expected, got %+v", res.CorrectedMarket)
	}
	if len(repo.upserted) == 0 {
		t.Fatal("database hit was not written back to the cache")
	}
	if r.Memory.Len() == 0 {
		t.Fatal("database hit did not seed the memory tier")
	}
}

func TestResolveDatabaseFuzzyMarket(t *testing.T) {
	repo := &stubRepo{prices: []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adonai", testNow.AddDate(0, 0, -2), 2500),
	}}
	r := newTestResolver(repo, nil)

	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool", Market: "Adoni"}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceDatabaseFuzzy {
		t.Fatalf("got success=%v source=%q", res.Success, res.Source)
	}
	if res.CorrectedMarket == nil || res.CorrectedMarket.Name != "Adonai" {
		t.Fatalf("expected Adonai correction, got %+v", res.CorrectedMarket)
	}
	if res.CorrectedMarket.Score <= 0.75 {
		t.Fatalf("corrected score %v should exceed the scoped threshold", res.CorrectedMarket.Score)
	}
}

func TestResolveAmbiguousMarket(t *testing.T) {
	repo := &stubRepo{prices: []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Zyxzzz", testNow.AddDate(0, 0, -2), 2500),
	}}
	r := newTestResolver(repo, nil)

	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool", Market: "Adoni"}
	res, err := r.Resolve(context.Background(), q)
	if !errors.Is(err, ErrNoConfidentMatch) {
		t.Fatalf("got err %v, want ErrNoConfidentMatch", err)
	}
	if res.Success {
		t.Fatalf("expected a miss, got source %q", res.Source)
	}
	if !res.AmbiguousMarket {
		t.Fatal("expected the ambiguous-market flag")
	}
}

func TestResolveProviderRelaxation(t *testing.T) {
	provider := &stubProvider{fn: func(f agmarknet.Filters) ([]models.PriceRecord, error) {
		if f.Market != "" {
			return nil, nil
		}
		return []models.PriceRecord{
			record("Tomato", "Andhra Pradesh", "Kurnool", "Yemmiganur", testNow.AddDate(0, 0, -1), 2400),
			record("Tomato", "Andhra Pradesh", "Guntur", "Guntur", testNow.AddDate(0, 0, -1), 2100),
		}, nil
	}}
	repo := &stubRepo{}
	r := newTestResolver(repo, provider)

	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool", Market: "Adoni"}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceProvider {
		t.Fatalf("got success=%v source=%q", res.Success, res.Source)
	}
	for _, rec := range res.Records {
		if rec.District != "Kurnool" {
			t.Fatalf("out-of-district record survived relaxation: %+v", rec)
		}
	}
	calls := provider.filters()
	if len(calls) < 2 {
		t.Fatalf("expected at least 2 provider calls, got %d", len(calls))
	}
	if calls[0].Market == "" {
		t.Fatal("first attempt should keep the full filter set")
	}
	if calls[1].Market != "" || calls[1].District == "" {
		t.Fatalf("second attempt should drop only the market, got %+v", calls[1])
	}
	if len(repo.upserted) == 0 {
		t.Fatal("provider hit was not written back to the cache")
	}
}

func TestResolveProviderStaleWindow(t *testing.T) {
	provider := &stubProvider{fn: func(agmarknet.Filters) ([]models.PriceRecord, error) {
		return []models.PriceRecord{
			record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow.AddDate(0, 0, -90), 2400),
		}, nil
	}}
	r := newTestResolver(&stubRepo{}, provider)

	res, err := r.Resolve(context.Background(), models.Query{Commodity: "Tomato", District: "Kurnool"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Success {
		t.Fatal("records older than the lookback window must not satisfy a current query")
	}
}

func TestResolveHistoricalNearbyDate(t *testing.T) {
	repo := &stubRepo{prices: []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 2500),
	}}
	r := newTestResolver(repo, nil)

	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool", Market: "Adoni", Date: "2024-06-15"}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceDatabase {
		t.Fatalf("got success=%v source=%q", res.Success, res.Source)
	}
	if res.ExactDate {
		t.Fatal("a substituted date must not be reported as exact")
	}
	want := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	if !res.ResolvedDate.Equal(want) {
		t.Fatalf("resolved date %v, want %v", res.ResolvedDate, want)
	}
}

func TestResolveHistoricalExactDate(t *testing.T) {
	repo := &stubRepo{prices: []models.PriceRecord{
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 2550),
		record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 2500),
	}}
	r := newTestResolver(repo, nil)

	q := models.Query{Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool", Market: "Adoni", Date: "2024-06-15"}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || !res.ExactDate {
		t.Fatalf("got success=%v exact=%v", res.Success, res.ExactDate)
	}
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !res.ResolvedDate.Equal(want) {
		t.Fatalf("resolved date %v, want %v", res.ResolvedDate, want)
	}
}

func TestResolveHistoricalMissKeepsRequestedDate(t *testing.T) {
	r := newTestResolver(&stubRepo{}, &stubProvider{})

	q := models.Query{Commodity: "Tomato", Date: "2024-06-15"}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Success {
		t.Fatal("expected a miss")
	}
	if res.RequestedDate != "2024-06-15" {
		t.Fatalf("requested date %q not echoed", res.RequestedDate)
	}
}

func TestResolveBadDate(t *testing.T) {
	r := newTestResolver(&stubRepo{}, nil)
	if _, err := r.Resolve(context.Background(), models.Query{Commodity: "Tomato", Date: "15/06/2024"}); err == nil {
		t.Fatal("expected an error for an unparseable date")
	}
}

func TestResolveDisablesUnconfiguredTiers(t *testing.T) {
	provider := &stubProvider{fn: func(agmarknet.Filters) ([]models.PriceRecord, error) {
		return []models.PriceRecord{
			record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow.AddDate(0, 0, -1), 2500),
		}, nil
	}}
	r := newTestResolver(&stubRepo{notConfigured: true}, provider)

	res, err := r.Resolve(context.Background(), models.Query{Commodity: "Tomato", District: "Kurnool"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceProvider {
		t.Fatalf("got success=%v source=%q", res.Success, res.Source)
	}
	if !r.cacheOff.Load() || !r.dbOff.Load() {
		t.Fatal("unconfigured tiers should be disabled after the first fault")
	}
}

func TestResolveLimitApplied(t *testing.T) {
	records := make([]models.PriceRecord, 0, 5)
	for i := 0; i < 5; i++ {
		records = append(records,
			record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", testNow.AddDate(0, 0, -i-1), 2500+float64(i)))
	}
	repo := &stubRepo{prices: records}
	r := newTestResolver(repo, nil)

	q := models.Query{Commodity: "Tomato", District: "Kurnool", Limit: 2}
	res, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("limit not applied, got %d records", len(res.Records))
	}
}

func TestResolveNarrowQueryReusesBroadFetch(t *testing.T) {
	provider := &stubProvider{fn: func(agmarknet.Filters) ([]models.PriceRecord, error) {
		return []models.PriceRecord{
			record("Tomato", "Andhra Pradesh", "Kurnool", "Adoni", dateOnly(testNow), 2400),
			record("Onion", "Andhra Pradesh", "Kurnool", "Adoni", dateOnly(testNow), 1500),
		}, nil
	}}
	repo := &stubRepo{}
	r := newTestResolver(repo, provider)

	broad := models.Query{State: "Andhra Pradesh", District: "Kurnool"}
	res, err := r.Resolve(context.Background(), broad)
	if err != nil {
		t.Fatalf("broad Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceProvider || len(res.Records) != 2 {
		t.Fatalf("broad: got success=%v source=%q records=%d", res.Success, res.Source, len(res.Records))
	}

	narrow := models.Query{State: "Andhra Pradesh", District: "Kurnool", Commodity: "Tomato"}
	res, err = r.Resolve(context.Background(), narrow)
	if err != nil {
		t.Fatalf("narrow Resolve: %v", err)
	}
	if !res.Success || res.Source != SourceCache || !res.FromCache {
		t.Fatalf("narrow: got success=%v source=%q fromCache=%v", res.Success, res.Source, res.FromCache)
	}
	if len(res.Records) != 1 || res.Records[0].Commodity != "Tomato" {
		t.Fatalf("narrow: got %d records %+v", len(res.Records), res.Records)
	}
	if calls := provider.filters(); len(calls) != 1 {
		t.Fatalf("the decomposed entries should answer the narrow query, got %d provider calls", len(calls))
	}
}
