package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mandi/internal/client/agmarknet"
	"mandi/internal/models"
	"mandi/internal/repository"
)

// stubRepo is an in-memory repository with just enough filter semantics to
// drive the resolver. Matching mirrors the SQL store: substring filters for
// commodity/state/district, exact fold for MarketExact.
type stubRepo struct {
	mu sync.Mutex

	prices  []models.PriceRecord
	entries []models.CacheEntry

	notConfigured bool
	failListing   error

	priceQueries int
	hitIDs       []uint64
	upserted     []models.CacheEntry
}

func (s *stubRepo) UpsertPriceRecords(_ context.Context, items []models.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return repository.ErrNotConfigured
	}
	s.prices = append(s.prices, items...)
	return nil
}

func (s *stubRepo) ListPrices(_ context.Context, params repository.ListPricesParams) ([]models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return nil, repository.ErrNotConfigured
	}
	if s.failListing != nil {
		return nil, s.failListing
	}
	s.priceQueries++
	var out []models.PriceRecord
	for _, rec := range s.prices {
		if !contains(rec.Commodity, params.Commodity) ||
			!contains(rec.State, params.State) ||
			!contains(rec.District, params.District) {
			continue
		}
		if params.Market != "" {
			if params.MarketExact {
				if !strings.EqualFold(rec.Market, params.Market) {
					continue
				}
			} else if !contains(rec.Market, params.Market) {
				continue
			}
		}
		if params.Date != nil && !sameDay(rec.ArrivalDate, *params.Date) {
			continue
		}
		if params.From != nil && rec.ArrivalDate.Before(*params.From) {
			continue
		}
		if params.To != nil && rec.ArrivalDate.After(*params.To) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubRepo) ListMarketsInScope(_ context.Context, params repository.MarketScopeParams) ([]repository.MarketLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return nil, repository.ErrNotConfigured
	}
	seen := map[string]bool{}
	var out []repository.MarketLocation
	for _, rec := range s.prices {
		if !contains(rec.State, params.State) || !contains(rec.District, params.District) {
			continue
		}
		if params.From != nil && rec.ArrivalDate.Before(*params.From) {
			continue
		}
		if params.To != nil && rec.ArrivalDate.After(*params.To) {
			continue
		}
		k := strings.ToLower(rec.Market)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, repository.MarketLocation{Market: rec.Market, District: rec.District, State: rec.State})
	}
	return out, nil
}

func (s *stubRepo) GetEntry(_ context.Context, key string, date time.Time) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return nil, repository.ErrNotConfigured
	}
	for i := range s.entries {
		if s.entries[i].CacheKey == key && sameDay(s.entries[i].Date, date) {
			return &s.entries[i], nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListEntriesForDay(_ context.Context, date time.Time, state, district string) ([]models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return nil, repository.ErrNotConfigured
	}
	var out []models.CacheEntry
	for _, e := range s.entries {
		if !sameDay(e.Date, date) {
			continue
		}
		if !contains(e.State, state) || !contains(e.District, district) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *stubRepo) UpsertEntry(_ context.Context, item *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return repository.ErrNotConfigured
	}
	for i := range s.entries {
		if s.entries[i].CacheKey == item.CacheKey && sameDay(s.entries[i].Date, item.Date) {
			s.entries[i] = *item
			s.upserted = append(s.upserted, *item)
			return nil
		}
	}
	item.ID = uint64(len(s.entries) + 1)
	s.entries = append(s.entries, *item)
	s.upserted = append(s.upserted, *item)
	return nil
}

func (s *stubRepo) IncrementHit(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notConfigured {
		return repository.ErrNotConfigured
	}
	s.hitIDs = append(s.hitIDs, id)
	return nil
}

func (s *stubRepo) CacheStats(context.Context) (repository.CacheStats, error) {
	if s.notConfigured {
		return repository.CacheStats{}, repository.ErrNotConfigured
	}
	return repository.CacheStats{Entries: int64(len(s.entries))}, nil
}

func (s *stubRepo) GetSyncState(context.Context, string) (*models.SyncState, error) {
	return nil, nil
}

func (s *stubRepo) SaveSyncState(context.Context, *models.SyncState) error { return nil }

func (s *stubRepo) ListSyncStates(context.Context) ([]models.SyncState, error) { return nil, nil }

// stubProvider records every filter set it was called with and delegates to
// fn, or returns nothing when fn is nil.
type stubProvider struct {
	mu    sync.Mutex
	fn    func(agmarknet.Filters) ([]models.PriceRecord, error)
	calls []agmarknet.Filters
}

func (p *stubProvider) ListPrices(_ context.Context, f agmarknet.Filters) ([]models.PriceRecord, error) {
	p.mu.Lock()
	p.calls = append(p.calls, f)
	fn := p.fn
	p.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(f)
}

func (p *stubProvider) filters() []agmarknet.Filters {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]agmarknet.Filters, len(p.calls))
	copy(out, p.calls)
	return out
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func record(commodity, state, district, market string, day time.Time, modal float64) models.PriceRecord {
	price := decimal.NewFromFloat(modal)
	return models.PriceRecord{
		Commodity:   commodity,
		State:       state,
		District:    district,
		Market:      market,
		ArrivalDate: day,
		MinPrice:    price.Sub(decimal.NewFromInt(100)),
		MaxPrice:    price.Add(decimal.NewFromInt(100)),
		ModalPrice:  price,
	}
}
