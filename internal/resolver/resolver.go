// Package resolver answers price queries through an ordered fallback chain:
// in-process memory, persistent keyed cache, relational store, then the
// external provider with progressive filter relaxation. Tiers are attempted
// strictly in order because each is cheaper than the next.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mandi/internal/cache"
	"mandi/internal/client/agmarknet"
	"mandi/internal/match"
	"mandi/internal/models"
	"mandi/internal/normalizer"
	"mandi/internal/repository"
)

const (
	SourceMemory        = "memory"
	SourceCache         = "cache"
	SourceDatabase      = "database"
	SourceDatabaseFuzzy = "database_fuzzy"
	SourceProvider      = "provider"
)

// ErrNoConfidentMatch reports that a market name was given but no candidate
// cleared the fuzzy acceptance threshold. Callers can ask the user to
// disambiguate instead of treating it as plain missing data.
var ErrNoConfidentMatch = errors.New("no confident market match")

// Provider is the external price source consumed by the provider tier.
type Provider interface {
	ListPrices(ctx context.Context, f agmarknet.Filters) ([]models.PriceRecord, error)
}

type Options struct {
	// LookbackDays is the default trailing window for dateless database
	// and provider lookups.
	LookbackDays int
	// ProbeBatchSize bounds concurrent historical date probes per wave.
	ProbeBatchSize int
	// DefaultLimit caps returned records when the query gives no limit.
	DefaultLimit int
}

func (o Options) withDefaults() Options {
	if o.LookbackDays <= 0 {
		o.LookbackDays = 30
	}
	if o.ProbeBatchSize <= 0 {
		o.ProbeBatchSize = 7
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 100
	}
	return o
}

// Result is the outcome of one resolution. Total miss is a normal outcome
// (Success=false), never an error.
type Result struct {
	Records      []models.PriceRecord `json:"records"`
	Source       string               `json:"source,omitempty"`
	FromCache    bool                 `json:"from_cache"`
	Success      bool                 `json:"success"`
	ResolvedDate time.Time            `json:"resolved_date,omitempty"`
	// ExactDate is false when a historical probe substituted a nearby date
	// for the requested one.
	ExactDate bool `json:"exact_date"`
	// RequestedDate echoes the query's date on failure, for error messages.
	RequestedDate string `json:"requested_date,omitempty"`
	// CorrectedMarket discloses a fuzzy market-name substitution.
	CorrectedMarket *match.MarketCandidate `json:"corrected_market,omitempty"`
	// AmbiguousMarket reports that market candidates existed but none
	// cleared the acceptance threshold, as opposed to an empty result.
	AmbiguousMarket bool `json:"ambiguous_market,omitempty"`
}

type Resolver struct {
	Repo     repository.Repository
	Provider Provider
	Writer   *cache.Writer
	Memory   *MemoryCache
	Logger   *zap.Logger
	Opts     Options

	// Now is a test seam; nil means time.Now.
	Now func() time.Time

	cacheOff atomic.Bool
	dbOff    atomic.Bool
}

// Resolve runs the tier chain for one query. The only error returned is an
// unparseable date filter; everything downstream degrades to Success=false.
func (r *Resolver) Resolve(ctx context.Context, q models.Query) (Result, error) {
	anchor, err := models.ParseDateAnchor(q.Date)
	if err != nil {
		return Result{}, err
	}
	var res Result
	if anchor.Kind == models.DateNone {
		res = r.resolveCurrent(ctx, q)
	} else {
		res = r.resolveHistorical(ctx, q, anchor)
	}
	if !res.Success && res.AmbiguousMarket {
		return res, ErrNoConfidentMatch
	}
	return res, nil
}

// --- current-day path --------------------------------------------------

func (r *Resolver) resolveCurrent(ctx context.Context, q models.Query) Result {
	today := dateOnly(r.now())
	key := normalizer.CacheKey(q)

	if records, ok := r.Memory.Get(key); ok {
		return Result{
			Records:      r.capRecords(records, q),
			Source:       SourceMemory,
			FromCache:    true,
			Success:      true,
			ResolvedDate: today,
			ExactDate:    true,
		}
	}

	if res, ok := r.cacheTier(ctx, q, key, today); ok {
		r.Memory.Set(key, res.Records)
		return res
	}

	res, ok, ambiguous := r.databaseTier(ctx, q, nil)
	if ok {
		r.commit(ctx, q, key, &res)
		return res
	}

	if res, hit := r.providerTier(ctx, q, nil, false); hit {
		r.commit(ctx, q, key, &res)
		return res
	}

	return Result{Success: false, AmbiguousMarket: ambiguous, RequestedDate: q.Date}
}

// commit writes a database/provider result back to the persistent cache and
// seeds the memory tier. Both are best-effort.
func (r *Resolver) commit(ctx context.Context, q models.Query, key string, res *Result) {
	if r.Writer != nil {
		r.Writer.WriteBack(ctx, q, res.ResolvedDate, res.Records)
	}
	r.Memory.Set(key, res.Records)
}

// --- historical path -----------------------------------------------------

func (r *Resolver) resolveHistorical(ctx context.Context, q models.Query, anchor models.DateAnchor) Result {
	dates := CandidateDates(anchor)
	opts := r.Opts.withDefaults()

	type probe struct {
		res Result
		ok  bool
	}
	ambiguous := false
	for start := 0; start < len(dates); start += opts.ProbeBatchSize {
		end := start + opts.ProbeBatchSize
		if end > len(dates) {
			end = len(dates)
		}
		wave := make([]probe, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(slot int, day time.Time) {
				defer wg.Done()
				res, ok := r.ResolveForDate(ctx, q, day)
				wave[slot] = probe{res: res, ok: ok}
			}(i-start, dates[i])
		}
		// First success in probe order wins; late siblings in the wave
		// finish but their results go unused.
		wg.Wait()
		for i, p := range wave {
			if p.res.AmbiguousMarket {
				ambiguous = true
			}
			if !p.ok {
				continue
			}
			res := p.res
			res.ResolvedDate = dates[start+i]
			res.ExactDate = anchor.Kind == models.DateExact && sameDay(res.ResolvedDate, anchor.Day)
			return res
		}
	}
	return Result{Success: false, RequestedDate: q.Date, AmbiguousMarket: ambiguous}
}

// ResolveForDate probes the database and provider tiers for a single
// calendar day, bypassing the fast caches and the trailing-window date
// filter. The trend aggregator uses it to fill missing days.
func (r *Resolver) ResolveForDate(ctx context.Context, q models.Query, day time.Time) (Result, bool) {
	day = dateOnly(day)

	res, ok, ambiguous := r.databaseTier(ctx, q, &day)
	if !ok {
		res, ok = r.providerTier(ctx, q, &day, true)
		res.AmbiguousMarket = res.AmbiguousMarket || ambiguous
	}
	if !ok {
		return res, false
	}
	res.ResolvedDate = day
	if r.Writer != nil {
		dayQuery := q
		dayQuery.Date = day.Format("2006-01-02")
		r.Writer.WriteBack(ctx, dayQuery, day, res.Records)
	}
	return res, true
}

// --- cache tier ----------------------------------------------------------

func (r *Resolver) cacheTier(ctx context.Context, q models.Query, key string, day time.Time) (Result, bool) {
	if r.Repo == nil || r.cacheOff.Load() {
		return Result{}, false
	}
	entry, err := r.Repo.GetEntry(ctx, key, day)
	if err != nil {
		r.tierFault("cache", &r.cacheOff, err)
		return Result{}, false
	}
	if entry != nil {
		if records := decodeEntry(entry, r.Logger); len(records) > 0 {
			_ = r.Repo.IncrementHit(ctx, entry.ID)
			return Result{
				Records:      r.capRecords(records, q),
				Source:       SourceCache,
				FromCache:    true,
				Success:      true,
				ResolvedDate: entry.Date,
				ExactDate:    true,
			}, true
		}
	}
	return r.broaderEntryScan(ctx, q, key, day)
}

// broaderEntryScan recovers records cached under a broader same-day entry.
// It requires both a commodity and a location: a location-wide query must
// not reuse a narrower cached slice, that would silently return stale
// partial data.
func (r *Resolver) broaderEntryScan(ctx context.Context, q models.Query, key string, day time.Time) (Result, bool) {
	if strings.TrimSpace(q.Commodity) == "" || !q.HasLocation() {
		return Result{}, false
	}
	entries, err := r.Repo.ListEntriesForDay(ctx, day, normalizer.Token(q.State), normalizer.Token(q.District))
	if err != nil {
		r.tierFault("cache", &r.cacheOff, err)
		return Result{}, false
	}
	commodity := strings.TrimSpace(q.Commodity)
	for _, entry := range entries {
		if entry.CacheKey == key {
			continue
		}
		records := decodeEntry(&entry, r.Logger)
		matched := make([]models.PriceRecord, 0, len(records))
		for _, rec := range records {
			if !strings.EqualFold(strings.TrimSpace(rec.Commodity), commodity) {
				continue
			}
			if !containsFold(rec.District, q.District) || !containsFold(rec.Market, q.Market) || !containsFold(rec.State, q.State) {
				continue
			}
			matched = append(matched, rec)
		}
		if len(matched) > 0 {
			_ = r.Repo.IncrementHit(ctx, entry.ID)
			return Result{
				Records:      r.capRecords(matched, q),
				Source:       SourceCache,
				FromCache:    true,
				Success:      true,
				ResolvedDate: entry.Date,
				ExactDate:    true,
			}, true
		}
	}
	return Result{}, false
}

// --- database tier --------------------------------------------------------

func (r *Resolver) databaseTier(ctx context.Context, q models.Query, day *time.Time) (Result, bool, bool) {
	if r.Repo == nil || r.dbOff.Load() {
		return Result{}, false, false
	}
	fs := normalizer.FilterSetFor(q)
	params := repository.ListPricesParams{
		Commodity: fs.DB.Commodity,
		State:     fs.DB.State,
		District:  fs.DB.District,
		Limit:     r.limit(q),
	}
	var windowFrom time.Time
	if day != nil {
		d := dateOnly(*day)
		params.Date = &d
	} else {
		windowFrom = dateOnly(r.now()).AddDate(0, 0, -r.Opts.withDefaults().LookbackDays)
		params.From = &windowFrom
	}

	if fs.DB.Market == "" {
		records, err := r.Repo.ListPrices(ctx, params)
		if err != nil {
			r.tierFault("database", &r.dbOff, err)
			return Result{}, false, false
		}
		if len(records) == 0 {
			return Result{}, false, false
		}
		return r.databaseResult(records, q, SourceDatabase, nil), true, false
	}

	params.Market = fs.DB.Market
	params.MarketExact = true
	records, err := r.Repo.ListPrices(ctx, params)
	if err != nil {
		r.tierFault("database", &r.dbOff, err)
		return Result{}, false, false
	}
	if len(records) > 0 {
		return r.databaseResult(records, q, SourceDatabase, nil), true, false
	}

	// No exact market: try a fuzzy correction against the markets present
	// in the same scope and window.
	scope := repository.MarketScopeParams{State: fs.DB.State, District: fs.DB.District}
	if day != nil {
		scope.From = params.Date
		scope.To = params.Date
	} else {
		scope.From = &windowFrom
	}
	locations, err := r.Repo.ListMarketsInScope(ctx, scope)
	if err != nil {
		r.tierFault("database", &r.dbOff, err)
		return Result{}, false, false
	}
	if len(locations) == 0 {
		return Result{}, false, false
	}
	candidates := make([]match.Candidate, 0, len(locations))
	for _, loc := range locations {
		candidates = append(candidates, match.Candidate{Name: loc.Market, District: loc.District, State: loc.State})
	}
	corrected := match.MatchScoped(q.Market, candidates, q.District, q.State)
	if corrected == nil {
		return Result{}, false, true
	}
	params.Market = corrected.Name
	records, err = r.Repo.ListPrices(ctx, params)
	if err != nil {
		r.tierFault("database", &r.dbOff, err)
		return Result{}, false, false
	}
	if len(records) == 0 {
		return Result{}, false, false
	}
	return r.databaseResult(records, q, SourceDatabaseFuzzy, corrected), true, false
}

func (r *Resolver) databaseResult(records []models.PriceRecord, q models.Query, source string, corrected *match.MarketCandidate) Result {
	records = models.DedupeRecords(records)
	return Result{
		Records:         r.capRecords(records, q),
		Source:          source,
		Success:         true,
		ResolvedDate:    latestArrival(records),
		ExactDate:       true,
		CorrectedMarket: corrected,
	}
}

// --- provider tier --------------------------------------------------------

// relaxStep is one entry of the provider tier's ordered relaxation plan.
// Keeping the plan as data keeps reordering a one-line change.
type relaxStep struct {
	name  string
	apply func(agmarknet.Filters) agmarknet.Filters
	post  func([]models.PriceRecord) []models.PriceRecord
}

// relaxationPlan never drops the commodity: a commodity-less broad call is
// only permitted when the caller never specified one.
func relaxationPlan(q models.Query) []relaxStep {
	steps := []relaxStep{
		{name: "full", apply: func(f agmarknet.Filters) agmarknet.Filters { return f }},
	}
	if strings.TrimSpace(q.Market) != "" {
		district := q.District
		steps = append(steps, relaxStep{
			name: "drop_market",
			apply: func(f agmarknet.Filters) agmarknet.Filters {
				f.Market = ""
				return f
			},
			post: func(records []models.PriceRecord) []models.PriceRecord {
				return filterDistrictLoose(records, district)
			},
		})
	}
	if strings.TrimSpace(q.District) != "" {
		steps = append(steps, relaxStep{
			name: "drop_district",
			apply: func(f agmarknet.Filters) agmarknet.Filters {
				f.Market = ""
				f.District = ""
				return f
			},
		})
	}
	return steps
}

func (r *Resolver) providerTier(ctx context.Context, q models.Query, day *time.Time, skipDateFilter bool) (Result, bool) {
	if r.Provider == nil {
		return Result{}, false
	}
	fs := normalizer.FilterSetFor(q)
	base := agmarknet.Filters{
		Commodity: fs.Provider.Commodity,
		State:     fs.Provider.State,
		District:  fs.Provider.District,
		Market:    fs.Provider.Market,
		Limit:     r.limit(q),
	}
	if day != nil {
		base.Date = agmarknet.FormatDate(*day)
	}

	for _, step := range relaxationPlan(q) {
		records, err := r.Provider.ListPrices(ctx, step.apply(base))
		if err != nil {
			// Transient faults count as an empty step, never a failure of
			// the whole resolution.
			if r.Logger != nil {
				r.Logger.Warn("provider call failed",
					zap.String("step", step.name),
					zap.Error(err))
			}
			continue
		}
		if step.post != nil {
			records = step.post(records)
		}
		if day == nil && !skipDateFilter {
			from := dateOnly(r.now()).AddDate(0, 0, -r.Opts.withDefaults().LookbackDays)
			records = filterSince(records, from)
		}
		records = models.DedupeRecords(records)
		if len(records) == 0 {
			continue
		}
		return Result{
			Records:      r.capRecords(records, q),
			Source:       SourceProvider,
			Success:      true,
			ResolvedDate: latestArrival(records),
			ExactDate:    true,
		}, true
	}
	return Result{}, false
}

// --- helpers ---------------------------------------------------------------

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) limit(q models.Query) int {
	if q.Limit > 0 {
		return q.Limit
	}
	return r.Opts.withDefaults().DefaultLimit
}

func (r *Resolver) capRecords(records []models.PriceRecord, q models.Query) []models.PriceRecord {
	limit := r.limit(q)
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

// tierFault downgrades a tier error to a miss. A not-configured store
// disables its tier for the rest of the process lifetime.
func (r *Resolver) tierFault(tier string, off *atomic.Bool, err error) {
	if errors.Is(err, repository.ErrNotConfigured) {
		if !off.Swap(true) && r.Logger != nil {
			r.Logger.Warn("tier not configured, disabling", zap.String("tier", tier))
		}
		return
	}
	if r.Logger != nil {
		r.Logger.Warn("tier lookup failed", zap.String("tier", tier), zap.Error(err))
	}
}

func decodeEntry(entry *models.CacheEntry, logger *zap.Logger) []models.PriceRecord {
	var records []models.PriceRecord
	if err := json.Unmarshal(entry.Records, &records); err != nil {
		if logger != nil {
			logger.Warn("undecodable cache entry",
				zap.String("cache_key", entry.CacheKey),
				zap.Error(err))
		}
		return nil
	}
	return records
}

func containsFold(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// filterDistrictLoose keeps records whose district loosely contains (either
// direction) the requested one; used after the market filter is dropped.
func filterDistrictLoose(records []models.PriceRecord, district string) []models.PriceRecord {
	district = strings.ToLower(strings.TrimSpace(district))
	if district == "" {
		return records
	}
	out := make([]models.PriceRecord, 0, len(records))
	for _, rec := range records {
		have := strings.ToLower(strings.TrimSpace(rec.District))
		if have == "" {
			continue
		}
		if strings.Contains(have, district) || strings.Contains(district, have) {
			out = append(out, rec)
		}
	}
	return out
}

func filterSince(records []models.PriceRecord, from time.Time) []models.PriceRecord {
	out := make([]models.PriceRecord, 0, len(records))
	for _, rec := range records {
		if !rec.ArrivalDate.Before(from) {
			out = append(out, rec)
		}
	}
	return out
}

func latestArrival(records []models.PriceRecord) time.Time {
	var latest time.Time
	for _, rec := range records {
		if rec.ArrivalDate.After(latest) {
			latest = rec.ArrivalDate
		}
	}
	return latest
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
