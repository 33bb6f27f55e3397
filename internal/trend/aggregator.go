// Package trend aggregates daily prices over a bounded window into
// direction, strength and volatility summaries. It gathers one day at a
// time so every fetched day lands in the persistent cache and later windows
// stay cheap.
package trend

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mandi/internal/models"
	"mandi/internal/normalizer"
	"mandi/internal/repository"
	"mandi/internal/resolver"
)

const (
	// MaxWindowDays caps the trend window; wider windows mean one upstream
	// call per missing day.
	MaxWindowDays     = 30
	DefaultWindowDays = 7

	defaultBatchSize = 7
)

// ErrInsufficientData reports fewer than two days with observations in the
// window; a single day cannot carry a direction.
var ErrInsufficientData = errors.New("not enough days with data for a trend")

// DayResolver probes one specific calendar day.
type DayResolver interface {
	ResolveForDate(ctx context.Context, q models.Query, day time.Time) (resolver.Result, bool)
}

// Point is one day's aggregate within a trend window.
type Point struct {
	Date     time.Time       `json:"date"`
	AvgModal decimal.Decimal `json:"avg_modal_price"`
	MinPrice decimal.Decimal `json:"min_price"`
	MaxPrice decimal.Decimal `json:"max_price"`
	Records  int             `json:"records"`
	// FromCache marks days served from the persistent cache rather than a
	// fresh resolution.
	FromCache bool `json:"from_cache"`
}

// CommodityTrend is the full analysis for one commodity in one scope.
type CommodityTrend struct {
	Commodity string `json:"commodity"`
	State     string `json:"state,omitempty"`
	District  string `json:"district,omitempty"`
	Market    string `json:"market,omitempty"`

	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Points       []Point `json:"points"`
	DaysWithData int     `json:"days_with_data"`
	CachedDays   int     `json:"cached_days"`

	// PriceChange is the newest daily average minus the oldest.
	PriceChange decimal.Decimal `json:"price_change"`
	ChangePct   float64         `json:"change_pct"`
	Direction   string          `json:"direction"`
	Strength    string          `json:"strength"`
	Volatility  float64         `json:"volatility"`

	Peak   Point `json:"peak"`
	Trough Point `json:"trough"`
}

// CommoditySummary is the compact per-commodity row of a market-wide trend.
type CommoditySummary struct {
	Commodity    string          `json:"commodity"`
	DaysWithData int             `json:"days_with_data"`
	LatestAvg    decimal.Decimal `json:"latest_avg_modal"`
	ChangePct    float64         `json:"change_pct"`
	Direction    string          `json:"direction"`
	Strength     string          `json:"strength"`
}

// MarketWideTrend summarizes every commodity observed in a location window.
type MarketWideTrend struct {
	State    string    `json:"state,omitempty"`
	District string    `json:"district,omitempty"`
	Market   string    `json:"market,omitempty"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`

	Commodities []CommoditySummary `json:"commodities"`
}

type Options struct {
	WindowDays int
	BatchSize  int
}

type Aggregator struct {
	Days   DayResolver
	Cache  repository.CacheRepository
	Logger *zap.Logger
	Opts   Options

	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

// CommodityTrend analyzes one commodity over the trailing window ending
// today. days <= 0 uses the default window; the cap always applies.
func (a *Aggregator) CommodityTrend(ctx context.Context, q models.Query, days int) (*CommodityTrend, error) {
	if strings.TrimSpace(q.Commodity) == "" {
		return nil, errors.New("commodity is required for a commodity trend")
	}
	from, to := a.window(days)
	daily := a.gather(ctx, q, from, to)

	points := make([]Point, 0, len(daily))
	cached := 0
	for _, d := range sortedDays(daily) {
		day := daily[d]
		p := dayPoint(d, day.records)
		p.FromCache = day.fromCache
		if day.fromCache {
			cached++
		}
		points = append(points, p)
	}
	if len(points) < 2 {
		return nil, ErrInsufficientData
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.AvgModal.InexactFloat64()
	}
	change := pctChange(values[0], values[len(values)-1])

	peak, trough := points[0], points[0]
	for _, p := range points[1:] {
		if p.AvgModal.GreaterThan(peak.AvgModal) {
			peak = p
		}
		if p.AvgModal.LessThan(trough.AvgModal) {
			trough = p
		}
	}

	return &CommodityTrend{
		Commodity:    q.Commodity,
		State:        q.State,
		District:     q.District,
		Market:       q.Market,
		From:         from,
		To:           to,
		Points:       points,
		DaysWithData: len(points),
		CachedDays:   cached,
		PriceChange:  points[len(points)-1].AvgModal.Sub(points[0].AvgModal),
		ChangePct:    change,
		Direction:    direction(change),
		Strength:     strength(change),
		Volatility:   stddev(values),
		Peak:         peak,
		Trough:       trough,
	}, nil
}

// MarketTrend summarizes all commodities seen in a location over the window.
// Commodities with a single observed day are dropped rather than reported
// with a fabricated direction.
func (a *Aggregator) MarketTrend(ctx context.Context, q models.Query, days int) (*MarketWideTrend, error) {
	if !q.HasLocation() {
		return nil, errors.New("a location is required for a market-wide trend")
	}
	q.Commodity = ""
	from, to := a.window(days)
	daily := a.gather(ctx, q, from, to)

	type series struct {
		days map[time.Time][]models.PriceRecord
	}
	byCommodity := map[string]*series{}
	for d, day := range daily {
		for _, rec := range day.records {
			name := strings.TrimSpace(rec.Commodity)
			if name == "" {
				continue
			}
			s, ok := byCommodity[name]
			if !ok {
				s = &series{days: map[time.Time][]models.PriceRecord{}}
				byCommodity[name] = s
			}
			s.days[d] = append(s.days[d], rec)
		}
	}

	summaries := make([]CommoditySummary, 0, len(byCommodity))
	for name, s := range byCommodity {
		if len(s.days) < 2 {
			continue
		}
		dayKeys := make([]time.Time, 0, len(s.days))
		for d := range s.days {
			dayKeys = append(dayKeys, d)
		}
		sort.Slice(dayKeys, func(i, j int) bool { return dayKeys[i].Before(dayKeys[j]) })
		first := dayPoint(dayKeys[0], s.days[dayKeys[0]])
		last := dayPoint(dayKeys[len(dayKeys)-1], s.days[dayKeys[len(dayKeys)-1]])
		change := pctChange(first.AvgModal.InexactFloat64(), last.AvgModal.InexactFloat64())
		summaries = append(summaries, CommoditySummary{
			Commodity:    name,
			DaysWithData: len(s.days),
			LatestAvg:    last.AvgModal,
			ChangePct:    change,
			Direction:    direction(change),
			Strength:     strength(change),
		})
	}
	if len(summaries) == 0 {
		return nil, ErrInsufficientData
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Commodity < summaries[j].Commodity })

	return &MarketWideTrend{
		State:       q.State,
		District:    q.District,
		Market:      q.Market,
		From:        from,
		To:          to,
		Commodities: summaries,
	}, nil
}

// --- gathering -------------------------------------------------------------

type dayData struct {
	records   []models.PriceRecord
	fromCache bool
}

// gather collects per-day records for the window. Cached days are served
// directly; the rest are resolved concurrently in bounded batches.
func (a *Aggregator) gather(ctx context.Context, q models.Query, from, to time.Time) map[time.Time]dayData {
	out := map[time.Time]dayData{}
	var missing []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if records, ok := a.cachedDay(ctx, q, d); ok {
			out[d] = dayData{records: records, fromCache: true}
			continue
		}
		missing = append(missing, d)
	}
	if a.Days == nil {
		return out
	}

	batch := a.Opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	for start := 0; start < len(missing); start += batch {
		end := start + batch
		if end > len(missing) {
			end = len(missing)
		}
		wave := make([][]models.PriceRecord, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(slot int, day time.Time) {
				defer wg.Done()
				if res, ok := a.Days.ResolveForDate(ctx, dayQuery(q, day), day); ok {
					wave[slot] = res.Records
				}
			}(i-start, missing[i])
		}
		wg.Wait()
		for i, records := range wave {
			if len(records) > 0 {
				out[missing[start+i]] = dayData{records: records}
			}
		}
	}
	return out
}

func (a *Aggregator) cachedDay(ctx context.Context, q models.Query, day time.Time) ([]models.PriceRecord, bool) {
	if a.Cache == nil {
		return nil, false
	}
	key := normalizer.CacheKey(dayQuery(q, day))
	entry, err := a.Cache.GetEntry(ctx, key, day)
	if err != nil || entry == nil {
		return nil, false
	}
	var records []models.PriceRecord
	if err := json.Unmarshal(entry.Records, &records); err != nil {
		if a.Logger != nil {
			a.Logger.Warn("undecodable cache entry", zap.String("cache_key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}
	_ = a.Cache.IncrementHit(ctx, entry.ID)
	return records, true
}

// --- helpers ---------------------------------------------------------------

func (a *Aggregator) window(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = a.Opts.WindowDays
	}
	if days <= 0 {
		days = DefaultWindowDays
	}
	if days > MaxWindowDays {
		days = MaxWindowDays
	}
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return to.AddDate(0, 0, -(days - 1)), to
}

func dayQuery(q models.Query, day time.Time) models.Query {
	q.Date = day.Format("2006-01-02")
	return q
}

func dayPoint(day time.Time, records []models.PriceRecord) Point {
	var modalSum, minSum, maxSum decimal.Decimal
	for _, rec := range records {
		modalSum = modalSum.Add(rec.ModalPrice)
		minSum = minSum.Add(rec.MinPrice)
		maxSum = maxSum.Add(rec.MaxPrice)
	}
	n := decimal.NewFromInt(int64(len(records)))
	return Point{
		Date:     day,
		AvgModal: modalSum.Div(n).Round(2),
		MinPrice: minSum.Div(n).Round(2),
		MaxPrice: maxSum.Div(n).Round(2),
		Records:  len(records),
	}
}

func sortedDays(daily map[time.Time]dayData) []time.Time {
	days := make([]time.Time, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
