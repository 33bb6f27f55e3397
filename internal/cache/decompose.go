// Package cache persists resolved query results and fans broad results out
// into narrower per-(commodity, location) entries so later queries can reuse
// fragments.
package cache

import (
	"strings"

	"mandi/internal/models"
	"mandi/internal/normalizer"
)

// Group is one decomposed slice of a fetch: all records sharing a
// (commodity, district, state) triple, keyed for independent reuse.
type Group struct {
	Key     string
	Query   models.Query
	Records []models.PriceRecord
}

// Decompose groups records by (commodity, district, state) and derives a
// cache key for each group, carrying over the original query's date anchor.
// Groups whose key equals originalKey are dropped: the literal entry already
// covers them. Group order follows first appearance in records.
func Decompose(originalKey string, date string, records []models.PriceRecord) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range records {
		q := models.Query{
			Commodity: r.Commodity,
			State:     r.State,
			District:  r.District,
			Date:      date,
		}
		key := normalizer.CacheKey(q)
		if key == originalKey {
			continue
		}
		if i, ok := index[key]; ok {
			groups[i].Records = append(groups[i].Records, r)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Query: q, Records: []models.PriceRecord{r}})
	}
	return groups
}

// FilterScope keeps only records whose district and market case-insensitively
// contain the requested substrings. A provider or fuzzy-corrected fetch may
// return a superset; only the matching subset belongs under the literal
// query's key.
func FilterScope(q models.Query, records []models.PriceRecord) []models.PriceRecord {
	district := strings.ToLower(strings.TrimSpace(q.District))
	market := strings.ToLower(strings.TrimSpace(q.Market))
	if district == "" && market == "" {
		return records
	}
	out := make([]models.PriceRecord, 0, len(records))
	for _, r := range records {
		if district != "" && !strings.Contains(strings.ToLower(r.District), district) {
			continue
		}
		if market != "" && !strings.Contains(strings.ToLower(r.Market), market) {
			continue
		}
		out = append(out, r)
	}
	return out
}
