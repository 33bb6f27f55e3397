// Package normalizer turns raw queries into canonical cache keys and
// provider/database filter values. Everything here is pure: identical input
// (modulo case and whitespace) always yields identical output.
package normalizer

import (
	"strings"

	"mandi/internal/models"
)

// Filters is one set of filter values for a single backend.
type Filters struct {
	Commodity string
	State     string
	District  string
	Market    string
}

// FilterSet carries the same query filters shaped for each backend: the
// external provider wants title-cased exact values, the database wants
// lowercase substrings for case-insensitive partial matching.
type FilterSet struct {
	Provider Filters
	DB       Filters
}

// Normalize derives the canonical cache key and per-backend filters from a
// query. Absent fields are omitted from the key (their position is kept
// empty so distinct filter combinations never collide).
func Normalize(q models.Query) (string, FilterSet) {
	return CacheKey(q), FilterSetFor(q)
}

// CacheKey is deterministic and case/whitespace-insensitive. Segments are
// ordered commodity, state, district, market, date and joined with "|",
// which normalization guarantees cannot appear inside a segment.
func CacheKey(q models.Query) string {
	return strings.Join([]string{
		Token(q.Commodity),
		Token(q.State),
		Token(q.District),
		Token(q.Market),
		Token(q.Date),
	}, "|")
}

func FilterSetFor(q models.Query) FilterSet {
	return FilterSet{
		Provider: Filters{
			Commodity: TitleCase(q.Commodity),
			State:     TitleCase(q.State),
			District:  TitleCase(q.District),
			Market:    TitleCase(q.Market),
		},
		DB: Filters{
			Commodity: squeeze(q.Commodity),
			State:     squeeze(q.State),
			District:  squeeze(q.District),
			Market:    squeeze(q.Market),
		},
	}
}

// Token lowercases, collapses whitespace runs into single hyphens and strips
// everything outside [a-z0-9-].
func Token(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	hyphen := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '-' || r == '_':
			if b.Len() > 0 && !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			hyphen = false
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// TitleCase title-cases each whitespace-separated word; the provider's
// filter matching is exact and its values are stored title-cased.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// squeeze lowercases and collapses interior whitespace; the result is used
// as a case-insensitive substring for database filters.
func squeeze(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
