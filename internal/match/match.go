// Package match scores market-name similarity and selects the best candidate
// above an acceptance threshold. It is stateless and knows nothing about
// where candidates come from.
package match

import "strings"

const (
	// DefaultThreshold is the minimum name similarity for a bare match.
	DefaultThreshold = 0.70
	// ScopedThreshold applies when the match must also respect a claimed
	// district/state.
	ScopedThreshold = 0.75
	// LocalityBonus is added to the score of a candidate whose district or
	// state agrees with the query. The raw name similarity must clear
	// DefaultThreshold on its own before the bonus applies.
	LocalityBonus = 0.05
)

// MarketCandidate is a transient scoring result; it is never persisted.
type MarketCandidate struct {
	Name     string  `json:"name"`
	District string  `json:"district,omitempty"`
	State    string  `json:"state,omitempty"`
	Score    float64 `json:"score"`
}

// Candidate is one market name with its location, as found in a store.
type Candidate struct {
	Name     string
	District string
	State    string
}

// Similarity is 1 - editDistance/maxLen, case-insensitive, in [0,1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	max := la
	if lb > max {
		max = lb
	}
	return 1 - float64(editDistance(a, b))/float64(max)
}

// Match returns the single best candidate whose similarity to requested is
// at least threshold, or nil when none qualifies. Ties keep the first-seen
// candidate.
func Match(requested string, candidates []string, threshold float64) *MarketCandidate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	var best *MarketCandidate
	for _, name := range candidates {
		score := Similarity(requested, name)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &MarketCandidate{Name: name, Score: score}
		}
	}
	return best
}

// MatchScoped matches against located candidates. A candidate must first
// clear DefaultThreshold on name similarity alone; agreement on district or
// state then adds LocalityBonus, and the boosted score must reach
// ScopedThreshold to be accepted.
func MatchScoped(requested string, candidates []Candidate, district, state string) *MarketCandidate {
	var best *MarketCandidate
	for _, c := range candidates {
		name := Similarity(requested, c.Name)
		if name < DefaultThreshold {
			continue
		}
		score := name
		if localityAgrees(c, district, state) {
			score += LocalityBonus
			if score > 1 {
				score = 1
			}
		}
		if score < ScopedThreshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &MarketCandidate{Name: c.Name, District: c.District, State: c.State, Score: score}
		}
	}
	return best
}

func localityAgrees(c Candidate, district, state string) bool {
	if district != "" && strings.EqualFold(strings.TrimSpace(c.District), strings.TrimSpace(district)) {
		return true
	}
	if state != "" && strings.EqualFold(strings.TrimSpace(c.State), strings.TrimSpace(state)) {
		return true
	}
	return false
}

// editDistance is the classic Levenshtein distance over runes, two-row DP.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
