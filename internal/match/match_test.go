package match

import (
	"math"
	"testing"
)

func TestSimilaritySelfMatch(t *testing.T) {
	if got := Similarity("Adoni", "adoni"); got != 1 {
		t.Fatalf("self similarity = %v, want 1", got)
	}
}

func TestSimilarityKnownValues(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"adoni", "adonai", 1 - 1.0/6},  // one insertion
		{"adoni", "adoany", 1 - 2.0/6},  // insertion + substitution
		{"kurnool", "kurnool", 1},
		{"zyx", "adoni", 0},
		{"", "adoni", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMatchAcceptsCloseTypo(t *testing.T) {
	got := Match("Adoni", []string{"Kurnool", "Adonai", "Nandyal"}, DefaultThreshold)
	if got == nil || got.Name != "Adonai" {
		t.Fatalf("Match = %+v, want Adonai", got)
	}
	if got.Score < DefaultThreshold {
		t.Fatalf("accepted score %v below threshold", got.Score)
	}
}

func TestMatchRejectsBelowThreshold(t *testing.T) {
	if got := Match("Zyx", []string{"Adoni"}, DefaultThreshold); got != nil {
		t.Fatalf("expected nil for dissimilar name, got %+v", got)
	}
}

func TestMatchSelfIsPerfect(t *testing.T) {
	got := Match("Adoni", []string{"Adoni"}, DefaultThreshold)
	if got == nil || got.Name != "Adoni" || got.Score != 1 {
		t.Fatalf("Match(x, [x]) = %+v, want perfect self match", got)
	}
}

func TestMatchTiesKeepFirstSeen(t *testing.T) {
	// Both candidates are the same edit distance from the request.
	got := Match("adon", []string{"adona", "adonb"}, DefaultThreshold)
	if got == nil || got.Name != "adona" {
		t.Fatalf("tie should keep first-seen candidate, got %+v", got)
	}
}

func TestMatchScopedLocalityBonus(t *testing.T) {
	candidates := []Candidate{
		{Name: "Adonai", District: "Kurnool", State: "Andhra Pradesh"},
	}
	// Name similarity 0.8333 clears the base threshold; the locality bonus
	// lifts it past the scoped threshold.
	got := MatchScoped("Adoni", candidates, "Kurnool", "")
	if got == nil || got.Name != "Adonai" {
		t.Fatalf("MatchScoped = %+v, want Adonai", got)
	}
	if got.Score < ScopedThreshold {
		t.Fatalf("scoped score %v below scoped threshold", got.Score)
	}
}

func TestMatchScopedBonusNeverRescuesWeakName(t *testing.T) {
	// 0.72 scoped score, but the raw name similarity is below the base
	// threshold, so the locality bonus must not apply.
	candidates := []Candidate{
		{Name: "Adoany", District: "Kurnool", State: "Andhra Pradesh"},
	}
	if got := MatchScoped("Adoni", candidates, "Kurnool", "Andhra Pradesh"); got != nil {
		t.Fatalf("expected rejection of weak name similarity, got %+v", got)
	}
}

func TestMatchScopedWithoutLocalityNeedsHigherScore(t *testing.T) {
	// 0.8571: clears both thresholds even with no locality agreement.
	ok := MatchScoped("Nandyal", []Candidate{{Name: "Nandyala", District: "Other"}}, "Kurnool", "")
	if ok == nil {
		t.Fatalf("expected match on name similarity alone")
	}
	// 0.7143: clears the base threshold but not the scoped one, and the
	// district disagrees so no bonus.
	bad := MatchScoped("nandyal", []Candidate{{Name: "nandhyl", District: "Other"}}, "Kurnool", "")
	if s := Similarity("nandyal", "nandhyl"); s < DefaultThreshold || s >= ScopedThreshold {
		t.Fatalf("fixture drifted: similarity %v", s)
	}
	if bad != nil {
		t.Fatalf("expected scoped rejection, got %+v", bad)
	}
}
