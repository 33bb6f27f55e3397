package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDateAnchor(t *testing.T) {
	tests := []struct {
		in       string
		wantKind DateKind
		wantErr  bool
	}{
		{"", DateNone, false},
		{"  ", DateNone, false},
		{"2024", DateYear, false},
		{"2024-03", DateYearMonth, false},
		{"2024-06-15", DateExact, false},
		{"15/06/2024", DateNone, true},
		{"2024-13", DateNone, true},
		{"june 2024", DateNone, true},
	}
	for _, tt := range tests {
		got, err := ParseDateAnchor(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDateAnchor(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDateAnchor(%q): %v", tt.in, err)
			continue
		}
		if got.Kind != tt.wantKind {
			t.Errorf("ParseDateAnchor(%q).Kind = %v, want %v", tt.in, got.Kind, tt.wantKind)
		}
	}
}

func TestParseDateAnchorFields(t *testing.T) {
	got, err := ParseDateAnchor("2024-06-15")
	if err != nil {
		t.Fatalf("ParseDateAnchor: %v", err)
	}
	if got.Year != 2024 || got.Month != time.June || got.Day.Day() != 15 {
		t.Fatalf("unexpected anchor: %+v", got)
	}
}

func TestHasLocation(t *testing.T) {
	if (Query{Commodity: "Tomato"}).HasLocation() {
		t.Fatal("commodity alone is not a location")
	}
	if !(Query{Market: " Adoni "}).HasLocation() {
		t.Fatal("market counts as a location")
	}
}

func TestDedupeRecords(t *testing.T) {
	day := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	first := PriceRecord{
		Commodity: "Tomato", State: "Andhra Pradesh", District: "Kurnool",
		Market: "Adoni", ArrivalDate: day, ModalPrice: decimal.NewFromInt(2500),
	}
	duplicate := first
	duplicate.ModalPrice = decimal.NewFromInt(9999)
	caseVariant := first
	caseVariant.Market = "ADONI"
	other := first
	other.Variety = "Hybrid"

	out := DedupeRecords([]PriceRecord{first, duplicate, caseVariant, other})
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	// First occurrence wins.
	if !out[0].ModalPrice.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("duplicate replaced the original: %v", out[0].ModalPrice)
	}
	if out[1].Variety != "Hybrid" {
		t.Fatalf("distinct variety dropped: %+v", out[1])
	}
}
