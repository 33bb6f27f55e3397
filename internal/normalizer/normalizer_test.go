package normalizer

import (
	"testing"

	"mandi/internal/models"
)

func TestCacheKeyCaseAndWhitespaceInsensitive(t *testing.T) {
	base := models.Query{Commodity: "Onion", State: "Andhra Pradesh", District: "Kurnool", Market: "Adoni", Date: "2024-06-15"}
	variants := []models.Query{
		{Commodity: "onion", State: "andhra pradesh", District: "kurnool", Market: "adoni", Date: "2024-06-15"},
		{Commodity: "  ONION ", State: "Andhra  Pradesh", District: "KURNOOL ", Market: " Adoni", Date: "2024-06-15"},
		{Commodity: "Onion", State: "andhra_pradesh", District: "Kurnool", Market: "Adoni", Date: "2024-06-15"},
	}
	want := CacheKey(base)
	for _, v := range variants {
		if got := CacheKey(v); got != want {
			t.Fatalf("CacheKey(%+v) = %q, want %q", v, got, want)
		}
	}
}

func TestCacheKeyIdempotent(t *testing.T) {
	q := models.Query{Commodity: "Tomato", District: "Kurnool"}
	first := CacheKey(q)
	if second := CacheKey(q); second != first {
		t.Fatalf("CacheKey not deterministic: %q vs %q", first, second)
	}
}

func TestCacheKeyDistinguishesFieldPositions(t *testing.T) {
	a := CacheKey(models.Query{Commodity: "onion"})
	b := CacheKey(models.Query{State: "onion"})
	if a == b {
		t.Fatalf("commodity-only and state-only keys collided: %q", a)
	}
}

func TestToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Andhra Pradesh", "andhra-pradesh"},
		{"  Bangalore  (Urban)  ", "bangalore-urban"},
		{"ADONI", "adoni"},
		{"", ""},
		{"Onion - Red", "onion-red"},
	}
	for _, tt := range tests {
		if got := Token(tt.in); got != tt.want {
			t.Fatalf("Token(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"andhra pradesh", "Andhra Pradesh"},
		{"ONION", "Onion"},
		{"  green  chilli ", "Green Chilli"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Fatalf("TitleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterSetShapes(t *testing.T) {
	_, fs := Normalize(models.Query{Commodity: "oNiOn", District: " KURNOOL  east "})
	if fs.Provider.Commodity != "Onion" || fs.Provider.District != "Kurnool East" {
		t.Fatalf("provider filters = %+v", fs.Provider)
	}
	if fs.DB.Commodity != "onion" || fs.DB.District != "kurnool east" {
		t.Fatalf("db filters = %+v", fs.DB)
	}
}
