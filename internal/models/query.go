package models

import (
	"fmt"
	"strings"
	"time"
)

// DateKind classifies the date filter of a Query. Each kind triggers a
// different historical search strategy in the resolver.
type DateKind int

const (
	DateNone DateKind = iota
	DateExact
	DateYear
	DateYearMonth
)

// Query is the structured filter tuple the resolver answers. All string
// fields are optional; an empty Date means "most recent".
type Query struct {
	Commodity string `json:"commodity,omitempty"`
	State     string `json:"state,omitempty"`
	District  string `json:"district,omitempty"`
	Market    string `json:"market,omitempty"`

	// Date is either "YYYY", "YYYY-MM" or "YYYY-MM-DD".
	Date string `json:"date,omitempty"`

	Limit int `json:"limit,omitempty"`
}

func (q Query) HasLocation() bool {
	return strings.TrimSpace(q.State) != "" ||
		strings.TrimSpace(q.District) != "" ||
		strings.TrimSpace(q.Market) != ""
}

// DateAnchor is a parsed Query date.
type DateAnchor struct {
	Kind  DateKind
	Year  int
	Month time.Month
	Day   time.Time
}

// ParseDateAnchor parses a Query date string. An empty string yields
// DateNone with no error.
func ParseDateAnchor(s string) (DateAnchor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateAnchor{Kind: DateNone}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return DateAnchor{Kind: DateExact, Year: t.Year(), Month: t.Month(), Day: t}, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return DateAnchor{Kind: DateYearMonth, Year: t.Year(), Month: t.Month()}, nil
	}
	if t, err := time.Parse("2006", s); err == nil {
		return DateAnchor{Kind: DateYear, Year: t.Year()}, nil
	}
	return DateAnchor{}, fmt.Errorf("unrecognized date %q (want YYYY, YYYY-MM or YYYY-MM-DD)", s)
}
