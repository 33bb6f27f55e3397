package resolver

import (
	"time"

	"mandi/internal/models"
)

// CandidateDates generates the ordered probe list for a date-anchored query.
//
//   - Year anchor: June 15 then July 1; upstream data is empirically denser
//     mid-year.
//   - Month anchor: the first five calendar days of the month, in order.
//   - Exact anchor: the requested date, then +/-1, +/-2, +/-3 days
//     interleaved nearest-first.
//
// Probing stops at the first date that yields data.
func CandidateDates(anchor models.DateAnchor) []time.Time {
	switch anchor.Kind {
	case models.DateYear:
		return []time.Time{
			time.Date(anchor.Year, time.June, 15, 0, 0, 0, 0, time.UTC),
			time.Date(anchor.Year, time.July, 1, 0, 0, 0, 0, time.UTC),
		}
	case models.DateYearMonth:
		dates := make([]time.Time, 0, 5)
		for day := 1; day <= 5; day++ {
			dates = append(dates, time.Date(anchor.Year, anchor.Month, day, 0, 0, 0, 0, time.UTC))
		}
		return dates
	case models.DateExact:
		base := anchor.Day
		dates := []time.Time{base}
		for offset := 1; offset <= 3; offset++ {
			dates = append(dates,
				base.AddDate(0, 0, offset),
				base.AddDate(0, 0, -offset),
			)
		}
		return dates
	default:
		return nil
	}
}
