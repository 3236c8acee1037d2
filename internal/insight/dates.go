package insight

import (
	"time"

	"mindspend/internal/core"
)

// BuildDateRange returns the ascending date keys of the days-long window
// ending on end's calendar day, in end's location.
func BuildDateRange(days int, end time.Time) []string {
	if days <= 0 {
		return []string{}
	}
	loc := end.Location()
	y, m, d := end.Date()
	dates := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		// noon keeps the day stable across DST transitions
		dates = append(dates, core.DateKey(time.Date(y, m, d-i, 12, 0, 0, 0, loc)))
	}
	return dates
}
