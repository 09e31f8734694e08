package utils

import (
	"sort"
	"time"
)

// SortDates orders acquisition dates in place, ascending unless asc is false,
// and returns the slice for chaining.
func SortDates(dates []time.Time, asc bool) []time.Time {
	sort.Slice(dates, func(i, j int) bool {
		if asc {
			return dates[i].Before(dates[j])
		}
		return dates[j].Before(dates[i])
	})
	return dates
}

// GetSortedKeys returns the date keys of a per-date map in order, so callers
// iterating download or evaluation results report dates chronologically.
func GetSortedKeys[T any](m map[time.Time]T, asc bool) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return SortDates(keys, asc)
}
