package analytics

import "time"

// dayKeyLayout is the canonical calendar-day key format.
const dayKeyLayout = "2006-01-02"

// DayKey converts an absolute instant into the organization-local calendar
// day key. The organization's zone decides the day boundary, not the process
// environment, so a 00:30 UTC instant can land on the previous day in
// America/New_York. A nil location falls back to UTC.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayKeyLayout)
}

// BucketByDay groups items by their organization-local day key, preserving
// arrival order within each bucket. Items with a zero timestamp (unparseable
// upstream) are dropped entirely rather than collected into an unknown
// bucket.
//
// Every aggregation path, canonical or filtered, must go through this
// function so day totals agree exactly when no filter is active.
func BucketByDay[T any](items []T, at func(T) time.Time, loc *time.Location) map[string][]T {
	buckets := make(map[string][]T)
	for _, item := range items {
		ts := at(item)
		if ts.IsZero() {
			continue
		}
		key := DayKey(ts, loc)
		buckets[key] = append(buckets[key], item)
	}
	return buckets
}
