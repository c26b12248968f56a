package facet

import (
	"fmt"
	"time"

	"github.com/joshuajonah/xapian-haystack/internal/domain/search/result"
)

// CountFields tallies the distinct observed values of each named field over
// the records. Buckets appear in first-observation order. Records without a
// value for a field do not contribute to it.
func CountFields(records []result.Record, fields []string) map[string][]FieldBucket {
	counts := make(map[string][]FieldBucket, len(fields))
	for _, field := range fields {
		var buckets []FieldBucket
		seen := make(map[string]int)
		for _, rec := range records {
			v, ok := rec.Fields[field]
			if !ok || v == nil {
				continue
			}
			key := fmt.Sprint(v)
			if i, ok := seen[key]; ok {
				buckets[i].Count++
				continue
			}
			seen[key] = len(buckets)
			buckets = append(buckets, FieldBucket{Value: v, Count: 1})
		}
		counts[field] = buckets
	}
	return counts
}

// CountDates tallies each named field into its bucket sequence. Buckets
// cover Start up to but not including End and are returned newest first;
// a record falls into the latest bucket whose start its value strictly
// exceeds. Values at or before the first bucket start are not counted.
func CountDates(records []result.Record, options map[string]DateOptions) map[string][]DateBucket {
	counts := make(map[string][]DateBucket, len(options))
	for field, opts := range options {
		buckets := dateBuckets(opts)
		for _, rec := range records {
			ts, ok := recordTime(rec.Fields[field])
			if !ok {
				continue
			}
			for i := len(buckets) - 1; i >= 0; i-- {
				if ts.After(buckets[i].Start) {
					buckets[i].Count++
					break
				}
			}
		}
		// dateBuckets generates oldest first; the reported order is
		// newest first.
		for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
			buckets[i], buckets[j] = buckets[j], buckets[i]
		}
		counts[field] = buckets
	}
	return counts
}

func dateBuckets(opts DateOptions) []DateBucket {
	if opts.GapAmount <= 0 || !opts.End.After(opts.Start) {
		return nil
	}
	var buckets []DateBucket
	for t := opts.Start; t.Before(opts.End); t = step(t, opts.GapBy, opts.GapAmount) {
		buckets = append(buckets, DateBucket{
			Start: t,
			Label: t.Format("2006-01-02T15:04:05"),
		})
	}
	return buckets
}

func step(t time.Time, unit GapUnit, amount int) time.Time {
	switch unit {
	case GapYear:
		return t.AddDate(amount, 0, 0)
	case GapMonth:
		return t.AddDate(0, amount, 0)
	case GapDay:
		return t.AddDate(0, 0, amount)
	case GapHour:
		return t.Add(time.Duration(amount) * time.Hour)
	case GapMinute:
		return t.Add(time.Duration(amount) * time.Minute)
	default:
		return t.Add(time.Duration(amount) * time.Second)
	}
}

func recordTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, val); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
