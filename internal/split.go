package internal

import "time"

type Span struct {
	Start time.Time
	End   time.Time
}

// SplitDays cuts [start, end) at local midnights of loc. Spans of a day or
// less are returned untouched, so an event ending exactly at midnight never
// produces an empty trailing day.
func SplitDays(start, end time.Time, loc *time.Location) []Span {
	if end.Sub(start) <= 24*time.Hour {
		return []Span{{Start: start, End: end}}
	}
	if loc == nil {
		loc = time.UTC
	}

	var spans []Span
	cur := start
	for {
		l := cur.In(loc)
		midnight := time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, loc)
		if !midnight.Before(end) {
			spans = append(spans, Span{Start: cur, End: end})
			return spans
		}
		spans = append(spans, Span{Start: cur, End: midnight.In(start.Location())})
		cur = midnight.In(start.Location())
	}
}
