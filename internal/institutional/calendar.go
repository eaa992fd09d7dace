package institutional

import "time"

// DataFloor is the earliest date Fetch accepts.
var DataFloor = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// truncateDay returns midnight of t's calendar date in t's location.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Weekdays returns every Monday to Friday in [start, end], inclusive, in
// ascending order. Exchange holidays are not known and are included.
func Weekdays(start, end time.Time) []time.Time {
	start, end = truncateDay(start), truncateDay(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		days = append(days, d)
	}
	return days
}

// beforeFloor compares calendar dates, ignoring location offsets.
func beforeFloor(t time.Time) bool {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Before(DataFloor)
}
