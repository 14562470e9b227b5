package utils

import "time"

// DayBucket truncates t to UTC midnight. Trend data points are keyed
// by this bucket.
func DayBucket(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekBucket truncates t to the UTC midnight of its ISO week's Monday.
func WeekBucket(t time.Time) time.Time {
	day := DayBucket(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
