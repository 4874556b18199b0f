package timerange

import (
	"fmt"
	"time"
)

type unit int

const (
	unitMillisecond unit = iota
	unitSecond
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

func readUnit(s string) (unit, string, error) {
	if len(s) >= 2 && s[:2] == "ms" {
		return unitMillisecond, s[2:], nil
	}
	if s == "" {
		return 0, "", fmt.Errorf("missing unit")
	}
	switch s[0] {
	case 's':
		return unitSecond, s[1:], nil
	case 'm':
		return unitMinute, s[1:], nil
	case 'h', 'H':
		return unitHour, s[1:], nil
	case 'd':
		return unitDay, s[1:], nil
	case 'w':
		return unitWeek, s[1:], nil
	case 'M':
		return unitMonth, s[1:], nil
	case 'y':
		return unitYear, s[1:], nil
	}
	return 0, "", fmt.Errorf("unknown unit %q", s[:1])
}

func addUnits(t time.Time, n int, u unit) time.Time {
	switch u {
	case unitMillisecond:
		return t.Add(time.Duration(n) * time.Millisecond)
	case unitSecond:
		return t.Add(time.Duration(n) * time.Second)
	case unitMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case unitHour:
		return t.Add(time.Duration(n) * time.Hour)
	case unitDay:
		return t.AddDate(0, 0, n)
	case unitWeek:
		return t.AddDate(0, 0, 7*n)
	case unitMonth:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(n, 0, 0)
	}
}

// startOf truncates t to the beginning of its unit in t's location. Weeks
// start on Monday.
func startOf(t time.Time, u unit) time.Time {
	loc := t.Location()
	y, mo, d := t.Date()
	switch u {
	case unitMillisecond:
		return t.Truncate(time.Millisecond)
	case unitSecond:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	case unitMinute:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, loc)
	case unitHour:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
	case unitDay:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case unitWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
	case unitMonth:
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	}
}

// endOf returns the last millisecond of t's unit.
func endOf(t time.Time, u unit) time.Time {
	if u == unitMillisecond {
		return startOf(t, u)
	}
	return addUnits(startOf(t, u), 1, u).Add(-time.Millisecond)
}
