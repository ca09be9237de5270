package domain

import (
	"strings"
	"time"
)

// Weekday is the delivery day of a batch, always one of the seven English day names.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays lists the days in ISO week order (Monday first).
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Weekday) String() string { return string(d) }

func (d Weekday) Valid() bool {
	_, ok := ParseWeekday(string(d))
	return ok
}

// ParseWeekday accepts a day name in any case ("friday", "FRIDAY").
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Weekdays {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

// index returns the zero-based position of the day in an ISO week.
func (d Weekday) index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// WeekStart returns midnight UTC of the Monday of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	today := StartOfDay(t)
	return today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
}

// StartOfDay returns midnight UTC of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, day := t.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// NextDate returns the first date falling on d on or after from's date. A
// day that already passed this week resolves to next week's date.
func (d Weekday) NextDate(from time.Time) time.Time {
	today := StartOfDay(from)
	ahead := (d.index() - (int(today.Weekday())+6)%7 + 7) % 7
	return today.AddDate(0, 0, ahead)
}
