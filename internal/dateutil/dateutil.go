// Package dateutil converts between calendar dates and YYYY-MM-DD strings.
//
// All arithmetic works on local year/month/day components. Nothing here
// converts through UTC, so a date never shifts by a day near midnight in
// zones with a negative offset.
package dateutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned for strings that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// DateToString formats t as YYYY-MM-DD using its local components.
func DateToString(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// ParseDate builds local midnight for a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}

	year, month, day := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local), nil
}

// AddDays shifts a YYYY-MM-DD string by n calendar days. n may be negative.
func AddDays(s string, n int) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return DateToString(addDays(t, n)), nil
}

// NextMonday returns the Monday strictly after from. A Monday yields the
// following Monday, never the same day.
func NextMonday(from time.Time) string {
	dow := int(from.Weekday())

	var days int
	if dow == 0 {
		days = 1
	} else {
		days = (8 - dow) % 7
		if days == 0 {
			days = 7
		}
	}

	return DateToString(addDays(from, days))
}

// MondayOfWeek returns the Monday on or before from.
func MondayOfWeek(from time.Time) string {
	dow := int(from.Weekday())

	back := dow - 1
	if dow == 0 {
		back = 6
	}

	return DateToString(addDays(from, -back))
}

// FormatDateString renders a YYYY-MM-DD string with a time layout for display.
// Unparseable input is returned unchanged.
func FormatDateString(s, layout string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format(layout)
}

// WeekdayIndex returns the Monday-based index of a date: 0=Monday..6=Sunday.
func WeekdayIndex(s string) (int, error) {
	t, err := ParseDate(s)
	if err != nil {
		return 0, err
	}
	return (int(t.Weekday()) + 6) % 7, nil
}

// DayName returns the English weekday label for a date, or "" when it does not parse.
func DayName(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}

// WeekDates returns n consecutive dates starting at start.
func WeekDates(start string, n int) ([]string, error) {
	t, err := ParseDate(start)
	if err != nil {
		return nil, err
	}

	dates := make([]string, n)
	for i := range dates {
		dates[i] = DateToString(addDays(t, i))
	}
	return dates, nil
}

func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
