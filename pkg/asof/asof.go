// Package asof answers "is this record effective on day X" for records
// carrying a [start, end] interval of UTC calendar days.
package asof

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical on-disk and on-wire day format.
const Layout = "2006-01-02"

var ErrInvalidDate = errors.New("asof: invalid date")

var nowUTC = func() time.Time { return time.Now().UTC() }

// Interval is implemented by memberships, manager edges and role grants.
type Interval interface {
	EffectiveInterval() (start string, end *string)
}

// IsEffective reports whether r's interval contains asOf. Both bounds are inclusive.
func IsEffective(r Interval, asOf string) bool {
	start, end := r.EffectiveInterval()
	return InRange(start, end, asOf)
}

// InRange compares normalized day strings. An empty start is treated as open.
func InRange(start string, end *string, asOf string) bool {
	if start != "" && start > asOf {
		return false
	}
	if end != nil && *end != "" && *end < asOf {
		return false
	}
	return true
}

func Today() string {
	return nowUTC().Format(Layout)
}

func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse accepts either a day ("2024-06-01") or an RFC 3339 timestamp and
// returns midnight UTC of the day it falls on in UTC.
func Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(Layout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Normalize returns raw as a canonical UTC day string.
func Normalize(raw string) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Format(Layout), nil
}

// NormalizePtr is Normalize for nullable end dates; nil and "" stay nil.
func NormalizePtr(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v, err := Normalize(*raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func AddDays(day string, n int) (string, error) {
	t, err := Parse(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}

func DayBefore(day string) (string, error) {
	return AddDays(day, -1)
}

// EnumerateDays lists every day in [from, to]. It returns nil when from > to.
func EnumerateDays(from, to string) ([]string, error) {
	start, err := Parse(from)
	if err != nil {
		return nil, err
	}
	end, err := Parse(to)
	if err != nil {
		return nil, err
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(Layout))
	}
	return out, nil
}

// ISOWeekRange maps "2024W05" (or "2024-W05") to the Monday and Sunday of that ISO week.
func ISOWeekRange(week string) (from, to string, err error) {
	raw := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(week), "-", ""))
	var year, wk int
	if _, scanErr := fmt.Sscanf(raw, "%4dW%2d", &year, &wk); scanErr != nil || wk < 1 || wk > 53 {
		return "", "", fmt.Errorf("%w: week %q", ErrInvalidDate, week)
	}
	// Jan 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(wk-1)*7)
	if _, w := monday.ISOWeek(); w != wk {
		return "", "", fmt.Errorf("%w: week %q", ErrInvalidDate, week)
	}
	return monday.Format(Layout), monday.AddDate(0, 0, 6).Format(Layout), nil
}
