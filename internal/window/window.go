// Package window resolves reporting presets and explicit ranges into
// half-open UTC intervals anchored to a business calendar.
package window

import (
	"fmt"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

// Preset names a window relative to the current reporting day.
type Preset string

const (
	Today     Preset = "today"
	Yesterday Preset = "yesterday"
	ThisWeek  Preset = "thisWeek"
	LastWeek  Preset = "lastWeek"
	ThisMonth Preset = "thisMonth"
	LastMonth Preset = "lastMonth"
	ThisYear  Preset = "thisYear"
	LastYear  Preset = "lastYear"
	Last7     Preset = "last7"
	Last30    Preset = "last30"
)

var presets = []Preset{Today, Yesterday, ThisWeek, LastWeek, ThisMonth, LastMonth, ThisYear, LastYear, Last7, Last30}

// Presets lists every supported preset.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// ParsePreset matches s against the preset names, ignoring case.
func ParsePreset(s string) (Preset, error) {
	for _, p := range presets {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidPreset, s)
}

// Grain returns the bucket width a preset is reported at.
func (p Preset) Grain() calendar.Grain {
	switch p {
	case Today, Yesterday:
		return calendar.GrainHour
	case ThisYear, LastYear:
		return calendar.GrainMonth
	}
	return calendar.GrainDay
}

// Window is a half-open [Start, End) interval in UTC.
type Window struct {
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Grain  calendar.Grain `json:"grain"`
	Preset Preset         `json:"preset,omitempty"`
}

// Resolve computes the window for p as seen at now. Every preset is relative
// to the start of the reporting day containing now; "this" periods run to
// the end of the current reporting day, "last" periods cover the whole
// previous period. today and yesterday are always exactly 24h long, even
// across a DST change.
func Resolve(p Preset, now time.Time, cal *calendar.Calendar) (Window, error) {
	y, m, d := cal.ReportingDate(now)
	today := cal.DayStartOf(y, m, d)
	tomorrow := cal.DayStartOf(y, m, d+1)
	// Weeks start on Monday.
	sinceMonday := (int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Weekday()) + 6) % 7

	var start, end time.Time
	switch p {
	case Today:
		start = today
		end = start.Add(24 * time.Hour)
	case Yesterday:
		start = cal.DayStartOf(y, m, d-1)
		end = start.Add(24 * time.Hour)
	case ThisWeek:
		start, end = cal.DayStartOf(y, m, d-sinceMonday), tomorrow
	case LastWeek:
		start, end = cal.DayStartOf(y, m, d-sinceMonday-7), cal.DayStartOf(y, m, d-sinceMonday)
	case ThisMonth:
		start, end = cal.DayStartOf(y, m, 1), tomorrow
	case LastMonth:
		start, end = cal.DayStartOf(y, m-1, 1), cal.DayStartOf(y, m, 1)
	case ThisYear:
		start, end = cal.DayStartOf(y, time.January, 1), tomorrow
	case LastYear:
		start, end = cal.DayStartOf(y-1, time.January, 1), cal.DayStartOf(y, time.January, 1)
	case Last7:
		start, end = cal.DayStartOf(y, m, d-6), tomorrow
	case Last30:
		start, end = cal.DayStartOf(y, m, d-29), tomorrow
	default:
		return Window{}, fmt.Errorf("%w: %q", domain.ErrInvalidPreset, p)
	}
	return Window{Start: start, End: end, Grain: p.Grain(), Preset: p}, nil
}

// Explicit builds a window from caller-chosen bounds. The grain is picked by
// AutoGrain.
func Explicit(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, fmt.Errorf("%w: end %s is not after start %s", domain.ErrInvalidRange,
			end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	return Window{Start: start.UTC(), End: end.UTC(), Grain: AutoGrain(start, end)}, nil
}

// ForDates covers whole reporting days, from the day labelled first through
// the day labelled last. Only the calendar dates of first and last are used.
func ForDates(cal *calendar.Calendar, first, last time.Time) (Window, error) {
	fy, fm, fd := first.Date()
	ly, lm, ld := last.Date()
	return Explicit(cal.DayStartOf(fy, fm, fd), cal.DayStartOf(ly, lm, ld+1))
}

// AutoGrain picks hour for ranges up to a day, day up to 90 days, month beyond.
func AutoGrain(start, end time.Time) calendar.Grain {
	switch d := end.Sub(start); {
	case d <= 24*time.Hour:
		return calendar.GrainHour
	case d <= 90*24*time.Hour:
		return calendar.GrainDay
	default:
		return calendar.GrainMonth
	}
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Previous returns the window of equal length ending where w starts.
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start, Grain: w.Grain}
}

// Days returns the start of every reporting day overlapping w, in order.
func (w Window) Days(cal *calendar.Calendar) []time.Time {
	var days []time.Time
	for day := cal.DayStart(w.Start); day.Before(w.End); {
		days = append(days, day)
		y, m, d := cal.ReportingDate(day)
		day = cal.DayStartOf(y, m, d+1)
	}
	return days
}
