// Package hours resolves a reporting day's store hours into the interval in
// which revenue is counted.
package hours

import (
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// Interval is a half-open [Start, End) span in UTC.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// ActiveWindow returns the counting interval of the reporting day starting at
// dayStart, or false when the store is closed that day.
//
// Open and close are placed on dayStart's local date. A close at or before
// open lands on the following date, so open == close yields a full day.
// BufferMinutes extends the end to catch late-settling transactions.
func ActiveWindow(dayStart time.Time, loc *time.Location, s calendar.DaySchedule) (Interval, bool, error) {
	if s.Closed {
		return Interval{}, false, nil
	}
	if s.BufferMinutes < 0 {
		return Interval{}, false, fmt.Errorf("%w: negative buffer %d", domain.ErrInvalidScheduleEntry, s.BufferMinutes)
	}
	openAt, closeAt, err := s.Minutes()
	if err != nil {
		return Interval{}, false, err
	}

	y, m, d := dayStart.In(loc).Date()
	closeDay := d
	if closeAt <= openAt {
		closeDay++
	}
	open := time.Date(y, m, d, 0, openAt, 0, 0, loc)
	end := time.Date(y, m, closeDay, 0, closeAt, 0, 0, loc).
		Add(time.Duration(s.BufferMinutes) * time.Minute)
	return Interval{Start: open.UTC(), End: end.UTC()}, true, nil
}

// ForDay resolves the active interval using the schedule of dayStart's weekday.
func ForDay(cal *calendar.Calendar, dayStart time.Time) (Interval, bool, error) {
	y, m, d := cal.ReportingDate(dayStart)
	wd := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Weekday()
	return ActiveWindow(dayStart, cal.Location(), cal.Schedule(wd))
}

// Intervals returns the active intervals of every reporting day overlapping w,
// plus the day before, whose overnight hours may spill into w.
func Intervals(cal *calendar.Calendar, w window.Window) ([]Interval, error) {
	days := w.Days(cal)
	if len(days) > 0 {
		y, m, d := cal.ReportingDate(days[0])
		days = append([]time.Time{cal.DayStartOf(y, m, d-1)}, days...)
	}
	var out []Interval
	for _, day := range days {
		iv, open, err := ForDay(cal, day)
		if err != nil {
			return nil, err
		}
		if open {
			out = append(out, iv)
		}
	}
	return out, nil
}

// Filter keeps the records inside w that also fall within store hours of
// some reporting day. The input slice is not modified.
func Filter[R domain.Timestamped](records []R, w window.Window, cal *calendar.Calendar) ([]R, error) {
	ivs, err := Intervals(cal, w)
	if err != nil {
		return nil, err
	}
	out := make([]R, 0, len(records))
	for _, r := range records {
		ts := r.Timestamp()
		if !w.Contains(ts) {
			continue
		}
		for _, iv := range ivs {
			if iv.Contains(ts) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}
