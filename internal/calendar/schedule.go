package calendar

import (
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

// DaySchedule is the store hours of one weekday (0 = Sunday).
// A close time at or before the open time means the store closes after
// midnight; equal times mean it never closes.
type DaySchedule struct {
	Weekday       int    `yaml:"weekday" json:"weekday"`
	Open          string `yaml:"open" json:"open"`
	Close         string `yaml:"close" json:"close"`
	BufferMinutes int    `yaml:"buffer_minutes" json:"buffer_minutes"`
	Closed        bool   `yaml:"closed" json:"closed"`
}

// Validate checks the entry in isolation.
func (d DaySchedule) Validate() error {
	if d.BufferMinutes < 0 {
		return fmt.Errorf("%w: weekday %d: negative buffer %d", domain.ErrInvalidScheduleEntry, d.Weekday, d.BufferMinutes)
	}
	if d.Closed {
		return nil
	}
	if _, _, err := d.Minutes(); err != nil {
		return err
	}
	return nil
}

// Minutes returns open and close as minutes past local midnight.
func (d DaySchedule) Minutes() (openAt, closeAt int, err error) {
	if openAt, err = ParseClock(d.Open); err != nil {
		return 0, 0, fmt.Errorf("weekday %d open: %w", d.Weekday, err)
	}
	if closeAt, err = ParseClock(d.Close); err != nil {
		return 0, 0, fmt.Errorf("weekday %d close: %w", d.Weekday, err)
	}
	return openAt, closeAt, nil
}

// CrossesMidnight reports whether the close instant falls on the next date.
func (d DaySchedule) CrossesMidnight() bool {
	openAt, closeAt, err := d.Minutes()
	return err == nil && closeAt <= openAt
}

// ParseClock parses a 24h "HH:MM" time of day into minutes past midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != len("15:04") {
		return 0, fmt.Errorf("%w: time of day %q is not HH:MM", domain.ErrInvalidScheduleEntry, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// AlwaysOpen returns a week where every day is a full 24h day without buffer.
func AlwaysOpen() []DaySchedule {
	days := make([]DaySchedule, 7)
	for i := range days {
		days[i] = DaySchedule{Weekday: i, Open: "00:00", Close: "00:00"}
	}
	return days
}
