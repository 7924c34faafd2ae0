// Package calendar models a business's reporting calendar: the IANA zone it
// reports in, the reporting-day offset past local midnight, and its weekly
// store hours. A validated Config compiles into an immutable Calendar that the
// window, hours and aggregate packages use for all local-time arithmetic.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

// MinutesPerDay bounds the reporting offset.
const MinutesPerDay = 24 * 60

// Config is the business calendar as it is stored in settings.
type Config struct {
	Timezone               string        `yaml:"timezone" json:"timezone"`
	ReportingOffsetMinutes int           `yaml:"reporting_offset_minutes" json:"reporting_offset_minutes"`
	Days                   []DaySchedule `yaml:"days" json:"days"`
}

// Calendar is the compiled form of a Config. It is safe for concurrent use.
type Calendar struct {
	cfg    Config
	loc    *time.Location
	offset int
	days   [7]DaySchedule
}

// New validates cfg and compiles it.
func New(cfg Config) (*Calendar, error) {
	if cfg.Timezone == "" {
		return nil, fmt.Errorf("%w: timezone is required", domain.ErrInvalidCalendar)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidCalendar, cfg.Timezone, err)
	}
	if cfg.ReportingOffsetMinutes < 0 || cfg.ReportingOffsetMinutes >= MinutesPerDay {
		return nil, fmt.Errorf("%w: reporting offset %d outside [0, %d)", domain.ErrInvalidCalendar, cfg.ReportingOffsetMinutes, MinutesPerDay)
	}

	c := &Calendar{cfg: cfg, loc: loc, offset: cfg.ReportingOffsetMinutes}
	var seen [7]bool
	for i, d := range cfg.Days {
		if d.Weekday < 0 || d.Weekday > 6 {
			return nil, fmt.Errorf("%w: days[%d]: weekday %d outside 0..6", domain.ErrInvalidScheduleEntry, i, d.Weekday)
		}
		if seen[d.Weekday] {
			return nil, fmt.Errorf("%w: days[%d]: weekday %d listed twice", domain.ErrInvalidScheduleEntry, i, d.Weekday)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("days[%d]: %w", i, err)
		}
		seen[d.Weekday] = true
		c.days[d.Weekday] = d
	}
	for wd, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: missing weekday %d (%s)", domain.ErrInvalidScheduleEntry, wd, time.Weekday(wd))
		}
	}
	return c, nil
}

// Config returns the configuration the calendar was compiled from.
func (c *Calendar) Config() Config { return c.cfg }

// Location returns the business time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// OffsetMinutes returns how far past local midnight a reporting day starts.
func (c *Calendar) OffsetMinutes() int { return c.offset }

// Schedule returns the store hours for a weekday.
func (c *Calendar) Schedule(wd time.Weekday) DaySchedule { return c.days[wd] }

// DayStartOf returns the UTC instant the reporting day labelled y-m-d starts.
// Out-of-range days and months normalize the way time.Date does.
func (c *Calendar) DayStartOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, c.offset, 0, 0, c.loc).UTC()
}

// ReportingDate returns the label of the reporting day containing t.
// With a 02:00 offset, 01:30 local on March 5 belongs to March 4.
func (c *Calendar) ReportingDate(t time.Time) (int, time.Month, int) {
	return c.shifted(t).Date()
}

// DayStart returns the start of the reporting day containing t.
func (c *Calendar) DayStart(t time.Time) time.Time {
	y, m, d := c.ReportingDate(t)
	return c.DayStartOf(y, m, d)
}

// Truncate returns the start of the grain-sized bucket containing t. Buckets
// are anchored to the reporting offset, never to plain local midnight.
func (c *Calendar) Truncate(t time.Time, g Grain) (time.Time, error) {
	s := c.shifted(t)
	switch g {
	case GrainHour:
		into := time.Duration(s.Minute())*time.Minute +
			time.Duration(s.Second())*time.Second +
			time.Duration(s.Nanosecond())
		return t.Add(-into).UTC(), nil
	case GrainDay:
		y, m, d := s.Date()
		return c.DayStartOf(y, m, d), nil
	case GrainMonth:
		y, m, _ := s.Date()
		return c.DayStartOf(y, m, 1), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedGrain, g)
}

// Step returns the bucket start following start. Days and months step in
// calendar terms so DST transitions keep local boundaries.
func (c *Calendar) Step(start time.Time, g Grain) (time.Time, error) {
	switch g {
	case GrainHour:
		return start.Add(time.Hour).UTC(), nil
	case GrainDay:
		y, m, d := c.ReportingDate(start)
		return c.DayStartOf(y, m, d+1), nil
	case GrainMonth:
		y, m, _ := c.ReportingDate(start)
		return c.DayStartOf(y, m+1, 1), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedGrain, g)
}

// shifted moves t into the business zone and back by the offset, so the
// wall-clock date of the result is the reporting-day label.
func (c *Calendar) shifted(t time.Time) time.Time {
	return t.In(c.loc).Add(-time.Duration(c.offset) * time.Minute)
}
