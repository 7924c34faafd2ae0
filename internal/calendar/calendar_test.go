package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

func newYork(t *testing.T, offset int) *Calendar {
	t.Helper()
	cal, err := New(Config{Timezone: "America/New_York", ReportingOffsetMinutes: offset, Days: AlwaysOpen()})
	require.NoError(t, err)
	return cal
}

func TestNew_Validation(t *testing.T) {
	sixDays := AlwaysOpen()[:6]
	dup := append(AlwaysOpen()[:6], DaySchedule{Weekday: 0, Open: "09:00", Close: "17:00"})
	badClock := AlwaysOpen()
	badClock[2].Open = "25:00"
	negBuffer := AlwaysOpen()
	negBuffer[4].BufferMinutes = -5

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid", Config{Timezone: "UTC", Days: AlwaysOpen()}, nil},
		{"missing timezone", Config{Days: AlwaysOpen()}, domain.ErrInvalidCalendar},
		{"unknown timezone", Config{Timezone: "Mars/Olympus", Days: AlwaysOpen()}, domain.ErrInvalidCalendar},
		{"negative offset", Config{Timezone: "UTC", ReportingOffsetMinutes: -1, Days: AlwaysOpen()}, domain.ErrInvalidCalendar},
		{"offset a full day", Config{Timezone: "UTC", ReportingOffsetMinutes: 1440, Days: AlwaysOpen()}, domain.ErrInvalidCalendar},
		{"missing weekday", Config{Timezone: "UTC", Days: sixDays}, domain.ErrInvalidScheduleEntry},
		{"duplicate weekday", Config{Timezone: "UTC", Days: dup}, domain.ErrInvalidScheduleEntry},
		{"weekday out of range", Config{Timezone: "UTC", Days: append(AlwaysOpen(), DaySchedule{Weekday: 7})}, domain.ErrInvalidScheduleEntry},
		{"malformed clock", Config{Timezone: "UTC", Days: badClock}, domain.ErrInvalidScheduleEntry},
		{"negative buffer", Config{Timezone: "UTC", Days: negBuffer}, domain.ErrInvalidScheduleEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := New(tt.cfg)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, cal)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsInputError(err))
		})
	}
}

func TestReportingDate_Offset(t *testing.T) {
	cal := newYork(t, 120)

	// 01:30 EST on March 5 is still the March 4 reporting day.
	y, m, d := cal.ReportingDate(time.Date(2025, 3, 5, 6, 30, 0, 0, time.UTC))
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.March, m)
	assert.Equal(t, 4, d)

	// 02:00 EST starts March 5.
	_, _, d = cal.ReportingDate(time.Date(2025, 3, 5, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 5, d)

	assert.Equal(t, time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC), cal.DayStart(time.Date(2025, 3, 5, 6, 30, 0, 0, time.UTC)))
}

func TestTruncate(t *testing.T) {
	cal := newYork(t, 120)
	ts := time.Date(2025, 3, 5, 6, 45, 12, 500, time.UTC) // 01:45:12 EST

	tests := []struct {
		grain Grain
		want  time.Time
	}{
		{GrainHour, time.Date(2025, 3, 5, 6, 0, 0, 0, time.UTC)},
		{GrainDay, time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC)},
		{GrainMonth, time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.grain), func(t *testing.T) {
			got, err := cal.Truncate(ts, tt.grain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := cal.Truncate(ts, Grain("week"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedGrain)
}

func TestTruncate_MonthBeforeOffset(t *testing.T) {
	cal := newYork(t, 120)
	// 01:00 EST on April 1 still belongs to March.
	got, err := cal.Truncate(time.Date(2025, 4, 1, 5, 0, 0, 0, time.UTC), GrainMonth)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC), got)
}

func TestStep(t *testing.T) {
	cal := newYork(t, 0)

	// Day steps keep local midnight across the spring-forward gap.
	start := cal.DayStartOf(2025, 3, 9)
	next, err := cal.Step(start, GrainDay)
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, next.Sub(start))

	next, err = cal.Step(cal.DayStartOf(2025, 1, 31), GrainMonth)
	require.NoError(t, err)
	assert.Equal(t, cal.DayStartOf(2025, 2, 1), next)

	next, err = cal.Step(start, GrainHour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, next.Sub(start))

	_, err = cal.Step(start, Grain("fortnight"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedGrain)
}

func TestParseGrain(t *testing.T) {
	g, err := ParseGrain(" Day ")
	require.NoError(t, err)
	assert.Equal(t, GrainDay, g)

	_, err = ParseGrain("week")
	assert.ErrorIs(t, err, domain.ErrUnsupportedGrain)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9:30", 0, true},
		{"09:60", 0, true},
		{"", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidScheduleEntry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaySchedule_CrossesMidnight(t *testing.T) {
	assert.True(t, DaySchedule{Open: "17:00", Close: "01:00"}.CrossesMidnight())
	assert.True(t, DaySchedule{Open: "00:00", Close: "00:00"}.CrossesMidnight())
	assert.False(t, DaySchedule{Open: "09:00", Close: "17:00"}.CrossesMidnight())
	assert.False(t, DaySchedule{Open: "bad", Close: "17:00"}.CrossesMidnight())
}
