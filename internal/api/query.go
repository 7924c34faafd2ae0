package api

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

const dateLayout = "2006-01-02"

// payoutIn and depositIn accept either a plain date or an RFC 3339 timestamp.
type payoutIn struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	SourcePlatform string          `json:"source_platform"`
}

type depositIn struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID string          `json:"bank_account_id"`
}

// parseDate returns the zero time for an empty string. dateOnly reports a
// YYYY-MM-DD value, which names a reporting day rather than an instant.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, false, nil
}

// recordDate anchors a date-only value at the start of the reporting day it
// names, so it lands in the same windows as that day's transactions.
func (h *Handler) recordDate(s string) (time.Time, error) {
	t, dateOnly, err := parseDate(s)
	if err != nil || !dateOnly {
		return t, err
	}
	return h.eng.Settings().Calendar.DayStartOf(t.Date()), nil
}

// windowFromQuery resolves the window selected by the query string:
//
//	preset=lastWeek
//	from=2025-03-01&to=2025-03-07   whole reporting days, inclusive
//	start=...&end=...               RFC 3339 instants, end exclusive
//
// With no selector the window is today.
func (h *Handler) windowFromQuery(q url.Values) (window.Window, error) {
	preset := q.Get("preset")
	from, to := q.Get("from"), q.Get("to")
	start, end := q.Get("start"), q.Get("end")

	selectors := 0
	for _, set := range []bool{preset != "", from != "" || to != "", start != "" || end != ""} {
		if set {
			selectors++
		}
	}
	if selectors > 1 {
		return window.Window{}, fmt.Errorf("%w: use one of preset, from/to or start/end", domain.ErrInvalidRange)
	}

	switch {
	case from != "" || to != "":
		first, err := time.Parse(dateLayout, from)
		if err != nil {
			return window.Window{}, fmt.Errorf("%w: from %q", domain.ErrInvalidRange, from)
		}
		last, err := time.Parse(dateLayout, to)
		if err != nil {
			return window.Window{}, fmt.Errorf("%w: to %q", domain.ErrInvalidRange, to)
		}
		return h.eng.DatesWindow(first, last)
	case start != "" || end != "":
		s, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return window.Window{}, fmt.Errorf("%w: start %q", domain.ErrInvalidRange, start)
		}
		e, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return window.Window{}, fmt.Errorf("%w: end %q", domain.ErrInvalidRange, end)
		}
		return window.Explicit(s, e)
	case preset != "":
		return h.eng.ResolvePreset(preset)
	default:
		return h.eng.ResolvePreset(string(window.Today))
	}
}
