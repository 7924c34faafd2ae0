// Package aggregate sums records into dense, grain-sized buckets over a
// reporting window.
package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// MaxBuckets caps how many buckets one call may produce.
const MaxBuckets = 10000

// moneyPlaces is the precision sums are rounded to, once, after summing.
const moneyPlaces = 2

// Bucket is one grain step of an aggregation.
type Bucket struct {
	Start time.Time       `json:"start"`
	Grain calendar.Grain  `json:"grain"`
	Value decimal.Decimal `json:"value"`
}

// Starts lists the bucket starts covering w at grain g. The first start is
// w.Start truncated to g, so explicit windows that begin mid-bucket still line
// up with record keys.
func Starts(w window.Window, g calendar.Grain, cal *calendar.Calendar) ([]time.Time, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedGrain, g)
	}
	if !w.End.After(w.Start) {
		return nil, fmt.Errorf("%w: empty window", domain.ErrInvalidRange)
	}
	t, err := cal.Truncate(w.Start, g)
	if err != nil {
		return nil, err
	}
	var starts []time.Time
	for ; t.Before(w.End); t, _ = cal.Step(t, g) {
		if len(starts) == MaxBuckets {
			return nil, fmt.Errorf("%w: %s over %s needs more than %d buckets",
				domain.ErrUnsupportedGrain, g, w.Duration(), MaxBuckets)
		}
		starts = append(starts, t)
	}
	return starts, nil
}

// Aggregate sums valueOf(record) for every record inside w into buckets of
// grain g. The result holds one bucket per grain step, zero-filled, in order.
// Records are keyed exactly like reporting days: shifted by the calendar's
// offset before truncation.
func Aggregate[R domain.Timestamped](records []R, w window.Window, g calendar.Grain, cal *calendar.Calendar, valueOf func(R) decimal.Decimal) ([]Bucket, error) {
	starts, err := Starts(w, g, cal)
	if err != nil {
		return nil, err
	}

	sums := make(map[int64]decimal.Decimal, len(starts))
	for _, r := range records {
		ts := r.Timestamp()
		if !w.Contains(ts) {
			continue
		}
		key, err := cal.Truncate(ts, g)
		if err != nil {
			return nil, err
		}
		k := key.UnixNano()
		sums[k] = sums[k].Add(valueOf(r))
	}

	buckets := make([]Bucket, len(starts))
	for i, s := range starts {
		buckets[i] = Bucket{Start: s, Grain: g, Value: sums[s.UnixNano()].Round(moneyPlaces)}
	}
	return buckets, nil
}

// Total sums bucket values.
func Total(buckets []Bucket) decimal.Decimal {
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Value)
	}
	return total
}
