// Package reconcile pairs platform payouts with bank deposits.
//
// Matching is greedy first-fit: payouts are visited oldest first and each
// takes the oldest remaining deposit within tolerance. It is not a minimum
// cost assignment; ambiguous candidate sets resolve by order. Inputs are sorted
// internally, so the same two sets always produce the same result.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

const (
	DefaultDateToleranceDays = 1
)

// DefaultAmountTolerance is the largest amount difference still matched.
var DefaultAmountTolerance = decimal.NewFromInt(1)

// Options tunes the matcher.
type Options struct {
	// DateToleranceDays is the largest calendar-day distance still matched,
	// inclusive. Negative disables the date check.
	DateToleranceDays int
	// AmountTolerance is the largest absolute amount difference, inclusive.
	AmountTolerance decimal.Decimal
	// MatchedAt stamps every link. Supplied by the caller so reruns over the
	// same input are identical.
	MatchedAt time.Time
	// DateOf labels an instant with its day for the date check and DayDelta.
	// Nil uses the instant's own date.
	DateOf func(time.Time) (int, time.Month, int)
}

// DefaultOptions returns ±1 day and 1.00 amount tolerance.
func DefaultOptions() Options {
	return Options{DateToleranceDays: DefaultDateToleranceDays, AmountTolerance: DefaultAmountTolerance}
}

// Confidence grades a match for auditing.
type Confidence string

const (
	// ConfidenceExact: same amount, same date.
	ConfidenceExact Confidence = "exact"
	// ConfidenceTolerance: paired through at least one tolerance.
	ConfidenceTolerance Confidence = "tolerance"
)

// Link records that a payout settled as a deposit.
type Link struct {
	PayoutID  string    `json:"payout_id"`
	DepositID string    `json:"deposit_id"`
	MatchedAt time.Time `json:"matched_at"`
}

// Match is a link with the evidence it was made on.
type Match struct {
	Link
	Amount      decimal.Decimal `json:"amount"`       // payout amount
	AmountDelta decimal.Decimal `json:"amount_delta"` // deposit - payout
	DayDelta    int             `json:"day_delta"`    // deposit date - payout date
	Confidence  Confidence      `json:"confidence"`
}

// Summary aggregates a reconciliation run.
type Summary struct {
	Payouts           int             `json:"payouts"`
	Deposits          int             `json:"deposits"`
	Matched           int             `json:"matched"`
	UnmatchedPayouts  int             `json:"unmatched_payouts"`
	UnmatchedDeposits int             `json:"unmatched_deposits"`
	MatchedAmount     decimal.Decimal `json:"matched_amount"`
	TotalDiscrepancy  decimal.Decimal `json:"total_discrepancy"`
	MatchRate         decimal.Decimal `json:"match_rate"` // matched / payouts, 0..1
}

// Result is the outcome of Reconcile. Unmatched records are expected output,
// not failures.
type Result struct {
	Matches           []Match                `json:"matches"`
	UnmatchedPayouts  []domain.PayoutRecord  `json:"unmatched_payouts"`
	UnmatchedDeposits []domain.DepositRecord `json:"unmatched_deposits"`
	Summary           Summary                `json:"summary"`
}

// Pairs returns the matched (payout id, deposit id) pairs in match order.
func (r Result) Pairs() [][2]string {
	out := make([][2]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = [2]string{m.PayoutID, m.DepositID}
	}
	return out
}

// Reconcile matches payouts against deposits. Neither input is modified.
// Duplicate ids within either set fail with domain.ErrDuplicateRecordID.
func Reconcile(payouts []domain.PayoutRecord, deposits []domain.DepositRecord, opts Options) (Result, error) {
	if err := checkUnique("payout", payouts, func(p domain.PayoutRecord) string { return p.ID }); err != nil {
		return Result{}, err
	}
	if err := checkUnique("deposit", deposits, func(d domain.DepositRecord) string { return d.ID }); err != nil {
		return Result{}, err
	}

	ps := make([]domain.PayoutRecord, len(payouts))
	copy(ps, payouts)
	sort.Slice(ps, func(i, j int) bool { return before(ps[i].Date, ps[i].ID, ps[j].Date, ps[j].ID) })

	ds := make([]domain.DepositRecord, len(deposits))
	copy(ds, deposits)
	sort.Slice(ds, func(i, j int) bool { return before(ds[i].Date, ds[i].ID, ds[j].Date, ds[j].ID) })

	res := Result{
		Matches:           make([]Match, 0),
		UnmatchedPayouts:  make([]domain.PayoutRecord, 0),
		UnmatchedDeposits: make([]domain.DepositRecord, 0),
	}
	taken := make([]bool, len(ds))

	for _, p := range ps {
		idx := -1
		for i, d := range ds {
			if taken[i] {
				continue
			}
			if withinAmount(p.Amount, d.Amount, opts.AmountTolerance) && withinDays(p.Date, d.Date, opts.DateToleranceDays, opts.DateOf) {
				idx = i
				break
			}
		}
		if idx < 0 {
			res.UnmatchedPayouts = append(res.UnmatchedPayouts, p)
			continue
		}
		taken[idx] = true
		res.Matches = append(res.Matches, newMatch(p, ds[idx], opts))
	}
	for i, d := range ds {
		if !taken[i] {
			res.UnmatchedDeposits = append(res.UnmatchedDeposits, d)
		}
	}

	res.Summary = Summarize(len(ps), len(ds), res.Matches, len(res.UnmatchedPayouts), len(res.UnmatchedDeposits))
	return res, nil
}

func newMatch(p domain.PayoutRecord, d domain.DepositRecord, opts Options) Match {
	m := Match{
		Link:        Link{PayoutID: p.ID, DepositID: d.ID, MatchedAt: opts.MatchedAt},
		Amount:      p.Amount,
		AmountDelta: d.Amount.Sub(p.Amount),
		DayDelta:    dayDelta(p.Date, d.Date, opts.DateOf),
		Confidence:  ConfidenceTolerance,
	}
	if m.AmountDelta.IsZero() && m.DayDelta == 0 {
		m.Confidence = ConfidenceExact
	}
	return m
}

// Summarize computes run totals from the matches and record counts.
func Summarize(payouts, deposits int, matches []Match, unmatchedPayouts, unmatchedDeposits int) Summary {
	s := Summary{
		Payouts:           payouts,
		Deposits:          deposits,
		Matched:           len(matches),
		UnmatchedPayouts:  unmatchedPayouts,
		UnmatchedDeposits: unmatchedDeposits,
		MatchedAmount:     decimal.Zero,
		TotalDiscrepancy:  decimal.Zero,
		MatchRate:         decimal.Zero,
	}
	for _, m := range matches {
		s.MatchedAmount = s.MatchedAmount.Add(m.Amount)
		s.TotalDiscrepancy = s.TotalDiscrepancy.Add(m.AmountDelta.Abs())
	}
	if payouts > 0 {
		s.MatchRate = decimal.NewFromInt(int64(s.Matched)).DivRound(decimal.NewFromInt(int64(payouts)), 4)
	}
	return s
}

func withinAmount(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// withinDays gates on date only when both dates are known.
func withinDays(a, b time.Time, tolerance int, dateOf func(time.Time) (int, time.Month, int)) bool {
	if tolerance < 0 || a.IsZero() || b.IsZero() {
		return true
	}
	d := dayDelta(a, b, dateOf)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// dayDelta counts days from a's label to b's.
func dayDelta(a, b time.Time, dateOf func(time.Time) (int, time.Month, int)) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	if dateOf == nil {
		dateOf = time.Time.Date
	}
	ay, am, ad := dateOf(a)
	by, bm, bd := dateOf(b)
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func before(ad time.Time, aid string, bd time.Time, bid string) bool {
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	return aid < bid
}

func checkUnique[T any](kind string, items []T, id func(T) string) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		k := id(it)
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s %q", domain.ErrDuplicateRecordID, kind, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
