package engine

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/alert"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/metrics"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// AlertReport is the outcome of evaluating the rule set over a window.
type AlertReport struct {
	Window   window.Window  `json:"window"`
	AsOf     time.Time      `json:"as_of"`
	Snapshot alert.Snapshot `json:"snapshot"`
	Alerts   []alert.Alert  `json:"alerts"`
}

// Alerts builds the snapshot for w and evaluates every configured rule.
func (e *Engine) Alerts(ctx context.Context, w window.Window) (*AlertReport, error) {
	snap, err := e.Snapshot(ctx, w)
	if err != nil {
		return nil, err
	}
	alerts := alert.Evaluate(snap, e.Settings().Rules)
	for _, a := range alerts {
		metrics.AlertsFired.WithLabelValues(a.ID, string(a.Severity)).Inc()
	}
	return &AlertReport{Window: w, AsOf: snap.AsOf, Snapshot: snap, Alerts: alerts}, nil
}

// Snapshot gathers the figures alert rules read. Cash deposits are the
// deposits into the cash account that reconciliation could not attribute
// to a platform payout; with no cash account, every unmatched deposit counts.
func (e *Engine) Snapshot(ctx context.Context, w window.Window) (alert.Snapshot, error) {
	s := e.Settings()
	prev := w.Previous()

	txs, err := e.source.Transactions(ctx, prev.Start, w.End)
	if err != nil {
		return alert.Snapshot{}, wrapSource("transactions", err)
	}
	uploads, err := e.source.LastUploads(ctx)
	if err != nil {
		return alert.Snapshot{}, wrapSource("uploads", err)
	}
	recon, err := e.Reconcile(ctx, w)
	if err != nil {
		return alert.Snapshot{}, err
	}

	snap := alert.Snapshot{
		Window:            w,
		AsOf:              e.now().UTC(),
		Spend:             decimal.Zero,
		PriorSpend:        decimal.Zero,
		CashSales:         decimal.Zero,
		CashDeposits:      decimal.Zero,
		LastUpload:        uploads,
		UnmatchedPayouts:  recon.Summary.UnmatchedPayouts,
		UnmatchedDeposits: recon.Summary.UnmatchedDeposits,
	}

	cashTag := s.Source.Alerts.CashSourceTag
	platforms := make(map[string]*alert.PlatformStats)
	for _, t := range txs {
		ts := t.Timestamp()
		if prev.Contains(ts) {
			if t.Kind() == domain.CategoryExpense {
				snap.PriorSpend = snap.PriorSpend.Add(t.Money().Abs())
			}
			continue
		}
		if !w.Contains(ts) {
			continue
		}
		switch t.Kind() {
		case domain.CategoryExpense:
			snap.Spend = snap.Spend.Add(t.Money().Abs())
			continue
		case domain.CategorySale:
			if t.SourceTag == cashTag {
				snap.CashSales = snap.CashSales.Add(t.Money())
				continue
			}
		}
		ps, ok := platforms[t.SourceTag]
		if !ok {
			ps = &alert.PlatformStats{Platform: t.SourceTag, Gross: decimal.Zero, Fees: decimal.Zero}
			platforms[t.SourceTag] = ps
		}
		switch t.Kind() {
		case domain.CategorySale:
			ps.Gross = ps.Gross.Add(t.Money())
		case domain.CategoryFee:
			ps.Fees = ps.Fees.Add(t.Money().Abs())
		}
	}
	for _, ps := range platforms {
		snap.Platforms = append(snap.Platforms, *ps)
	}
	sort.Slice(snap.Platforms, func(i, j int) bool { return snap.Platforms[i].Platform < snap.Platforms[j].Platform })

	cashAccount := s.Source.Reconciliation.CashAccount
	for _, b := range recon.Batches {
		if cashAccount != "" && b.Account != cashAccount {
			continue
		}
		for _, d := range b.Result.UnmatchedDeposits {
			snap.CashDeposits = snap.CashDeposits.Add(d.Amount)
		}
	}
	return snap, nil
}
