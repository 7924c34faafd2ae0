package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/metrics"
	"github.com/gyaneshwarpardhi/tillbook/internal/reconcile"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// UnroutedAccount collects payouts from platforms with no configured account.
const UnroutedAccount = "unrouted"

// ErrQueueFull is returned when a batch cannot be queued.
var ErrQueueFull = errors.New("reconciliation queue full")

// BatchResult is the reconciliation of one settlement bank account.
type BatchResult struct {
	Account    string           `json:"account"`
	Result     reconcile.Result `json:"result"`
	DurationMs int64            `json:"duration_ms"`
}

// ReconciliationReport holds every batch of one run, ordered by account.
type ReconciliationReport struct {
	Window    window.Window     `json:"window"`
	MatchedAt time.Time         `json:"matched_at"`
	Batches   []BatchResult     `json:"batches"`
	Summary   reconcile.Summary `json:"summary"`
}

type batchWork struct {
	ctx      context.Context
	account  string
	payouts  []domain.PayoutRecord
	deposits []domain.DepositRecord
	opts     reconcile.Options
}

// Reconcile matches the payouts and deposits dated inside w, one batch per
// bank account, concurrently. A payout's account comes from the platform
// routing in settings; a deposit's from its own BankAccountID. Any failed
// batch fails the whole run.
func (e *Engine) Reconcile(ctx context.Context, w window.Window) (*ReconciliationReport, error) {
	s := e.Settings()
	payouts, err := e.source.Payouts(ctx, w.Start, w.End)
	if err != nil {
		return nil, wrapSource("payouts", err)
	}
	deposits, err := e.source.Deposits(ctx, w.Start, w.End)
	if err != nil {
		return nil, wrapSource("deposits", err)
	}

	opts := s.Recon
	opts.MatchedAt = e.now().UTC()
	batches := e.partition(s, payouts, deposits, opts)

	results := make([]<-chan jobResult[*BatchResult], len(batches))
	for i, b := range batches {
		b.ctx = ctx
		c, ok := e.pool.Submit(b)
		if !ok {
			metrics.BatchesFailed.Inc()
			return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.pool.QueueCap())
		}
		results[i] = c
	}
	metrics.QueueUtilization.Set(e.QueueUtilization())

	report := &ReconciliationReport{Window: w, MatchedAt: opts.MatchedAt, Batches: make([]BatchResult, 0, len(batches))}
	timeout := time.NewTimer(e.jobTimeout())
	defer timeout.Stop()
	var firstErr error
	for i, c := range results {
		select {
		case res := <-c:
			if res.err != nil {
				metrics.BatchesFailed.Inc()
				slog.Warn("reconciliation batch failed", "account", batches[i].account, "err", res.err)
				if firstErr == nil {
					firstErr = fmt.Errorf("account %s: %w", batches[i].account, res.err)
				}
				continue
			}
			report.Batches = append(report.Batches, *res.value)
		case <-timeout.C:
			metrics.BatchesFailed.Inc()
			return nil, fmt.Errorf("reconciliation timeout after %v: %w", e.jobTimeout(), context.DeadlineExceeded)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	report.Summary = mergeSummaries(report.Batches)
	metrics.ReconciliationMatches.Add(float64(report.Summary.Matched))
	metrics.ReconciliationUnmatched.WithLabelValues("payout").Add(float64(report.Summary.UnmatchedPayouts))
	metrics.ReconciliationUnmatched.WithLabelValues("deposit").Add(float64(report.Summary.UnmatchedDeposits))
	return report, nil
}

// partition splits records into per-account batches, sorted by account.
func (e *Engine) partition(s *Settings, payouts []domain.PayoutRecord, deposits []domain.DepositRecord, opts reconcile.Options) []*batchWork {
	byAccount := make(map[string]*batchWork)
	get := func(acct string) *batchWork {
		b, ok := byAccount[acct]
		if !ok {
			b = &batchWork{account: acct, opts: opts}
			byAccount[acct] = b
		}
		return b
	}
	for _, p := range payouts {
		b := get(s.accountFor(p.SourcePlatform))
		b.payouts = append(b.payouts, p)
	}
	for _, d := range deposits {
		b := get(d.BankAccountID)
		b.deposits = append(b.deposits, d)
	}

	out := make([]*batchWork, 0, len(byAccount))
	for _, b := range byAccount {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].account < out[j].account })
	return out
}

func (e *Engine) runBatch(w *batchWork) (*BatchResult, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := reconcile.Reconcile(w.payouts, w.deposits, w.opts)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	metrics.BatchDuration.Observe(float64(elapsed.Microseconds()) / 1000)
	return &BatchResult{Account: w.account, Result: res, DurationMs: elapsed.Milliseconds()}, nil
}

func mergeSummaries(batches []BatchResult) reconcile.Summary {
	var payouts, deposits, unmatchedPayouts, unmatchedDeposits int
	var matches []reconcile.Match
	for _, b := range batches {
		payouts += b.Result.Summary.Payouts
		deposits += b.Result.Summary.Deposits
		unmatchedPayouts += len(b.Result.UnmatchedPayouts)
		unmatchedDeposits += len(b.Result.UnmatchedDeposits)
		matches = append(matches, b.Result.Matches...)
	}
	return reconcile.Summarize(payouts, deposits, matches, unmatchedPayouts, unmatchedDeposits)
}
