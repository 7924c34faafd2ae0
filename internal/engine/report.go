package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/aggregate"
	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/hours"
	"github.com/gyaneshwarpardhi/tillbook/internal/metrics"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// DefaultMetric is reported when a request names none.
const DefaultMetric = "gross"

// ReportRequest selects what to aggregate.
type ReportRequest struct {
	Window window.Window
	Grain  calendar.Grain // empty: the window's grain
	Metric string         // empty: DefaultMetric
	Source string         // empty: every source tag
}

// Report is a dense bucket series with its total.
type Report struct {
	Window  window.Window      `json:"window"`
	Grain   calendar.Grain     `json:"grain"`
	Metric  string             `json:"metric"`
	Source  string             `json:"source,omitempty"`
	Filter  bool               `json:"store_hours_filter"`
	Buckets []aggregate.Bucket `json:"buckets"`
	Total   decimal.Decimal    `json:"total"`
}

// Report aggregates the transactions of req.Window into buckets.
func (e *Engine) Report(ctx context.Context, req ReportRequest) (*Report, error) {
	s := e.Settings()
	if req.Metric == "" {
		req.Metric = DefaultMetric
	}
	if req.Grain == "" {
		req.Grain = req.Window.Grain
	}
	valueOf, err := e.registry.Get(req.Metric)
	if err != nil {
		return nil, err
	}

	txs, err := e.source.Transactions(ctx, req.Window.Start, req.Window.End)
	if err != nil {
		return nil, wrapSource("transactions", err)
	}
	if req.Source != "" {
		txs = bySource(txs, req.Source)
	}
	if s.Source.Calendar.UseHoursFilter {
		if txs, err = hours.Filter(txs, req.Window, s.Calendar); err != nil {
			return nil, err
		}
	}

	buckets, err := aggregate.Aggregate(txs, req.Window, req.Grain, s.Calendar, valueOf)
	if err != nil {
		return nil, err
	}
	metrics.ReportsGenerated.WithLabelValues(string(req.Grain)).Inc()

	return &Report{
		Window:  req.Window,
		Grain:   req.Grain,
		Metric:  req.Metric,
		Source:  req.Source,
		Filter:  s.Source.Calendar.UseHoursFilter,
		Buckets: buckets,
		Total:   aggregate.Total(buckets),
	}, nil
}

func bySource(txs []domain.TransactionRecord, tag string) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, 0, len(txs))
	for _, t := range txs {
		if t.SourceTag == tag {
			out = append(out, t)
		}
	}
	return out
}
