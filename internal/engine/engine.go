package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/aggregate"
	"github.com/gyaneshwarpardhi/tillbook/internal/config"
	"github.com/gyaneshwarpardhi/tillbook/internal/metrics"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// Engine loads records from a RecordSource and runs them through the
// reporting core under the current settings.
type Engine struct {
	settings atomic.Pointer[Settings]
	source   RecordSource
	registry *aggregate.Registry
	pool     *workerPool[*batchWork, *BatchResult]
	conf     config.EngineConf
	now      func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRegistry replaces the default metric registry.
func WithRegistry(r *aggregate.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// New creates an Engine and starts its reconciliation pool. The pool is
// sized from s once; later settings swaps do not resize it.
func New(ctx context.Context, src RecordSource, s *Settings, opts ...Option) *Engine {
	e := &Engine{
		source:   src,
		registry: aggregate.DefaultRegistry(),
		conf:     s.Source.Engine,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.settings.Store(s)

	e.pool = newWorkerPool[*batchWork, *BatchResult](
		ctx,
		e.conf.Workers,
		e.conf.QueueDepth,
		func(ctx context.Context, w *batchWork) (*BatchResult, error) {
			return e.runBatch(w)
		},
	)
	return e
}

// Settings returns the settings currently in effect.
func (e *Engine) Settings() *Settings {
	return e.settings.Load()
}

// SwapSettings atomically replaces the compiled settings (used on hot-reload).
func (e *Engine) SwapSettings(s *Settings) {
	e.settings.Store(s)
}

// Apply compiles cfg and swaps it in. An invalid cfg leaves the current
// settings untouched.
func (e *Engine) Apply(cfg *config.Settings) error {
	s, err := Compile(cfg)
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		slog.Warn("settings rejected", "err", err)
		return err
	}
	e.SwapSettings(s)
	metrics.ConfigReloads.WithLabelValues("applied").Inc()
	slog.Info("settings applied",
		"timezone", cfg.Calendar.Timezone,
		"offset_minutes", cfg.Calendar.ReportingOffsetMinutes,
		"rules", len(s.Rules))
	return nil
}

// Metrics lists the metric names reports can be computed for.
func (e *Engine) Metrics() []string {
	return e.registry.Names()
}

// ResolvePreset resolves a named preset against the current calendar and clock.
func (e *Engine) ResolvePreset(name string) (window.Window, error) {
	p, err := window.ParsePreset(name)
	if err != nil {
		return window.Window{}, err
	}
	return window.Resolve(p, e.now(), e.Settings().Calendar)
}

// DatesWindow covers whole reporting days from first to last inclusive.
func (e *Engine) DatesWindow(first, last time.Time) (window.Window, error) {
	return window.ForDates(e.Settings().Calendar, first, last)
}

// QueueUtilization returns queue used / capacity (0..1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Shutdown drains the reconciliation pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

func (e *Engine) jobTimeout() time.Duration {
	return time.Duration(e.conf.JobTimeoutMs) * time.Millisecond
}

func wrapSource(what string, err error) error {
	return fmt.Errorf("load %s: %w", what, err)
}
