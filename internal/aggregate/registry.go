package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

// ErrUnknownMetric is returned for a metric name nothing is registered under.
var ErrUnknownMetric = errors.New("unknown metric")

// ValueFunc extracts the amount a transaction contributes to a metric.
type ValueFunc func(domain.TransactionRecord) decimal.Decimal

// Registry maps metric names to value extractors.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]ValueFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]ValueFunc)}
}

// DefaultRegistry returns a registry holding the built-in metrics.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("gross", ofKind(domain.CategorySale, false))
	r.Register("refunds", ofKind(domain.CategoryRefund, true))
	r.Register("fees", ofKind(domain.CategoryFee, true))
	r.Register("expenses", ofKind(domain.CategoryExpense, true))
	r.Register("net", func(t domain.TransactionRecord) decimal.Decimal {
		if t.Kind() == domain.CategoryExpense {
			return decimal.Zero
		}
		return t.Money()
	})
	r.Register("count", func(t domain.TransactionRecord) decimal.Decimal {
		if t.Kind() == domain.CategorySale {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	})
	return r
}

// Register adds an extractor. Panics on a duplicate name to surface misconfiguration early.
func (r *Registry) Register(name string, fn ValueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.extractors[name]; exists {
		panic(fmt.Sprintf("metric registry: duplicate metric %q", name))
	}
	r.extractors[name] = fn
}

// Get returns the extractor registered under name.
func (r *Registry) Get(name string) (ValueFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return fn, nil
}

// Names returns the registered metric names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extractors))
	for k := range r.extractors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func ofKind(kind domain.Category, abs bool) ValueFunc {
	return func(t domain.TransactionRecord) decimal.Decimal {
		if t.Kind() != kind {
			return decimal.Zero
		}
		if abs {
			return t.Money().Abs()
		}
		return t.Money()
	}
}
