// Package alert turns a period snapshot of business figures into typed
// alerts. Rules are plain predicates over a Snapshot; evaluation is pure.
package alert

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/condition"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity accepts the severity names case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev, true
	}
	return "", false
}

// Alert is a fired rule.
type Alert struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Rule fires when Condition holds for a snapshot.
type Rule struct {
	ID        string
	Severity  Severity
	Condition func(Snapshot) bool
	Render    func(Snapshot) string
}

// PlatformStats is one sale platform's figures for the window.
type PlatformStats struct {
	Platform string          `json:"platform"`
	Gross    decimal.Decimal `json:"gross"`
	Fees     decimal.Decimal `json:"fees"` // magnitude, >= 0
}

// TakeRate returns fees / gross, or false when there were no sales.
func (p PlatformStats) TakeRate() (decimal.Decimal, bool) {
	if !p.Gross.IsPositive() {
		return decimal.Zero, false
	}
	return p.Fees.Div(p.Gross), true
}

// Snapshot is everything rules may look at for one window.
type Snapshot struct {
	Window            window.Window        `json:"window"`
	AsOf              time.Time            `json:"as_of"`
	Platforms         []PlatformStats      `json:"platforms"`
	Spend             decimal.Decimal      `json:"spend"`
	PriorSpend        decimal.Decimal      `json:"prior_spend"`
	CashSales         decimal.Decimal      `json:"cash_sales"`
	CashDeposits      decimal.Decimal      `json:"cash_deposits"`
	LastUpload        map[string]time.Time `json:"last_upload"`
	UnmatchedPayouts  int                  `json:"unmatched_payouts"`
	UnmatchedDeposits int                  `json:"unmatched_deposits"`
}

// Metrics flattens the snapshot into dotted metric names, the vocabulary
// of expression rules and message templates.
//
//	spend, prior_spend, cash_sales, cash_deposits, gross, fees, take_rate,
//	unmatched_payouts, unmatched_deposits, window_days,
//	platform.<name>.gross, platform.<name>.fees, platform.<name>.take_rate,
//	upload.<source>.age_hours
//
// Ratios are omitted when their denominator is zero.
func (s Snapshot) Metrics() condition.Values {
	v := condition.Values{
		"spend":              s.Spend,
		"prior_spend":        s.PriorSpend,
		"cash_sales":         s.CashSales,
		"cash_deposits":      s.CashDeposits,
		"unmatched_payouts":  s.UnmatchedPayouts,
		"unmatched_deposits": s.UnmatchedDeposits,
		"window_days":        decimal.NewFromFloat(s.Window.Duration().Hours() / 24).Round(2),
	}
	gross, fees := decimal.Zero, decimal.Zero
	for _, p := range s.Platforms {
		prefix := "platform." + p.Platform + "."
		v[prefix+"gross"] = p.Gross
		v[prefix+"fees"] = p.Fees
		if rate, ok := p.TakeRate(); ok {
			v[prefix+"take_rate"] = rate
		}
		gross = gross.Add(p.Gross)
		fees = fees.Add(p.Fees)
	}
	v["gross"] = gross
	v["fees"] = fees
	if gross.IsPositive() {
		v["take_rate"] = fees.Div(gross)
	}
	for src, at := range s.LastUpload {
		if at.IsZero() {
			continue
		}
		v["upload."+src+".age_hours"] = decimal.NewFromFloat(s.AsOf.Sub(at).Hours()).Round(2)
	}
	return v
}

var scalarMetrics = map[string]bool{
	"spend": true, "prior_spend": true, "cash_sales": true, "cash_deposits": true,
	"gross": true, "fees": true, "take_rate": true,
	"unmatched_payouts": true, "unmatched_deposits": true, "window_days": true,
}

// IsMetric reports whether path names a value Metrics can produce.
func IsMetric(path string) bool {
	if scalarMetrics[path] {
		return true
	}
	parts := strings.Split(path, ".")
	if len(parts) != 3 || parts[1] == "" {
		return false
	}
	switch parts[0] {
	case "platform":
		return parts[2] == "gross" || parts[2] == "fees" || parts[2] == "take_rate"
	case "upload":
		return parts[2] == "age_hours"
	}
	return false
}

// Resolve implements condition.EvalContext over Metrics.
func (s Snapshot) Resolve(path []string) (interface{}, bool) {
	return s.Metrics().Resolve(path)
}

// Evaluate runs every rule against s in list order and returns the alerts
// of the rules that fired. All rules are evaluated.
func Evaluate(s Snapshot, rules []Rule) []Alert {
	alerts := make([]Alert, 0)
	for _, r := range rules {
		if r.Condition == nil || !r.Condition(s) {
			continue
		}
		msg := r.ID
		if r.Render != nil {
			msg = r.Render(s)
		}
		alerts = append(alerts, Alert{ID: r.ID, Severity: r.Severity, Message: msg})
	}
	return alerts
}
