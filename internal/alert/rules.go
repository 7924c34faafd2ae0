package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Built-in rule ids.
const (
	RuleTakeRateCeiling    = "take_rate_ceiling"
	RuleSpendSpike         = "spend_spike"
	RuleMissingUpload      = "missing_upload"
	RuleCashWithoutDeposit = "cash_without_deposit"
)

var hundred = decimal.NewFromInt(100)

func percent(d decimal.Decimal) string {
	return d.Mul(hundred).StringFixed(2) + "%"
}

// TakeRateCeiling fires when any platform keeps more than ceiling (0.30 is
// 30%) of its gross sales as fees.
func TakeRateCeiling(ceiling decimal.Decimal) Rule {
	over := func(s Snapshot) []string {
		var out []string
		for _, p := range s.Platforms {
			if rate, ok := p.TakeRate(); ok && rate.GreaterThan(ceiling) {
				out = append(out, fmt.Sprintf("%s %s", p.Platform, percent(rate)))
			}
		}
		return out
	}
	return Rule{
		ID:        RuleTakeRateCeiling,
		Severity:  SeverityWarning,
		Condition: func(s Snapshot) bool { return len(over(s)) > 0 },
		Render: func(s Snapshot) string {
			return fmt.Sprintf("take rate above %s: %s", percent(ceiling), strings.Join(over(s), ", "))
		},
	}
}

// SpendSpike fires when spend exceeds ratio times the previous period's.
// A period without prior spend never spikes.
func SpendSpike(ratio decimal.Decimal) Rule {
	return Rule{
		ID:       RuleSpendSpike,
		Severity: SeverityWarning,
		Condition: func(s Snapshot) bool {
			return s.PriorSpend.IsPositive() && s.Spend.GreaterThan(s.PriorSpend.Mul(ratio))
		},
		Render: func(s Snapshot) string {
			return fmt.Sprintf("spend %s is %sx the previous period (%s)",
				s.Spend.StringFixed(2), s.Spend.DivRound(s.PriorSpend, 2).StringFixed(2), s.PriorSpend.StringFixed(2))
		},
	}
}

// MissingUpload fires when a required source has never uploaded, or its last
// upload is older than maxAge at the snapshot's AsOf.
func MissingUpload(sources []string, maxAge time.Duration) Rule {
	required := append([]string(nil), sources...)
	sort.Strings(required)
	stale := func(s Snapshot) []string {
		var out []string
		for _, src := range required {
			at, ok := s.LastUpload[src]
			switch {
			case !ok || at.IsZero():
				out = append(out, src+" (never)")
			case s.AsOf.Sub(at) > maxAge:
				out = append(out, fmt.Sprintf("%s (%s ago)", src, s.AsOf.Sub(at).Truncate(time.Minute)))
			}
		}
		return out
	}
	return Rule{
		ID:        RuleMissingUpload,
		Severity:  SeverityWarning,
		Condition: func(s Snapshot) bool { return len(stale(s)) > 0 },
		Render: func(s Snapshot) string {
			return fmt.Sprintf("no upload within %s: %s", maxAge, strings.Join(stale(s), ", "))
		},
	}
}

// CashWithoutDeposit fires when cash was taken but none reached the bank.
func CashWithoutDeposit() Rule {
	return Rule{
		ID:       RuleCashWithoutDeposit,
		Severity: SeverityCritical,
		Condition: func(s Snapshot) bool {
			return s.CashSales.IsPositive() && !s.CashDeposits.IsPositive()
		},
		Render: func(s Snapshot) string {
			return fmt.Sprintf("cash sales of %s with no cash deposit", s.CashSales.StringFixed(2))
		},
	}
}
