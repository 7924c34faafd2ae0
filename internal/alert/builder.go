package alert

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/condition"
	"github.com/gyaneshwarpardhi/tillbook/internal/config"
)

// Build compiles the configured rule set: the enabled built-ins first, in a
// fixed order, then the expression rules in file order. Expressions and
// message templates are parsed here; evaluation never parses.
func Build(cfg config.AlertsConf) ([]Rule, error) {
	disabled := make(map[string]bool, len(cfg.Disabled))
	for _, id := range cfg.Disabled {
		disabled[id] = true
	}

	var rules []Rule
	if !disabled[RuleTakeRateCeiling] {
		ceiling, err := decimal.NewFromString(cfg.TakeRateCeiling)
		if err != nil {
			return nil, fmt.Errorf("%s: ceiling %q: %w", RuleTakeRateCeiling, cfg.TakeRateCeiling, err)
		}
		rules = append(rules, TakeRateCeiling(ceiling))
	}
	if !disabled[RuleSpendSpike] {
		ratio, err := decimal.NewFromString(cfg.SpendSpikeRatio)
		if err != nil {
			return nil, fmt.Errorf("%s: ratio %q: %w", RuleSpendSpike, cfg.SpendSpikeRatio, err)
		}
		rules = append(rules, SpendSpike(ratio))
	}
	if !disabled[RuleMissingUpload] {
		rules = append(rules, MissingUpload(cfg.UploadSources, time.Duration(cfg.MissingUploadHours)*time.Hour))
	}
	if !disabled[RuleCashWithoutDeposit] {
		rules = append(rules, CashWithoutDeposit())
	}

	for _, def := range cfg.Rules {
		r, err := compile(def)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", def.ID, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func compile(def config.RuleDef) (Rule, error) {
	sev, ok := ParseSeverity(def.Severity)
	if !ok {
		return Rule{}, fmt.Errorf("unknown severity %q", def.Severity)
	}
	ast, err := condition.Parse(def.Expression)
	if err != nil {
		return Rule{}, fmt.Errorf("parse %q: %w", def.Expression, err)
	}
	for _, f := range condition.Fields(ast) {
		if !IsMetric(f) {
			return Rule{}, fmt.Errorf("unknown metric %q in %q", f, def.Expression)
		}
	}
	msg := def.Message
	if msg == "" {
		msg = def.ID
	}
	tmpl, err := template.New(def.ID).Option("missingkey=zero").Parse(msg)
	if err != nil {
		return Rule{}, fmt.Errorf("message template: %w", err)
	}

	return Rule{
		ID:       def.ID,
		Severity: sev,
		// Unknown fields and division by zero mean the rule does not fire.
		Condition: func(s Snapshot) bool {
			fired, err := condition.Evaluate(ast, s.Metrics())
			return err == nil && fired
		},
		Render: func(s Snapshot) string {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, map[string]interface{}(s.Metrics())); err != nil {
				return msg
			}
			return buf.String()
		},
	}, nil
}
