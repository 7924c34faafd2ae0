package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
)

var severities = map[string]bool{"info": true, "warning": true, "critical": true}

// Validate checks the settings for:
//   - a compilable business calendar (zone, offset, one entry per weekday)
//   - decimal tolerances, ceilings and ratios
//   - alert rules with unique ids, a known severity and an expression
//   - positive engine limits
//
// Every problem is reported, not just the first.
func Validate(cfg *Settings) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if _, err := calendar.New(cfg.Calendar.Config); err != nil {
		errs = append(errs, fmt.Sprintf("calendar: %v", err))
	}

	if d := cfg.Reconciliation.DateToleranceDays; d != nil && *d > 31 {
		errs = append(errs, fmt.Sprintf("reconciliation.date_tolerance_days: %d is more than a month", *d))
	}
	checkDecimal(&errs, "reconciliation.amount_tolerance", cfg.Reconciliation.AmountTolerance, false)
	for platform, account := range cfg.Reconciliation.Accounts {
		if platform == "" || account == "" {
			errs = append(errs, fmt.Sprintf("reconciliation.accounts: empty platform or account in %q: %q", platform, account))
		}
	}

	checkDecimal(&errs, "alerts.take_rate_ceiling", cfg.Alerts.TakeRateCeiling, false)
	checkDecimal(&errs, "alerts.spend_spike_ratio", cfg.Alerts.SpendSpikeRatio, true)
	if cfg.Alerts.MissingUploadHours < 0 {
		errs = append(errs, "alerts.missing_upload_hours: must not be negative")
	}

	ids := make(map[string]string) // id → location
	for _, id := range builtinRuleIDs {
		ids[id] = "built-in rules"
	}
	for i, r := range cfg.Alerts.Rules {
		loc := fmt.Sprintf("alerts.rules[%d]", i)
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("%s: id is required", loc))
			continue
		}
		if prev, ok := ids[r.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate rule id %q (first seen at %s, again at %s)", r.ID, prev, loc))
		} else {
			ids[r.ID] = loc
		}
		if !severities[strings.ToLower(r.Severity)] {
			errs = append(errs, fmt.Sprintf("rule %s: severity %q is not one of info, warning, critical", r.ID, r.Severity))
		}
		if strings.TrimSpace(r.Expression) == "" {
			errs = append(errs, fmt.Sprintf("rule %s: expression is required", r.ID))
		}
	}
	for _, id := range cfg.Alerts.Disabled {
		if !isBuiltin(id) {
			errs = append(errs, fmt.Sprintf("alerts.disabled: %q is not a built-in rule", id))
		}
	}

	if cfg.Engine.Workers < 1 {
		errs = append(errs, "engine.workers: must be at least 1")
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, "engine.queue_depth: must be at least 1")
	}
	if cfg.Engine.JobTimeoutMs < 1 {
		errs = append(errs, "engine.job_timeout_ms: must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// builtinRuleIDs mirrors the ids of the alert package's built-in rules.
var builtinRuleIDs = []string{"take_rate_ceiling", "spend_spike", "missing_upload", "cash_without_deposit"}

func isBuiltin(id string) bool {
	for _, b := range builtinRuleIDs {
		if b == id {
			return true
		}
	}
	return false
}

func checkDecimal(errs *[]string, field, value string, positive bool) {
	d, err := decimal.NewFromString(value)
	switch {
	case err != nil:
		*errs = append(*errs, fmt.Sprintf("%s: %q is not a decimal", field, value))
	case d.IsNegative():
		*errs = append(*errs, fmt.Sprintf("%s: must not be negative", field))
	case positive && !d.IsPositive():
		*errs = append(*errs, fmt.Sprintf("%s: must be positive", field))
	}
}
