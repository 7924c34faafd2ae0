package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/tillbook/internal/alert"
	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/config"
	"github.com/gyaneshwarpardhi/tillbook/internal/reconcile"
)

// Settings is the compiled, immutable form of config.Settings that every
// engine call reads from a single atomic load.
type Settings struct {
	Source   *config.Settings
	Calendar *calendar.Calendar
	Recon    reconcile.Options
	Rules    []alert.Rule
}

// Compile validates cfg and builds the calendar, matcher options and alert
// rules from it.
func Compile(cfg *config.Settings) (*Settings, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	cal, err := calendar.New(cfg.Calendar.Config)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	tol, err := decimal.NewFromString(cfg.Reconciliation.AmountTolerance)
	if err != nil {
		return nil, fmt.Errorf("reconciliation.amount_tolerance: %w", err)
	}
	opts := reconcile.DefaultOptions()
	opts.AmountTolerance = tol
	opts.DateOf = cal.ReportingDate
	if cfg.Reconciliation.DateToleranceDays != nil {
		opts.DateToleranceDays = *cfg.Reconciliation.DateToleranceDays
	}
	rules, err := alert.Build(cfg.Alerts)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	return &Settings{Source: cfg, Calendar: cal, Recon: opts, Rules: rules}, nil
}

// accountFor returns the bank account a platform's payouts settle into.
func (s *Settings) accountFor(platform string) string {
	if acct, ok := s.Source.Reconciliation.Accounts[platform]; ok {
		return acct
	}
	return UnroutedAccount
}
