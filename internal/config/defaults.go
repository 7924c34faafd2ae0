package config

import "github.com/gyaneshwarpardhi/tillbook/internal/calendar"

const (
	DefaultTimezone           = "UTC"
	DefaultDateToleranceDays  = 1
	DefaultAmountTolerance    = "1.00"
	DefaultTakeRateCeiling    = "0.30"
	DefaultSpendSpikeRatio    = "1.5"
	DefaultMissingUploadHours = 48
	DefaultCashSourceTag      = "cash"
	DefaultWorkers            = 8
	DefaultQueueDepth         = 256
	DefaultJobTimeoutMs       = 5000
)

// ApplyDefaults fills every unset field. The calendar defaults to UTC and a
// week of full days.
func ApplyDefaults(cfg *Settings) {
	if cfg.Calendar.Timezone == "" {
		cfg.Calendar.Timezone = DefaultTimezone
	}
	if len(cfg.Calendar.Days) == 0 {
		cfg.Calendar.Days = calendar.AlwaysOpen()
	}
	if cfg.Reconciliation.DateToleranceDays == nil {
		d := DefaultDateToleranceDays
		cfg.Reconciliation.DateToleranceDays = &d
	}
	if cfg.Reconciliation.AmountTolerance == "" {
		cfg.Reconciliation.AmountTolerance = DefaultAmountTolerance
	}
	if cfg.Alerts.TakeRateCeiling == "" {
		cfg.Alerts.TakeRateCeiling = DefaultTakeRateCeiling
	}
	if cfg.Alerts.SpendSpikeRatio == "" {
		cfg.Alerts.SpendSpikeRatio = DefaultSpendSpikeRatio
	}
	if cfg.Alerts.MissingUploadHours == 0 {
		cfg.Alerts.MissingUploadHours = DefaultMissingUploadHours
	}
	if cfg.Alerts.CashSourceTag == "" {
		cfg.Alerts.CashSourceTag = DefaultCashSourceTag
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = DefaultWorkers
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = DefaultQueueDepth
	}
	if cfg.Engine.JobTimeoutMs == 0 {
		cfg.Engine.JobTimeoutMs = DefaultJobTimeoutMs
	}
}

// Default returns a complete configuration with every default applied.
func Default() *Settings {
	cfg := &Settings{Version: "1"}
	ApplyDefaults(cfg)
	return cfg
}
