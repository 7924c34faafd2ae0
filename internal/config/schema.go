package config

import "github.com/gyaneshwarpardhi/tillbook/internal/calendar"

// Settings is the top-level YAML structure.
type Settings struct {
	Version        string       `yaml:"version" json:"version"`
	Calendar       CalendarConf `yaml:"calendar" json:"calendar"`
	Reconciliation ReconConf    `yaml:"reconciliation" json:"reconciliation"`
	Alerts         AlertsConf   `yaml:"alerts" json:"alerts"`
	Engine         EngineConf   `yaml:"engine" json:"engine"`
}

// CalendarConf is the business calendar plus reporting switches.
type CalendarConf struct {
	calendar.Config `yaml:",inline"`
	UseHoursFilter  bool `yaml:"use_hours_filter" json:"use_hours_filter"`
}

// ReconConf tunes payout matching and routes platforms to the bank account
// their payouts settle into.
type ReconConf struct {
	DateToleranceDays *int              `yaml:"date_tolerance_days" json:"date_tolerance_days"` // nil = default
	AmountTolerance   string            `yaml:"amount_tolerance" json:"amount_tolerance"`       // decimal string
	Accounts          map[string]string `yaml:"accounts" json:"accounts"`                       // platform → bank account
	CashAccount       string            `yaml:"cash_account" json:"cash_account"`
}

// AlertsConf parameterises the built-in rules and lists expression rules.
type AlertsConf struct {
	TakeRateCeiling    string    `yaml:"take_rate_ceiling" json:"take_rate_ceiling"`
	SpendSpikeRatio    string    `yaml:"spend_spike_ratio" json:"spend_spike_ratio"`
	MissingUploadHours int       `yaml:"missing_upload_hours" json:"missing_upload_hours"`
	UploadSources      []string  `yaml:"upload_sources" json:"upload_sources"`
	CashSourceTag      string    `yaml:"cash_source_tag" json:"cash_source_tag"`
	Disabled           []string  `yaml:"disabled" json:"disabled"` // built-in rule ids
	Rules              []RuleDef `yaml:"rules" json:"rules"`
}

// RuleDef is an alert rule written as a condition expression.
type RuleDef struct {
	ID         string `yaml:"id" json:"id"`
	Severity   string `yaml:"severity" json:"severity"`
	Expression string `yaml:"expression" json:"expression"`
	Message    string `yaml:"message" json:"message"` // text/template over the metric view
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers      int `yaml:"workers" json:"workers"`
	QueueDepth   int `yaml:"queue_depth" json:"queue_depth"`
	JobTimeoutMs int `yaml:"job_timeout_ms" json:"job_timeout_ms"`
}
