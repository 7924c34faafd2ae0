package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `version: "1"
calendar:
  timezone: Europe/London
`

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "tillbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Calendar.Timezone)
	assert.Len(t, cfg.Calendar.Days, 7)
	require.NotNil(t, cfg.Reconciliation.DateToleranceDays)
	assert.Equal(t, DefaultDateToleranceDays, *cfg.Reconciliation.DateToleranceDays)
	assert.Equal(t, DefaultAmountTolerance, cfg.Reconciliation.AmountTolerance)
	assert.Equal(t, DefaultTakeRateCeiling, cfg.Alerts.TakeRateCeiling)
	assert.Equal(t, DefaultCashSourceTag, cfg.Alerts.CashSourceTag)
	assert.Equal(t, DefaultWorkers, cfg.Engine.Workers)
	assert.Equal(t, DefaultJobTimeoutMs, cfg.Engine.JobTimeoutMs)
}

func TestParse_ExplicitZeroTolerance(t *testing.T) {
	cfg, err := Parse([]byte(minimal + "reconciliation:\n  date_tolerance_days: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, *cfg.Reconciliation.DateToleranceDays)
}

func TestParse_ShippedConfig(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "tillbook.yaml"))
	require.NoError(t, err)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Calendar.ReportingOffsetMinutes)
	assert.True(t, cfg.Calendar.Days[1].Closed)
	assert.Equal(t, "chk-operating", cfg.Reconciliation.Accounts["doordash"])
	assert.Len(t, cfg.Alerts.Rules, 2)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	body := `version: "1"
calendar:
  timezone: Nowhere/Special
reconciliation:
  amount_tolerance: "lots"
alerts:
  spend_spike_ratio: "0"
  disabled: [not_a_rule]
  rules:
    - id: spend_spike
      severity: warning
      expression: spend > 1
    - id: custom
      severity: loud
    - severity: info
      expression: spend > 1
engine:
  workers: -1
`
	_, err := Parse([]byte(body))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"config validation errors:",
		"calendar:",
		"reconciliation.amount_tolerance",
		"alerts.spend_spike_ratio: must be positive",
		`"not_a_rule" is not a built-in rule`,
		`duplicate rule id "spend_spike"`,
		`severity "loud"`,
		"rule custom: expression is required",
		"alerts.rules[2]: id is required",
		"engine.workers",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("calendar:\n  timezone: UTC\n"))
	assert.EqualError(t, err, "config: version is required")
}

func TestLoader_ReloadAndOnChange(t *testing.T) {
	path := writeFile(t, t.TempDir(), minimal)
	l, err := NewLoader(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	var got []*Settings
	l.OnChange(func(s *Settings) { got = append(got, s) })

	require.NoError(t, os.WriteFile(path, []byte(minimal+"  reporting_offset_minutes: 90\n"), 0o644))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Calendar.ReportingOffsetMinutes)
	assert.Same(t, cfg, l.Config())
	require.Len(t, got, 1)

	// An invalid file keeps the previous settings and fires no callback.
	require.NoError(t, os.WriteFile(path, []byte(minimal+"  reporting_offset_minutes: 5000\n"), 0o644))
	_, err = l.Reload()
	assert.Error(t, err)
	assert.Equal(t, 90, l.Config().Calendar.ReportingOffsetMinutes)
	assert.Len(t, got, 1)
}

func TestLoader_Watch(t *testing.T) {
	path := writeFile(t, t.TempDir(), minimal)
	l, err := NewLoader(path)
	require.NoError(t, err)

	changed := make(chan *Settings, 4)
	l.OnChange(func(s *Settings) { changed <- s })
	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte(minimal+"  reporting_offset_minutes: 30\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-changed:
			if s.Calendar.ReportingOffsetMinutes == 30 {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not reload the settings")
		}
	}
}

func TestNewLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
