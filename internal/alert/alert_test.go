package alert

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/tillbook/internal/config"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var asOf = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func baseSnapshot() Snapshot {
	return Snapshot{
		Window: window.Window{Start: asOf.AddDate(0, 0, -7), End: asOf},
		AsOf:   asOf,
		Platforms: []PlatformStats{
			{Platform: "doordash", Gross: dec("1000"), Fees: dec("250")},
			{Platform: "ubereats", Gross: dec("500"), Fees: dec("100")},
		},
		Spend:        dec("100"),
		PriorSpend:   dec("100"),
		CashSales:    dec("0"),
		CashDeposits: dec("0"),
		LastUpload:   map[string]time.Time{"pos": asOf.Add(-time.Hour), "bank": asOf.Add(-2 * time.Hour)},
	}
}

func TestEvaluate_OrderAndNoShortCircuit(t *testing.T) {
	calls := 0
	rule := func(id string, fire bool) Rule {
		return Rule{
			ID:        id,
			Severity:  SeverityInfo,
			Condition: func(Snapshot) bool { calls++; return fire },
			Render:    func(Snapshot) string { return "msg " + id },
		}
	}
	got := Evaluate(baseSnapshot(), []Rule{rule("a", true), rule("b", false), rule("c", true), {ID: "bare", Severity: SeverityInfo, Condition: func(Snapshot) bool { return true }}})

	assert.Equal(t, 3, calls)
	assert.Equal(t, []Alert{
		{ID: "a", Severity: SeverityInfo, Message: "msg a"},
		{ID: "c", Severity: SeverityInfo, Message: "msg c"},
		{ID: "bare", Severity: SeverityInfo, Message: "bare"},
	}, got)

	assert.Empty(t, Evaluate(baseSnapshot(), nil))
	assert.NotNil(t, Evaluate(baseSnapshot(), nil))
}

func TestTakeRateCeiling(t *testing.T) {
	s := baseSnapshot()
	r := TakeRateCeiling(dec("0.30"))
	assert.False(t, r.Condition(s))

	s.Platforms[1].Fees = dec("175") // 35%
	require.True(t, r.Condition(s))
	assert.Equal(t, "take rate above 30.00%: ubereats 35.00%", r.Render(s))

	// No sales, no rate.
	s.Platforms = []PlatformStats{{Platform: "grubhub", Gross: decimal.Zero, Fees: dec("5")}}
	assert.False(t, r.Condition(s))
}

func TestSpendSpike(t *testing.T) {
	r := SpendSpike(dec("1.5"))
	tests := []struct {
		name         string
		spend, prior string
		want         bool
	}{
		{"flat", "100", "100", false},
		{"at threshold", "150", "100", false},
		{"spike", "150.01", "100", true},
		{"no prior spend", "500", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSnapshot()
			s.Spend, s.PriorSpend = dec(tt.spend), dec(tt.prior)
			assert.Equal(t, tt.want, r.Condition(s))
		})
	}

	s := baseSnapshot()
	s.Spend = dec("300")
	assert.Equal(t, "spend 300.00 is 3.00x the previous period (100.00)", r.Render(s))
}

func TestMissingUpload(t *testing.T) {
	r := MissingUpload([]string{"pos", "bank"}, 24*time.Hour)
	s := baseSnapshot()
	assert.False(t, r.Condition(s))

	s.LastUpload["bank"] = asOf.Add(-30 * time.Hour)
	require.True(t, r.Condition(s))
	assert.Equal(t, "no upload within 24h0m0s: bank (30h0m0s ago)", r.Render(s))

	delete(s.LastUpload, "pos")
	assert.Contains(t, r.Render(s), "pos (never)")

	assert.False(t, MissingUpload(nil, time.Hour).Condition(baseSnapshot()))
}

func TestCashWithoutDeposit(t *testing.T) {
	r := CashWithoutDeposit()
	s := baseSnapshot()
	assert.False(t, r.Condition(s))

	s.CashSales = dec("420.50")
	require.True(t, r.Condition(s))
	assert.Equal(t, SeverityCritical, r.Severity)
	assert.Equal(t, "cash sales of 420.50 with no cash deposit", r.Render(s))

	s.CashDeposits = dec("400")
	assert.False(t, r.Condition(s))
}

func TestSnapshot_Metrics(t *testing.T) {
	m := baseSnapshot().Metrics()
	assert.Equal(t, "1500", m["gross"].(decimal.Decimal).String())
	assert.Equal(t, "0.25", m["platform.doordash.take_rate"].(decimal.Decimal).String())
	assert.Equal(t, "7", m["window_days"].(decimal.Decimal).String())
	assert.Equal(t, "2", m["upload.bank.age_hours"].(decimal.Decimal).String())

	v, ok := baseSnapshot().Resolve([]string{"platform", "ubereats", "fees"})
	require.True(t, ok)
	assert.Equal(t, "100", v.(decimal.Decimal).String())

	_, ok = baseSnapshot().Resolve([]string{"platform", "grubhub", "fees"})
	assert.False(t, ok)
}

func TestBuild(t *testing.T) {
	cfg := config.Default().Alerts
	cfg.UploadSources = []string{"pos"}
	cfg.Disabled = []string{RuleSpendSpike}
	cfg.Rules = []config.RuleDef{
		{ID: "doordash_fees", Severity: "critical", Expression: "platform.doordash.fees > 200", Message: `doordash fees {{index . "platform.doordash.fees"}}`},
		{ID: "zero_gross", Severity: "info", Expression: "fees / platform.grubhub.gross > 1"},
	}

	rules, err := Build(cfg)
	require.NoError(t, err)
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{RuleTakeRateCeiling, RuleMissingUpload, RuleCashWithoutDeposit, "doordash_fees", "zero_gross"}, ids)

	alerts := Evaluate(baseSnapshot(), rules)
	require.Len(t, alerts, 1)
	assert.Equal(t, Alert{ID: "doordash_fees", Severity: SeverityCritical, Message: "doordash fees 250"}, alerts[0])
}

func TestIsMetric(t *testing.T) {
	for _, path := range []string{"spend", "take_rate", "window_days", "platform.doordash.fees", "platform.x.take_rate", "upload.bank.age_hours"} {
		assert.True(t, IsMetric(path), path)
	}
	for _, path := range []string{"revenue", "platform.doordash", "platform..gross", "platform.a.b.gross", "upload.bank.gross", "fees.total"} {
		assert.False(t, IsMetric(path), path)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  config.RuleDef
	}{
		{"bad expression", config.RuleDef{ID: "x", Severity: "info", Expression: "gross >"}},
		{"bad severity", config.RuleDef{ID: "x", Severity: "loud", Expression: "gross > 1"}},
		{"bad template", config.RuleDef{ID: "x", Severity: "info", Expression: "gross > 1", Message: "{{.gross"}},
		{"unknown metric", config.RuleDef{ID: "x", Severity: "info", Expression: "gross > 1 AND revenu > 2"}},
		{"unknown platform field", config.RuleDef{ID: "x", Severity: "info", Expression: "platform.doordash.net > 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Alerts
			cfg.Rules = []config.RuleDef{tt.def}
			_, err := Build(cfg)
			assert.Error(t, err)
		})
	}
}
