package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/tillbook/internal/aggregate"
	"github.com/gyaneshwarpardhi/tillbook/internal/alert"
	"github.com/gyaneshwarpardhi/tillbook/internal/calendar"
	"github.com/gyaneshwarpardhi/tillbook/internal/config"
	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
	"github.com/gyaneshwarpardhi/tillbook/internal/engine"
	mock_engine "github.com/gyaneshwarpardhi/tillbook/internal/engine/mocks"
	"github.com/gyaneshwarpardhi/tillbook/internal/window"
)

// Tuesday March 4 2025, 12:00 UTC.
var now = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, src engine.RecordSource, mutate func(*config.Settings)) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Reconciliation.Accounts = map[string]string{"doordash": "chk-1", "ubereats": "chk-2"}
	if mutate != nil {
		mutate(cfg)
	}
	s, err := engine.Compile(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e := engine.New(ctx, src, s, engine.WithClock(func() time.Time { return now }))
	t.Cleanup(func() {
		cancel()
		e.Shutdown()
	})
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

func tx(id string, at time.Time, cents int64, tag string, cat domain.Category) domain.TransactionRecord {
	return domain.TransactionRecord{ID: id, OccurredAt: at, Amount: cents, SourceTag: tag, Category: cat}
}

func TestEngine_Report(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, nil)

	w, err := e.ResolvePreset("today")
	require.NoError(t, err)
	records := []domain.TransactionRecord{
		tx("1", now.Add(-3*time.Hour), 1250, "pos", ""),
		tx("2", now.Add(-3*time.Hour+time.Minute), 750, "doordash", domain.CategorySale),
		tx("3", now.Add(-time.Hour), -300, "doordash", domain.CategoryFee),
	}

	tests := []struct {
		name      string
		req       engine.ReportRequest
		wantTotal string
	}{
		{"gross by default", engine.ReportRequest{Window: w}, "20.00"},
		{"source filter", engine.ReportRequest{Window: w, Source: "doordash"}, "7.50"},
		{"fees", engine.ReportRequest{Window: w, Metric: "fees"}, "3.00"},
		{"net", engine.ReportRequest{Window: w, Metric: "net"}, "17.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src.EXPECT().Transactions(gomock.Any(), w.Start, w.End).Return(records, nil)

			rep, err := e.Report(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, calendar.GrainHour, rep.Grain)
			assert.Len(t, rep.Buckets, 24)
			assert.Equal(t, tt.wantTotal, rep.Total.StringFixed(2))
		})
	}
}

func TestEngine_Report_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, nil)
	w, err := e.ResolvePreset("last7")
	require.NoError(t, err)

	_, err = e.Report(context.Background(), engine.ReportRequest{Window: w, Metric: "margin"})
	assert.ErrorIs(t, err, aggregate.ErrUnknownMetric)

	boom := errors.New("disk on fire")
	src.EXPECT().Transactions(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
	_, err = e.Report(context.Background(), engine.ReportRequest{Window: w})
	assert.ErrorIs(t, err, boom)

	src.EXPECT().Transactions(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	_, err = e.Report(context.Background(), engine.ReportRequest{Window: w, Grain: calendar.Grain("week")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedGrain)

	_, err = e.ResolvePreset("nextWeek")
	assert.ErrorIs(t, err, domain.ErrInvalidPreset)
}

func TestEngine_Report_StoreHoursFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, func(cfg *config.Settings) {
		cfg.Calendar.UseHoursFilter = true
		for i := range cfg.Calendar.Days {
			cfg.Calendar.Days[i] = calendar.DaySchedule{Weekday: i, Open: "09:00", Close: "17:00"}
		}
	})
	w, err := e.ResolvePreset("today")
	require.NoError(t, err)

	src.EXPECT().Transactions(gomock.Any(), w.Start, w.End).Return([]domain.TransactionRecord{
		tx("open", day(4).Add(10*time.Hour), 1000, "pos", ""),
		tx("closed", day(4).Add(20*time.Hour), 5000, "pos", ""),
	}, nil)

	rep, err := e.Report(context.Background(), engine.ReportRequest{Window: w})
	require.NoError(t, err)
	assert.True(t, rep.Filter)
	assert.Equal(t, "10.00", rep.Total.StringFixed(2))
}

func TestEngine_Reconcile_Batches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, nil)
	w, err := e.DatesWindow(day(1), day(4))
	require.NoError(t, err)

	src.EXPECT().Payouts(gomock.Any(), w.Start, w.End).Return([]domain.PayoutRecord{
		{ID: "p1", Date: day(1), Amount: dec("100.00"), SourcePlatform: "doordash"},
		{ID: "p2", Date: day(2), Amount: dec("50.00"), SourcePlatform: "doordash"},
		{ID: "p3", Date: day(3), Amount: dec("75.00"), SourcePlatform: "doordash"},
		{ID: "u1", Date: day(2), Amount: dec("40.00"), SourcePlatform: "ubereats"},
		{ID: "g1", Date: day(2), Amount: dec("10.00"), SourcePlatform: "grubhub"},
	}, nil)
	src.EXPECT().Deposits(gomock.Any(), w.Start, w.End).Return([]domain.DepositRecord{
		{ID: "d1", Date: day(1), Amount: dec("100.01"), BankAccountID: "chk-1"},
		{ID: "d2", Date: day(4), Amount: dec("75.00"), BankAccountID: "chk-1"},
		// Same amount as u1 but in the wrong account.
		{ID: "d3", Date: day(2), Amount: dec("40.00"), BankAccountID: "chk-1"},
		{ID: "d4", Date: day(3), Amount: dec("40.00"), BankAccountID: "chk-2"},
	}, nil)

	rep, err := e.Reconcile(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, now, rep.MatchedAt)

	require.Len(t, rep.Batches, 3)
	accounts := []string{rep.Batches[0].Account, rep.Batches[1].Account, rep.Batches[2].Account}
	assert.Equal(t, []string{"chk-1", "chk-2", engine.UnroutedAccount}, accounts)

	chk1 := rep.Batches[0].Result
	assert.Equal(t, [][2]string{{"p1", "d1"}, {"p3", "d2"}}, chk1.Pairs())
	require.Len(t, chk1.UnmatchedDeposits, 1)
	assert.Equal(t, "d3", chk1.UnmatchedDeposits[0].ID)

	assert.Equal(t, [][2]string{{"u1", "d4"}}, rep.Batches[1].Result.Pairs())
	assert.Len(t, rep.Batches[2].Result.UnmatchedPayouts, 1)

	assert.Equal(t, 5, rep.Summary.Payouts)
	assert.Equal(t, 3, rep.Summary.Matched)
	assert.Equal(t, 2, rep.Summary.UnmatchedPayouts)
	assert.Equal(t, 1, rep.Summary.UnmatchedDeposits)
	assert.Equal(t, "215", rep.Summary.MatchedAmount.String())
	assert.Equal(t, "0.6", rep.Summary.MatchRate.String())
}

func TestEngine_Reconcile_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, nil)
	w, err := e.ResolvePreset("last7")
	require.NoError(t, err)

	src.EXPECT().Payouts(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.PayoutRecord{
		{ID: "p", Date: day(1), Amount: dec("1"), SourcePlatform: "doordash"},
		{ID: "p", Date: day(2), Amount: dec("2"), SourcePlatform: "doordash"},
	}, nil)
	src.EXPECT().Deposits(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	_, err = e.Reconcile(context.Background(), w)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecordID)

	boom := errors.New("bank feed down")
	src.EXPECT().Payouts(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	src.EXPECT().Deposits(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
	_, err = e.Reconcile(context.Background(), w)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src.EXPECT().Payouts(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.PayoutRecord{
		{ID: "p", Date: day(1), Amount: dec("1"), SourcePlatform: "doordash"},
	}, nil)
	src.EXPECT().Deposits(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	_, err = e.Reconcile(ctx, w)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Alerts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, func(cfg *config.Settings) {
		cfg.Reconciliation.CashAccount = "chk-1"
		cfg.Alerts.UploadSources = []string{"pos", "bank"}
		cfg.Alerts.Rules = []config.RuleDef{{
			ID: "refund_heavy", Severity: "info", Expression: "platform.doordash.gross < 50",
			Message: `doordash gross {{index . "platform.doordash.gross"}}`,
		}}
	})
	w, err := e.ResolvePreset("last7")
	require.NoError(t, err)
	prev := w.Previous()

	src.EXPECT().Transactions(gomock.Any(), prev.Start, w.End).Return([]domain.TransactionRecord{
		tx("s1", day(3), 10000, "doordash", ""),
		tx("f1", day(3), -4000, "doordash", domain.CategoryFee),
		tx("c1", day(3), 5000, "cash", ""),
		tx("e1", day(3), -30000, "supplies", domain.CategoryExpense),
		tx("e0", prev.Start.Add(time.Hour), -10000, "supplies", domain.CategoryExpense),
	}, nil)
	src.EXPECT().LastUploads(gomock.Any()).Return(map[string]time.Time{"pos": now.Add(-time.Hour)}, nil)
	src.EXPECT().Payouts(gomock.Any(), w.Start, w.End).Return(nil, nil)
	src.EXPECT().Deposits(gomock.Any(), w.Start, w.End).Return(nil, nil)

	rep, err := e.Alerts(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, "300", rep.Snapshot.Spend.String())
	assert.Equal(t, "100", rep.Snapshot.PriorSpend.String())
	assert.Equal(t, "50", rep.Snapshot.CashSales.String())

	ids := make([]string, 0, len(rep.Alerts))
	for _, a := range rep.Alerts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{
		alert.RuleTakeRateCeiling,
		alert.RuleSpendSpike,
		alert.RuleMissingUpload,
		alert.RuleCashWithoutDeposit,
	}, ids)
}

func TestEngine_Snapshot_CashDepositFromUnmatched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := mock_engine.NewMockRecordSource(ctrl)
	e := newEngine(t, src, func(cfg *config.Settings) { cfg.Reconciliation.CashAccount = "chk-1" })
	w, err := e.ResolvePreset("last7")
	require.NoError(t, err)

	src.EXPECT().Transactions(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.TransactionRecord{
		tx("c1", day(3), 5000, "cash", ""),
	}, nil)
	src.EXPECT().LastUploads(gomock.Any()).Return(map[string]time.Time{}, nil)
	src.EXPECT().Payouts(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.PayoutRecord{
		{ID: "p1", Date: day(2), Amount: dec("80"), SourcePlatform: "doordash"},
	}, nil)
	src.EXPECT().Deposits(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.DepositRecord{
		{ID: "d1", Date: day(2), Amount: dec("80"), BankAccountID: "chk-1"},
		{ID: "d2", Date: day(3), Amount: dec("48"), BankAccountID: "chk-1"},
		{ID: "d3", Date: day(3), Amount: dec("999"), BankAccountID: "chk-9"},
	}, nil)

	snap, err := e.Snapshot(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "48", snap.CashDeposits.String())
	assert.Equal(t, 2, snap.UnmatchedDeposits)

	rep := alert.Evaluate(snap, e.Settings().Rules)
	for _, a := range rep {
		assert.NotEqual(t, alert.RuleCashWithoutDeposit, a.ID)
	}
}

func TestEngine_Apply(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e := newEngine(t, mock_engine.NewMockRecordSource(ctrl), nil)
	before := e.Settings()

	bad := config.Default()
	bad.Calendar.ReportingOffsetMinutes = 2000
	assert.Error(t, e.Apply(bad))
	assert.Same(t, before, e.Settings())

	good := config.Default()
	good.Calendar.Timezone = "Asia/Tokyo"
	require.NoError(t, e.Apply(good))
	assert.Equal(t, "Asia/Tokyo", e.Settings().Calendar.Location().String())

	w, err := e.ResolvePreset("today")
	require.NoError(t, err)
	// 12:00 UTC is 21:00 in Tokyo; the day started at 15:00 UTC the day before.
	assert.Equal(t, time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, window.Today, w.Preset)
}

func TestEngine_Metrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e := newEngine(t, mock_engine.NewMockRecordSource(ctrl), nil)
	assert.Contains(t, e.Metrics(), "gross")
	assert.Equal(t, float64(0), e.QueueUtilization())
}
