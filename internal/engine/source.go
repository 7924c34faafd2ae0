package engine

import (
	"context"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_source.go -source=source.go RecordSource

// RecordSource supplies the records the engine reports on. Range queries are
// half-open: from <= t < to, on OccurredAt for transactions and on Date for
// payouts and deposits.
type RecordSource interface {
	Transactions(ctx context.Context, from, to time.Time) ([]domain.TransactionRecord, error)
	Payouts(ctx context.Context, from, to time.Time) ([]domain.PayoutRecord, error)
	Deposits(ctx context.Context, from, to time.Time) ([]domain.DepositRecord, error)
	// LastUploads returns when each source last delivered records.
	LastUploads(ctx context.Context) (map[string]time.Time, error)
}
