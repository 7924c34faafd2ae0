// Package memory is an in-memory RecordSource. It is safe for concurrent
// use; data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/tillbook/internal/domain"
)

// DepositSource is the upload source recorded for bank deposits.
const DepositSource = "bank"

// Store holds ingested records keyed by id.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]domain.TransactionRecord
	payouts      map[string]domain.PayoutRecord
	deposits     map[string]domain.DepositRecord
	uploads      map[string]time.Time
	now          func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]domain.TransactionRecord),
		payouts:      make(map[string]domain.PayoutRecord),
		deposits:     make(map[string]domain.DepositRecord),
		uploads:      make(map[string]time.Time),
		now:          time.Now,
	}
}

// WithClock replaces the clock used to stamp uploads.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// AddTransactions stores a batch. Records without an id get a generated
// one. The batch is rejected as a whole if any id is already taken. Each
// record's SourceTag is marked as uploaded. Returns the stored ids in order.
func (s *Store) AddTransactions(ctx context.Context, txs []domain.TransactionRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]domain.TransactionRecord, len(txs))
	copy(batch, txs)
	ids, err := assignIDs(len(batch),
		func(i int) *string { return &batch[i].ID },
		func(id string) bool { _, ok := s.transactions[id]; return ok })
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	at := s.now().UTC()
	for _, t := range batch {
		s.transactions[t.ID] = t
		if t.SourceTag != "" {
			s.uploads[t.SourceTag] = at
		}
	}
	return ids, nil
}

// AddPayouts stores a batch of payouts; each SourcePlatform is marked as uploaded.
func (s *Store) AddPayouts(ctx context.Context, ps []domain.PayoutRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]domain.PayoutRecord, len(ps))
	copy(batch, ps)
	ids, err := assignIDs(len(batch),
		func(i int) *string { return &batch[i].ID },
		func(id string) bool { _, ok := s.payouts[id]; return ok })
	if err != nil {
		return nil, fmt.Errorf("payouts: %w", err)
	}
	at := s.now().UTC()
	for _, p := range batch {
		s.payouts[p.ID] = p
		if p.SourcePlatform != "" {
			s.uploads[p.SourcePlatform] = at
		}
	}
	return ids, nil
}

// AddDeposits stores a batch of deposits and marks DepositSource as uploaded.
func (s *Store) AddDeposits(ctx context.Context, ds []domain.DepositRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]domain.DepositRecord, len(ds))
	copy(batch, ds)
	ids, err := assignIDs(len(batch),
		func(i int) *string { return &batch[i].ID },
		func(id string) bool { _, ok := s.deposits[id]; return ok })
	if err != nil {
		return nil, fmt.Errorf("deposits: %w", err)
	}
	for _, d := range batch {
		s.deposits[d.ID] = d
	}
	if len(batch) > 0 {
		s.uploads[DepositSource] = s.now().UTC()
	}
	return ids, nil
}

// Transactions implements engine.RecordSource. Results are ordered by time, then id.
func (s *Store) Transactions(ctx context.Context, from, to time.Time) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TransactionRecord, 0)
	for _, t := range s.transactions {
		if inRange(t.OccurredAt, from, to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Payouts implements engine.RecordSource.
func (s *Store) Payouts(ctx context.Context, from, to time.Time) ([]domain.PayoutRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PayoutRecord, 0)
	for _, p := range s.payouts {
		if inRange(p.Date, from, to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Deposits implements engine.RecordSource.
func (s *Store) Deposits(ctx context.Context, from, to time.Time) ([]domain.DepositRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DepositRecord, 0)
	for _, d := range s.deposits {
		if inRange(d.Date, from, to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LastUploads implements engine.RecordSource. The map is a copy.
func (s *Store) LastUploads(ctx context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.uploads))
	for k, v := range s.uploads {
		out[k] = v
	}
	return out, nil
}

// Counts returns how many records of each kind are stored.
func (s *Store) Counts() (transactions, payouts, deposits int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions), len(s.payouts), len(s.deposits)
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// assignIDs fills empty ids with UUIDs and rejects ids that repeat within
// the batch or already exist.
func assignIDs(n int, idAt func(int) *string, exists func(string) bool) ([]string, error) {
	ids := make([]string, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := idAt(i)
		if *id == "" {
			*id = uuid.NewString()
		}
		if _, dup := seen[*id]; dup || exists(*id) {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateRecordID, *id)
		}
		seen[*id] = struct{}{}
		ids[i] = *id
	}
	return ids, nil
}
