package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgersync/internal/billsplit"
	"ledgersync/internal/core"
)

// Service is an in-memory bill-splitting provider for tests. Created bills
// follow the real provider's halving rule: the owner fronts the full cost and
// the partner owes half.
type Service struct {
	mu      sync.Mutex
	records map[string]core.BillRecord
	balance decimal.Decimal
	now     func() time.Time

	Creates int
	Deletes int
}

var _ billsplit.Service = (*Service)(nil)

func New() *Service {
	return &Service{
		records: make(map[string]core.BillRecord),
		now:     time.Now,
	}
}

// SetNow overrides the clock used for created_at/updated_at stamps.
func (s *Service) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) SetBalance(balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
}

// Seed installs a record directly, bypassing the halving rule.
func (s *Service) Seed(record core.BillRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
}

func (s *Service) ListExpensesSince(_ context.Context, since time.Time) ([]core.BillRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BillRecord
	for _, r := range s.records {
		if since.IsZero() || !r.UpdatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) CreateExpense(_ context.Context, description string, cost decimal.Decimal, date time.Time) (core.BillRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paid, _ := billsplit.SplitCost(cost)
	now := s.now()
	record := core.BillRecord{
		ID:                 uuid.NewString(),
		Cost:               cost,
		TransactionBalance: paid,
		Description:        description,
		Date:               date,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.records[record.ID] = record
	s.Creates++
	return record, nil
}

func (s *Service) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("bill record %s not found", id)
	}
	record.Deleted = true
	record.UpdatedAt = s.now()
	s.records[id] = record
	s.Deletes++
	return nil
}

func (s *Service) GetBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// Record returns the stored record with the given id.
func (s *Service) Record(id string) (core.BillRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}
