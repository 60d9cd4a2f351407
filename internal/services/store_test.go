package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/storage"
)

// memStore is a map-backed Store for engine tests. Upserts counts
// transaction writes so no-op passes can be asserted.
type memStore struct {
	mu           sync.Mutex
	transactions map[string]core.Transaction
	bills        map[string]core.BillRecord
	accounts     []core.Account
	budgets      map[string]decimal.Decimal
	settings     map[string]string
	dashboard    map[string]string
	Upserts      int
}

var _ Store = (*memStore)(nil)

func newMemStore(accounts ...core.Account) *memStore {
	return &memStore{
		transactions: make(map[string]core.Transaction),
		bills:        make(map[string]core.BillRecord),
		accounts:     accounts,
		budgets:      make(map[string]decimal.Decimal),
		settings:     make(map[string]string),
		dashboard:    make(map[string]string),
	}
}

func (s *memStore) UpsertTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Upserts++
	s.transactions[t.ID] = t
	return nil
}

func (s *memStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) TransactionsBySplitwiseID(_ context.Context, splitwiseID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.SplitwiseID == splitwiseID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	return nil
}

func (s *memStore) UpsertBillRecord(_ context.Context, b core.BillRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.ID] = b
	return nil
}

func (s *memStore) GetBillRecord(_ context.Context, id string) (core.BillRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return core.BillRecord{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *memStore) DeleteBillRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.bills, id)
	return nil
}

func (s *memStore) MaxBillRecordUpdatedAt(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max time.Time
	for _, b := range s.bills {
		if b.UpdatedAt.After(max) {
			max = b.UpdatedAt
		}
	}
	return max, nil
}

func (s *memStore) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *memStore) UpdateAccountBalance(_ context.Context, id string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts[i].Balance = balance
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *memStore) GetBudget(_ context.Context, month string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[month]
	if !ok {
		return decimal.Zero, storage.ErrNotFound
	}
	return b, nil
}

func (s *memStore) GetSetting(_ context.Context, measure string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[measure]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *memStore) DashboardValues(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.dashboard))
	for k, v := range s.dashboard {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) UpsertDashboardValue(_ context.Context, measure, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard[measure] = value
	return nil
}

func (s *memStore) transaction(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	return t, ok
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *memStore) bill(id string) (core.BillRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	return b, ok
}

func (s *memStore) account(id string) (core.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return core.Account{}, false
}
