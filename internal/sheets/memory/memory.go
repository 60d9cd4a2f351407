package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ledgersync/internal/core"
)

// Store is an in-memory spreadsheet used by tests. It tracks write counts so
// idempotence can be asserted directly.
type Store struct {
	mu      sync.Mutex
	rows    []core.Transaction
	metrics map[string]string

	Appends int
	Updates int
	Deletes int
	Writes  int
}

func New() *Store {
	return &Store{metrics: make(map[string]string)}
}

func (s *Store) ListRows(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...), nil
}

func (s *Store) AppendRow(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.rows = append(s.rows, t)
	s.Appends++
	return t.ID, nil
}

func (s *Store) UpdateRow(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == t.ID {
			s.rows[i] = t
			s.Updates++
			return nil
		}
	}
	return fmt.Errorf("row %s not found", t.ID)
}

func (s *Store) DeleteRow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			s.Deletes++
			return nil
		}
	}
	return fmt.Errorf("row %s not found", id)
}

func (s *Store) WriteMetric(_ context.Context, measure, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[measure] = value
	s.Writes++
	return nil
}

// Metric returns the last value written for measure.
func (s *Store) Metric(measure string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.metrics[measure]
	return v, ok
}

// Row returns the stored row with the given id.
func (s *Store) Row(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			return r, true
		}
	}
	return core.Transaction{}, false
}
