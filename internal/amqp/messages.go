package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind names a sync job the worker knows how to run.
type JobKind string

const (
	JobBillSync         JobKind = "bill-sync"
	JobLedgerSync       JobKind = "ledger-sync"
	JobDashboardRefresh JobKind = "dashboard-refresh"
)

// JobMessage triggers one sync job. It carries no payload beyond the kind;
// the worker re-derives its work list from the stores, so redelivery is safe.
type JobMessage struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJobMessage creates a job message with a fresh id
func NewJobMessage(kind JobKind) *JobMessage {
	return &JobMessage{
		ID:         uuid.NewString(),
		Kind:       kind,
		EnqueuedAt: time.Now(),
	}
}

func (m *JobMessage) Validate() error {
	switch m.Kind {
	case JobBillSync, JobLedgerSync, JobDashboardRefresh:
		return nil
	default:
		return fmt.Errorf("unknown job kind: %q", m.Kind)
	}
}

// ToJSON converts the message to JSON bytes
func (m *JobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// JobMessageFromJSON creates a message from JSON bytes
func JobMessageFromJSON(data []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
