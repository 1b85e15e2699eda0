package reconciliation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/sale"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRetried   Status = "retried"
	StatusResolved  Status = "resolved"
	StatusAbandoned Status = "abandoned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRetried, StatusResolved, StatusAbandoned:
		return true
	}
	return false
}

// Open reports whether the entry still needs attention.
func (s Status) Open() bool { return s == StatusPending || s == StatusRetried }

// Entry is a sale attempt whose outcome could not be determined.
type Entry struct {
	ID             uuid.UUID    `json:"id"`
	RequestKey     string       `json:"request_key"`
	Payload        sale.Request `json:"payload"`
	FailureReason  string       `json:"failure_reason"`
	Status         Status       `json:"status"`
	Attempts       int          `json:"attempts"`
	LastOutcome    string       `json:"last_outcome,omitempty"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	NextAttemptAt  time.Time    `json:"next_attempt_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}

// ResolveRequest carries what the operator learned from the terminal.
type ResolveRequest struct {
	Approved  bool   `json:"approved"`
	AuthCode  string `json:"auth_code,omitempty"`
	CardLast4 string `json:"card_last4,omitempty"`
	CardType  string `json:"card_type,omitempty"`
	Note      string `json:"note"`
}

type AbandonRequest struct {
	Note string `json:"note"`
}

// Attempt is the result of acting on an entry.
type Attempt struct {
	Entry  *Entry       `json:"entry"`
	Result *sale.Result `json:"result,omitempty"`
}

var (
	ErrEntryNotFound = errors.New("reconciliation entry not found")
	ErrEntryClosed   = errors.New("reconciliation entry is already closed")
	ErrNoteRequired  = errors.New("a note is required")
	ErrInvalidStatus = errors.New("status must be pending, retried, resolved or abandoned")
)
