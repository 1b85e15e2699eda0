package idempotency

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status of a request key.
type Status string

const (
	StatusInFlight Status = "in_flight"
	// StatusIndeterminate marks a key whose attempt ended with an unknown
	// payment outcome; only a retry with the same key may pick it up.
	StatusIndeterminate Status = "indeterminate"
	StatusCompleted     Status = "completed"
)

// Outcome is the terminal (or last known) result stored against a key.
type Outcome struct {
	Status  string          `json:"status"`
	SaleID  *uuid.UUID      `json:"sale_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Record maps a request key to what happened to it.
type Record struct {
	Key         string     `json:"key"`
	Fingerprint string     `json:"fingerprint"`
	Status      Status     `json:"status"`
	Outcome     *Outcome   `json:"outcome,omitempty"`
	Attempts    int        `json:"attempts"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Decision tells the caller what to do with a submission.
type Decision string

const (
	// Fresh: first time this key is seen; proceed.
	Fresh Decision = "fresh"
	// Resumed: the key was left indeterminate (or its owner died); proceed,
	// reusing whatever the earlier attempt left behind.
	Resumed Decision = "resumed"
	// Cached: the key already has a terminal outcome; return it.
	Cached Decision = "cached"
	// Conflict: another attempt with this key is running right now.
	Conflict Decision = "conflict"
)

// BeginResult is the answer of Begin.
type BeginResult struct {
	Decision Decision
	Record   *Record
}

var (
	ErrKeyRequired         = errors.New("request key is required")
	ErrNotFound            = errors.New("idempotency record not found")
	ErrFingerprintMismatch = errors.New("request key was already used with a different request body")
	ErrAlreadyCompleted    = errors.New("request key already has a terminal outcome")
	ErrInFlight            = errors.New("an attempt with this request key is still running")
)
