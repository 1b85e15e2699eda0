package reconciliation

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepository struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepository{db: db} }

func (r *postgresRepository) Create(ctx context.Context, e *Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO reconciliation_entries
		  (id, request_key, payload, failure_reason, status, attempts, last_outcome,
		   resolution_note, next_attempt_at, created_at, updated_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.RequestKey, payload, e.FailureReason, e.Status, e.Attempts, e.LastOutcome,
		e.ResolutionNote, e.NextAttemptAt, e.CreatedAt, e.UpdatedAt, e.ResolvedAt)
	return err
}

const selectEntry = `
	SELECT id, request_key, payload, failure_reason, status, attempts, last_outcome,
	       resolution_note, next_attempt_at, created_at, updated_at, resolved_at
	FROM reconciliation_entries`

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.db.Conn(ctx).QueryRowContext(ctx, selectEntry+` WHERE id = $1`, id).Scan)
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.db.Conn(ctx).QueryRowContext(ctx, selectEntry+` WHERE id = $1 FOR UPDATE`, id).Scan)
}

func (r *postgresRepository) GetOpenByKey(ctx context.Context, requestKey string) (*Entry, error) {
	return scanEntry(r.db.Conn(ctx).QueryRowContext(ctx, selectEntry+`
		WHERE request_key = $1 AND status IN ('pending', 'retried') FOR UPDATE`, requestKey).Scan)
}

func (r *postgresRepository) Update(ctx context.Context, e *Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE reconciliation_entries
		SET payload = $2, failure_reason = $3, status = $4, attempts = $5, last_outcome = $6,
		    resolution_note = $7, next_attempt_at = $8, updated_at = $9, resolved_at = $10
		WHERE id = $1`,
		e.ID, payload, e.FailureReason, e.Status, e.Attempts, e.LastOutcome,
		e.ResolutionNote, e.NextAttemptAt, e.UpdatedAt, e.ResolvedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context, status Status, limit int) ([]*Entry, error) {
	if status == "" {
		return r.query(ctx, selectEntry+` ORDER BY created_at DESC LIMIT $1`, limit)
	}
	return r.query(ctx, selectEntry+` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
}

func (r *postgresRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*Entry, error) {
	return r.query(ctx, selectEntry+`
		WHERE status IN ('pending', 'retried') AND next_attempt_at <= $1 AND attempts < $2
		ORDER BY next_attempt_at LIMIT $3`, now, maxAttempts, limit)
}

func (r *postgresRepository) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(scan func(...any) error) (*Entry, error) {
	e := &Entry{}
	var (
		payload    []byte
		resolvedAt sql.NullTime
	)
	err := scan(&e.ID, &e.RequestKey, &payload, &e.FailureReason, &e.Status, &e.Attempts, &e.LastOutcome,
		&e.ResolutionNote, &e.NextAttemptAt, &e.CreatedAt, &e.UpdatedAt, &resolvedAt)
	if err != nil {
		return nil, database.NotFound(err, ErrEntryNotFound)
	}
	if err := json.Unmarshal(payload, &e.Payload); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return e, nil
}
