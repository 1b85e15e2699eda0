package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepository struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepository{db: db} }

func (r *postgresRepository) Insert(ctx context.Context, rec *Record) (bool, error) {
	outcome, err := encodeOutcome(rec.Outcome)
	if err != nil {
		return false, err
	}
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO idempotency_records
		  (key, fingerprint, status, outcome, attempts, locked_at, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO NOTHING`,
		rec.Key, rec.Fingerprint, rec.Status, outcome, rec.Attempts,
		rec.LockedAt, rec.CreatedAt, rec.UpdatedAt, rec.CompletedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const selectRecord = `
	SELECT key, fingerprint, status, outcome, attempts, locked_at, created_at, updated_at, completed_at
	FROM idempotency_records WHERE key = $1`

func (r *postgresRepository) Get(ctx context.Context, key string) (*Record, error) {
	return scanRecord(r.db.Conn(ctx).QueryRowContext(ctx, selectRecord, key))
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, key string) (*Record, error) {
	return scanRecord(r.db.Conn(ctx).QueryRowContext(ctx, selectRecord+` FOR UPDATE`, key))
}

func (r *postgresRepository) Update(ctx context.Context, rec *Record) error {
	outcome, err := encodeOutcome(rec.Outcome)
	if err != nil {
		return err
	}
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE idempotency_records
		SET status = $2, outcome = $3, attempts = $4, locked_at = $5, updated_at = $6, completed_at = $7
		WHERE key = $1`,
		rec.Key, rec.Status, outcome, rec.Attempts, rec.LockedAt, rec.UpdatedAt, rec.CompletedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM idempotency_records WHERE key = $1`, key)
	return err
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec := &Record{}
	var (
		outcome     []byte
		lockedAt    sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(&rec.Key, &rec.Fingerprint, &rec.Status, &outcome, &rec.Attempts,
		&lockedAt, &rec.CreatedAt, &rec.UpdatedAt, &completedAt); err != nil {
		return nil, database.NotFound(err, ErrNotFound)
	}
	if len(outcome) > 0 {
		rec.Outcome = &Outcome{}
		if err := json.Unmarshal(outcome, rec.Outcome); err != nil {
			return nil, err
		}
	}
	if lockedAt.Valid {
		t := lockedAt.Time
		rec.LockedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return rec, nil
}

func encodeOutcome(o *Outcome) (any, error) {
	if o == nil {
		return nil, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return b, nil
}
