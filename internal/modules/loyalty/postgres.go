package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepository struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepository{db: db} }

func (r *postgresRepository) GetAccount(ctx context.Context, customerID uuid.UUID) (*Account, error) {
	a := &Account{}
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT customer_id, balance, updated_at FROM loyalty_accounts WHERE customer_id = $1`,
		customerID).Scan(&a.CustomerID, &a.Balance, &a.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err, ErrAccountNotFound)
	}
	return a, nil
}

func (r *postgresRepository) AddToBalance(ctx context.Context, customerID uuid.UUID, delta int64, at time.Time) (int64, error) {
	var balance int64
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		INSERT INTO loyalty_accounts (customer_id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id) DO UPDATE
		SET balance = loyalty_accounts.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING balance`,
		customerID, delta, at).Scan(&balance)
	if database.IsCheckViolation(err) {
		return 0, ErrInsufficientPoints
	}
	return balance, err
}

func (r *postgresRepository) AppendEntry(ctx context.Context, e *Entry) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO loyalty_entries (id, customer_id, sale_id, kind, points, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.CustomerID, e.SaleID, e.Kind, e.Points, e.Note, e.CreatedAt)
	return err
}

func (r *postgresRepository) ListEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]*Entry, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT id, customer_id, sale_id, kind, points, note, created_at
		FROM loyalty_entries WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var saleID uuid.NullUUID
		if err := rows.Scan(&e.ID, &e.CustomerID, &saleID, &e.Kind, &e.Points, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if saleID.Valid {
			e.SaleID = &saleID.UUID
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
