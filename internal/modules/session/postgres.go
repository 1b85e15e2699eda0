package session

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepository struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepository{db: db} }

func (r *postgresRepository) Create(ctx context.Context, s *Session) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO sessions
		  (id, location_id, register_id, cashier_id, status, opening_balance,
		   total_sales, total_cash, total_card, total_transactions, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, s.LocationID, s.RegisterID, s.CashierID, s.Status, s.OpeningBalance,
		s.TotalSales, s.TotalCash, s.TotalCard, s.TotalTransactions, s.OpenedAt)
	switch {
	case database.IsUniqueViolation(err):
		return ErrRegisterBusy
	case database.IsForeignKeyViolation(err):
		return ErrLocationRequired
	}
	return err
}

const selectSession = `
	SELECT id, location_id, register_id, cashier_id, status, opening_balance,
	       total_sales, total_cash, total_card, total_transactions,
	       expected_balance, closing_balance, variance, opened_at, closed_at
	FROM sessions WHERE id = $1`

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.db.Conn(ctx).QueryRowContext(ctx, selectSession, id))
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.db.Conn(ctx).QueryRowContext(ctx, selectSession+` FOR UPDATE`, id))
}

func (r *postgresRepository) Increment(ctx context.Context, id uuid.UUID, d Delta) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE sessions
		SET total_sales = total_sales + $2,
		    total_cash = total_cash + $3,
		    total_card = total_card + $4,
		    total_transactions = total_transactions + $5
		WHERE id = $1 AND status = 'open'`,
		id, d.Sales, d.Cash, d.Card, d.Transactions)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrSessionClosed
}

func (r *postgresRepository) IncrementClosed(ctx context.Context, id uuid.UUID, d Delta) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE sessions
		SET total_sales = total_sales + $2,
		    total_cash = total_cash + $3,
		    total_card = total_card + $4,
		    total_transactions = total_transactions + $5,
		    expected_balance = expected_balance + $3,
		    variance = variance - $3
		WHERE id = $1 AND status = 'closed'`,
		id, d.Sales, d.Cash, d.Card, d.Transactions)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrSessionOpen
}

func (r *postgresRepository) Close(ctx context.Context, s *Session) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE sessions
		SET status = 'closed', expected_balance = $2, closing_balance = $3, variance = $4, closed_at = $5
		WHERE id = $1 AND status = 'open'`,
		s.ID, s.ExpectedBalance, s.ClosingBalance, s.Variance, s.ClosedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionClosed
	}
	return nil
}

func scanSession(row *sql.Row) (*Session, error) {
	s := &Session{}
	var (
		cashierID                   uuid.NullUUID
		expected, closing, variance decimal.NullDecimal
		closedAt                    sql.NullTime
	)
	err := row.Scan(&s.ID, &s.LocationID, &s.RegisterID, &cashierID, &s.Status, &s.OpeningBalance,
		&s.TotalSales, &s.TotalCash, &s.TotalCard, &s.TotalTransactions,
		&expected, &closing, &variance, &s.OpenedAt, &closedAt)
	if err != nil {
		return nil, database.NotFound(err, ErrSessionNotFound)
	}
	if cashierID.Valid {
		s.CashierID = &cashierID.UUID
	}
	if expected.Valid {
		s.ExpectedBalance = &expected.Decimal
	}
	if closing.Valid {
		s.ClosingBalance = &closing.Decimal
	}
	if variance.Valid {
		s.Variance = &variance.Decimal
	}
	if closedAt.Valid {
		s.ClosedAt = &closedAt.Time
	}
	return s, nil
}
