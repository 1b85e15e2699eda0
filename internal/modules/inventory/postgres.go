package inventory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

// ---- Location ----

type locationPostgres struct{ db *database.DB }

func NewLocationPostgresRepository(db *database.DB) LocationRepository {
	return &locationPostgres{db: db}
}

func (r *locationPostgres) CreateLocation(ctx context.Context, l *Location) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO locations (id, name, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.Name, l.Address, l.IsActive, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *locationPostgres) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	l := &Location{}
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, address, is_active, created_at, updated_at
		FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err, ErrLocationNotFound)
	}
	return l, nil
}

// ---- Stock records and reservations ----

type postgresRepository struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepository{db: db} }

const recordColumns = `product_id, location_id, on_hand, reserved, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	rec := &Record{}
	if err := row.Scan(&rec.ProductID, &rec.LocationID, &rec.OnHand, &rec.Reserved, &rec.UpdatedAt); err != nil {
		return nil, database.NotFound(err, ErrRecordNotFound)
	}
	return rec, nil
}

func (r *postgresRepository) GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*Record, error) {
	return scanRecord(r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM inventory_records
		WHERE product_id = $1 AND location_id = $2`, productID, locationID))
}

func (r *postgresRepository) GetRecordForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*Record, error) {
	return scanRecord(r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM inventory_records
		WHERE product_id = $1 AND location_id = $2
		FOR UPDATE`, productID, locationID))
}

func (r *postgresRepository) CreateRecord(ctx context.Context, rec *Record) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO inventory_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ProductID, rec.LocationID, rec.OnHand, rec.Reserved, rec.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrLocationNotFound
	}
	return err
}

func (r *postgresRepository) UpdateRecord(ctx context.Context, rec *Record) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE inventory_records SET on_hand = $3, reserved = $4, updated_at = $5
		WHERE product_id = $1 AND location_id = $2`,
		rec.ProductID, rec.LocationID, rec.OnHand, rec.Reserved, rec.UpdatedAt)
	if err != nil {
		if database.IsCheckViolation(err) {
			return ErrOnHandBelowReservation
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

const reservationColumns = `id, product_id, location_id, quantity, request_key, line, status, created_at, expires_at, closed_at`

func scanReservation(row interface{ Scan(...any) error }) (*Reservation, error) {
	res := &Reservation{}
	var closedAt sql.NullTime
	if err := row.Scan(&res.ID, &res.ProductID, &res.LocationID, &res.Quantity, &res.RequestKey,
		&res.Line, &res.Status, &res.CreatedAt, &res.ExpiresAt, &closedAt); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		res.ClosedAt = &t
	}
	return res, nil
}

func (r *postgresRepository) CreateReservation(ctx context.Context, res *Reservation) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.ProductID, res.LocationID, res.Quantity, res.RequestKey, res.Line,
		res.Status, res.CreatedAt, res.ExpiresAt, res.ClosedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateReservation
	}
	return err
}

func (r *postgresRepository) GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	res, err := scanReservation(r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		return nil, database.NotFound(err, ErrReservationNotFound)
	}
	return res, nil
}

func (r *postgresRepository) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	res, err := scanReservation(r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, database.NotFound(err, ErrReservationNotFound)
	}
	return res, nil
}

func (r *postgresRepository) UpdateReservation(ctx context.Context, res *Reservation) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE reservations SET status = $2, expires_at = $3, closed_at = $4
		WHERE id = $1`, res.ID, res.Status, res.ExpiresAt, res.ClosedAt)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *postgresRepository) ListReservationsByRequestKey(ctx context.Context, requestKey string) ([]*Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE request_key = $1 ORDER BY line, created_at`, requestKey)
}

func (r *postgresRepository) ListExpired(ctx context.Context, productID, locationID uuid.UUID, now time.Time, limit int) ([]*Reservation, error) {
	if productID == uuid.Nil {
		return r.list(ctx, `
			SELECT `+reservationColumns+` FROM reservations
			WHERE status = 'active' AND expires_at <= $1
			ORDER BY expires_at LIMIT $2`, now, limit)
	}
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'active' AND expires_at <= $1 AND product_id = $2 AND location_id = $3
		ORDER BY expires_at LIMIT $4`, now, productID, locationID, limit)
}

func (r *postgresRepository) ExtendActive(ctx context.Context, requestKey string, until time.Time) (int, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE reservations SET expires_at = $2
		WHERE request_key = $1 AND status = 'active' AND expires_at < $2`, requestKey, until)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]*Reservation, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
