package sale

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepo struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepo{db: db} }

// Create inserts the sale, its items and its payment. Run it inside the
// commit transaction; it does not open one of its own.
func (r *postgresRepo) Create(ctx context.Context, s *Sale) error {
	conn := r.db.Conn(ctx)
	_, err := conn.ExecContext(ctx, `
		INSERT INTO sales
		  (id, request_key, session_id, location_id, subtotal, discount_amount, tax_amount, total,
		   currency, payment_method, payment_reference, customer_id,
		   loyalty_points_redeemed, loyalty_points_earned, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		s.ID, s.RequestKey, s.SessionID, s.LocationID, s.Subtotal, s.DiscountAmount, s.TaxAmount, s.Total,
		s.Currency, s.PaymentMethod, s.PaymentReference, s.CustomerID,
		s.LoyaltyPointsRedeemed, s.LoyaltyPointsEarned, s.CreatedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateSale
	}
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for _, item := range s.Items {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO sale_items
			  (id, sale_id, line, product_id, quantity, unit_price, line_total, reservation_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, s.ID, item.Line, item.ProductID, item.Quantity,
			item.UnitPrice, item.LineTotal, item.ReservationID)
		if err != nil {
			return fmt.Errorf("insert sale_item: %w", err)
		}
	}

	if p := s.Payment; p != nil {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO sale_payments
			  (id, sale_id, method, amount, auth_code, card_last4, card_type, reference, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			p.ID, s.ID, p.Method, p.Amount, p.AuthCode, p.CardLast4, p.CardType, p.Reference, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert sale_payment: %w", err)
		}
	}
	return nil
}

const selectSale = `
	SELECT id, request_key, session_id, location_id, subtotal, discount_amount, tax_amount, total,
	       currency, payment_method, payment_reference, customer_id,
	       loyalty_points_redeemed, loyalty_points_earned, created_at
	FROM sales`

func (r *postgresRepo) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return r.load(ctx, r.db.Conn(ctx).QueryRowContext(ctx, selectSale+` WHERE id = $1`, id))
}

func (r *postgresRepo) GetByRequestKey(ctx context.Context, requestKey string) (*Sale, error) {
	return r.load(ctx, r.db.Conn(ctx).QueryRowContext(ctx, selectSale+` WHERE request_key = $1`, requestKey))
}

func (r *postgresRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Sale, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, selectSale+` WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []*Sale
	for rows.Next() {
		s, err := scanSale(rows.Scan)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range sales {
		if err := r.attach(ctx, s); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (r *postgresRepo) load(ctx context.Context, row *sql.Row) (*Sale, error) {
	s, err := scanSale(row.Scan)
	if err != nil {
		return nil, database.NotFound(err, ErrSaleNotFound)
	}
	return s, r.attach(ctx, s)
}

func scanSale(scan func(...any) error) (*Sale, error) {
	s := &Sale{}
	var (
		reference  sql.NullString
		customerID uuid.NullUUID
	)
	err := scan(&s.ID, &s.RequestKey, &s.SessionID, &s.LocationID, &s.Subtotal, &s.DiscountAmount,
		&s.TaxAmount, &s.Total, &s.Currency, &s.PaymentMethod, &reference, &customerID,
		&s.LoyaltyPointsRedeemed, &s.LoyaltyPointsEarned, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if reference.Valid {
		s.PaymentReference = &reference.String
	}
	if customerID.Valid {
		s.CustomerID = &customerID.UUID
	}
	return s, nil
}

// attach loads the items and payment of s.
func (r *postgresRepo) attach(ctx context.Context, s *Sale) error {
	conn := r.db.Conn(ctx)
	rows, err := conn.QueryContext(ctx, `
		SELECT id, sale_id, line, product_id, quantity, unit_price, line_total, reservation_id
		FROM sale_items WHERE sale_id = $1 ORDER BY line`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		it := &SaleItem{}
		if err := rows.Scan(&it.ID, &it.SaleID, &it.Line, &it.ProductID, &it.Quantity,
			&it.UnitPrice, &it.LineTotal, &it.ReservationID); err != nil {
			return err
		}
		s.Items = append(s.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	p := &Payment{}
	err = conn.QueryRowContext(ctx, `
		SELECT id, sale_id, method, amount, auth_code, card_last4, card_type, reference, created_at
		FROM sale_payments WHERE sale_id = $1`, s.ID).
		Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.AuthCode, &p.CardLast4, &p.CardType, &p.Reference, &p.CreatedAt)
	switch {
	case err == sql.ErrNoRows:
		return nil
	case err != nil:
		return err
	}
	s.Payment = p
	return nil
}
