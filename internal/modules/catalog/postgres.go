package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepo struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, p *Product) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO products
		  (id, sku, name, description, category, price, currency, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price,
		p.Currency, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	return err
}

const productColumns = `id,sku,name,description,category,price,currency,is_active,created_at,updated_at`

func scanProduct(scan func(...any) error) (*Product, error) {
	p := &Product{}
	err := scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Currency, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, database.NotFound(err, ErrProductNotFound)
	}
	return p, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row.Scan)
}

func (r *postgresRepo) List(ctx context.Context, category string, activeOnly bool) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}
	n := 1
	if category != "" {
		query += fmt.Sprintf(` AND category=$%d`, n)
		args = append(args, category)
		n++
	}
	if activeOnly {
		query += ` AND is_active=true`
	}
	query += ` ORDER BY sku`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *postgresRepo) Update(ctx context.Context, p *Product) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE products
		SET name=$1, description=$2, category=$3, price=$4, currency=$5,
		    is_active=$6, updated_at=$7
		WHERE id=$8`,
		p.Name, p.Description, p.Category, p.Price, p.Currency,
		p.IsActive, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}
