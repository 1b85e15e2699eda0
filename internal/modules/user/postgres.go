package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db *database.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.Role, user.CreatedAt, user.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

const selectUser = `
	SELECT id, email, password_hash, first_name, last_name, role, created_at, updated_at
	FROM users
`

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.scan(ctx, selectUser+` WHERE email = $1`, email)
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scan(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *postgresRepository) scan(ctx context.Context, query string, arg any) (*User, error) {
	user := &User{}
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, database.NotFound(err, ErrUserNotFound)
	}
	return user, nil
}
