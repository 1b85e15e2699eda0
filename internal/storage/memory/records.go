package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/user"
)

type idempotencyRepository struct{ s *Store }

func (r *idempotencyRepository) Insert(ctx context.Context, rec *idempotency.Record) (bool, error) {
	created := false
	err := r.s.do(ctx, func(st *state) error {
		if _, ok := st.idempotency[rec.Key]; ok {
			return nil
		}
		st.idempotency[rec.Key] = *rec
		created = true
		return nil
	})
	return created, err
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var out idempotency.Record
	err := r.s.do(ctx, func(st *state) error {
		rec, ok := st.idempotency[key]
		if !ok {
			return idempotency.ErrNotFound
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *idempotencyRepository) GetForUpdate(ctx context.Context, key string) (*idempotency.Record, error) {
	return r.Get(ctx, key)
}

func (r *idempotencyRepository) Update(ctx context.Context, rec *idempotency.Record) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.idempotency[rec.Key]; !ok {
			return idempotency.ErrNotFound
		}
		st.idempotency[rec.Key] = *rec
		return nil
	})
}

func (r *idempotencyRepository) Delete(ctx context.Context, key string) error {
	return r.s.do(ctx, func(st *state) error {
		delete(st.idempotency, key)
		return nil
	})
}

type catalogRepository struct{ s *Store }

func (r *catalogRepository) Create(ctx context.Context, p *catalog.Product) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.products {
			if other.SKU == p.SKU {
				return catalog.ErrDuplicateSKU
			}
		}
		st.products[p.ID] = *p
		return nil
	})
}

func (r *catalogRepository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var out catalog.Product
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return catalog.ErrProductNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *catalogRepository) List(ctx context.Context, category string, activeOnly bool) ([]*catalog.Product, error) {
	var out []*catalog.Product
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.products {
			if category != "" && p.Category != category {
				continue
			}
			if activeOnly && !p.IsActive {
				continue
			}
			p := p
			out = append(out, &p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, err
}

func (r *catalogRepository) Update(ctx context.Context, p *catalog.Product) error {
	return r.s.do(ctx, func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok {
			return catalog.ErrProductNotFound
		}
		updated := *p
		updated.SKU = cur.SKU
		updated.CreatedAt = cur.CreatedAt
		st.products[p.ID] = updated
		return nil
	})
}

type userRepository struct{ s *Store }

func (r *userRepository) CreateUser(ctx context.Context, u *user.User) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.users {
			if other.Email == u.Email {
				return user.ErrDuplicateEmail
			}
		}
		st.users[u.ID] = *u
		return nil
	})
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.find(ctx, func(u user.User) bool { return u.Email == email })
}

func (r *userRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.find(ctx, func(u user.User) bool { return u.ID == id })
}

func (r *userRepository) find(ctx context.Context, match func(user.User) bool) (*user.User, error) {
	var out *user.User
	err := r.s.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				u := u
				out = &u
				return nil
			}
		}
		return user.ErrUserNotFound
	})
	return out, err
}

// newest orders timestamps descending.
func newest(a, b time.Time) bool { return a.After(b) }
