package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-pos/internal/clock"
)

// Service defines catalog business logic.
type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, category string, activeOnly bool) ([]*Product, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*Product, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Product, error)
	// CurrentPrice is the price a sale line must match.
	CurrentPrice(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo     Repository
	clock    clock.Clock
	currency string
	cache    *CachedPrices
}

type Option func(*service)

// WithPriceCache serves CurrentPrice through c and evicts on price changes.
func WithPriceCache(c *CachedPrices) Option {
	return func(s *service) { s.cache = c }
}

func NewService(repo Repository, clk clock.Clock, currency string, opts ...Option) Service {
	s := &service{repo: repo, clock: clk, currency: currency}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.Name)
	switch {
	case sku == "":
		return nil, ErrSKURequired
	case name == "":
		return nil, ErrNameRequired
	case req.Price.IsNegative():
		return nil, ErrInvalidPrice
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	now := s.clock.Now()
	p := &Product{
		ID:          uuid.New(),
		SKU:         sku,
		Name:        name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price.Round(2),
		Currency:    currency,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListProducts(ctx context.Context, category string, activeOnly bool) ([]*Product, error) {
	return s.repo.List(ctx, category, activeOnly)
}

func (s *service) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*Product, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return s.update(ctx, id, func(p *Product) { p.Price = price.Round(2) })
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Product, error) {
	return s.update(ctx, id, func(p *Product) { p.IsActive = active })
}

func (s *service) update(ctx context.Context, id uuid.UUID, mutate func(*Product)) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(p)
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return p, nil
}

func (s *service) CurrentPrice(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	if s.cache != nil {
		return s.cache.CurrentPrice(ctx, id)
	}
	return priceOf(ctx, s.repo, id)
}

func priceOf(ctx context.Context, repo Repository, id uuid.UUID) (decimal.Decimal, error) {
	p, err := repo.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsActive {
		return decimal.Zero, ErrProductInactive
	}
	return p.Price, nil
}
