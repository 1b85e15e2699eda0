package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
)

// InventoryRepository serves both inventory.Repository and inventory.LocationRepository.
type InventoryRepository struct{ s *Store }

var (
	_ inventory.Repository         = (*InventoryRepository)(nil)
	_ inventory.LocationRepository = (*InventoryRepository)(nil)
)

func (r *InventoryRepository) CreateLocation(ctx context.Context, l *inventory.Location) error {
	return r.s.do(ctx, func(st *state) error {
		st.locations[l.ID] = *l
		return nil
	})
}

func (r *InventoryRepository) GetLocation(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	var out inventory.Location
	err := r.s.do(ctx, func(st *state) error {
		l, ok := st.locations[id]
		if !ok {
			return inventory.ErrLocationNotFound
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *InventoryRepository) GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*inventory.Record, error) {
	var out inventory.Record
	err := r.s.do(ctx, func(st *state) error {
		rec, ok := st.records[stockKey{productID, locationID}]
		if !ok {
			return inventory.ErrRecordNotFound
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRecordForUpdate needs no row lock; transactions already run one at a time.
func (r *InventoryRepository) GetRecordForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*inventory.Record, error) {
	return r.GetRecord(ctx, productID, locationID)
}

func (r *InventoryRepository) CreateRecord(ctx context.Context, rec *inventory.Record) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.locations[rec.LocationID]; !ok {
			return inventory.ErrLocationNotFound
		}
		if err := checkRecord(rec); err != nil {
			return err
		}
		st.records[stockKey{rec.ProductID, rec.LocationID}] = *rec
		return nil
	})
}

func (r *InventoryRepository) UpdateRecord(ctx context.Context, rec *inventory.Record) error {
	return r.s.do(ctx, func(st *state) error {
		k := stockKey{rec.ProductID, rec.LocationID}
		if _, ok := st.records[k]; !ok {
			return inventory.ErrRecordNotFound
		}
		if err := checkRecord(rec); err != nil {
			return err
		}
		st.records[k] = *rec
		return nil
	})
}

func checkRecord(rec *inventory.Record) error {
	if rec.OnHand < 0 || rec.Reserved < 0 || rec.Reserved > rec.OnHand {
		return inventory.ErrOnHandBelowReservation
	}
	return nil
}

func (r *InventoryRepository) CreateReservation(ctx context.Context, res *inventory.Reservation) error {
	return r.s.do(ctx, func(st *state) error {
		if res.Status == inventory.ReservationActive {
			for _, other := range st.reservations {
				if other.Status == inventory.ReservationActive && other.RequestKey == res.RequestKey && other.Line == res.Line {
					return inventory.ErrDuplicateReservation
				}
			}
		}
		st.reservations[res.ID] = *res
		return nil
	})
}

func (r *InventoryRepository) GetReservation(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var out inventory.Reservation
	err := r.s.do(ctx, func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return inventory.ErrReservationNotFound
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *InventoryRepository) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	return r.GetReservation(ctx, id)
}

func (r *InventoryRepository) UpdateReservation(ctx context.Context, res *inventory.Reservation) error {
	return r.s.do(ctx, func(st *state) error {
		cur, ok := st.reservations[res.ID]
		if !ok {
			return inventory.ErrReservationNotFound
		}
		cur.Status = res.Status
		cur.ExpiresAt = res.ExpiresAt
		cur.ClosedAt = res.ClosedAt
		st.reservations[res.ID] = cur
		return nil
	})
}

func (r *InventoryRepository) ListReservationsByRequestKey(ctx context.Context, requestKey string) ([]*inventory.Reservation, error) {
	var out []*inventory.Reservation
	err := r.s.do(ctx, func(st *state) error {
		for _, res := range st.reservations {
			if res.RequestKey == requestKey {
				res := res
				out = append(out, &res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r *InventoryRepository) ListExpired(ctx context.Context, productID, locationID uuid.UUID, now time.Time, limit int) ([]*inventory.Reservation, error) {
	var out []*inventory.Reservation
	err := r.s.do(ctx, func(st *state) error {
		for _, res := range st.reservations {
			if res.Status != inventory.ReservationActive || res.ExpiresAt.After(now) {
				continue
			}
			if productID != uuid.Nil && (res.ProductID != productID || res.LocationID != locationID) {
				continue
			}
			res := res
			out = append(out, &res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *InventoryRepository) ExtendActive(ctx context.Context, requestKey string, until time.Time) (int, error) {
	n := 0
	err := r.s.do(ctx, func(st *state) error {
		for id, res := range st.reservations {
			if res.RequestKey == requestKey && res.Status == inventory.ReservationActive && res.ExpiresAt.Before(until) {
				res.ExpiresAt = until
				st.reservations[id] = res
				n++
			}
		}
		return nil
	})
	return n, err
}
