package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/reconciliation"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
)

type sessionRepository struct{ s *Store }

func (r *sessionRepository) Create(ctx context.Context, sess *session.Session) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.locations[sess.LocationID]; !ok {
			return session.ErrLocationRequired
		}
		for _, other := range st.sessions {
			if other.IsOpen() && other.LocationID == sess.LocationID && other.RegisterID == sess.RegisterID {
				return session.ErrRegisterBusy
			}
		}
		st.sessions[sess.ID] = *sess
		return nil
	})
}

func (r *sessionRepository) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	var out session.Session
	err := r.s.do(ctx, func(st *state) error {
		sess, ok := st.sessions[id]
		if !ok {
			return session.ErrSessionNotFound
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	return r.Get(ctx, id)
}

func (r *sessionRepository) Increment(ctx context.Context, id uuid.UUID, d session.Delta) error {
	return r.s.do(ctx, func(st *state) error {
		sess, ok := st.sessions[id]
		if !ok {
			return session.ErrSessionNotFound
		}
		if !sess.IsOpen() {
			return session.ErrSessionClosed
		}
		sess.TotalSales = sess.TotalSales.Add(d.Sales)
		sess.TotalCash = sess.TotalCash.Add(d.Cash)
		sess.TotalCard = sess.TotalCard.Add(d.Card)
		sess.TotalTransactions += d.Transactions
		st.sessions[id] = sess
		return nil
	})
}

func (r *sessionRepository) IncrementClosed(ctx context.Context, id uuid.UUID, d session.Delta) error {
	return r.s.do(ctx, func(st *state) error {
		sess, ok := st.sessions[id]
		if !ok {
			return session.ErrSessionNotFound
		}
		if sess.IsOpen() {
			return session.ErrSessionOpen
		}
		sess.TotalSales = sess.TotalSales.Add(d.Sales)
		sess.TotalCash = sess.TotalCash.Add(d.Cash)
		sess.TotalCard = sess.TotalCard.Add(d.Card)
		sess.TotalTransactions += d.Transactions
		if sess.ExpectedBalance != nil && sess.Variance != nil {
			expected := sess.ExpectedBalance.Add(d.Cash)
			variance := sess.Variance.Sub(d.Cash)
			sess.ExpectedBalance = &expected
			sess.Variance = &variance
		}
		st.sessions[id] = sess
		return nil
	})
}

func (r *sessionRepository) Close(ctx context.Context, closed *session.Session) error {
	return r.s.do(ctx, func(st *state) error {
		sess, ok := st.sessions[closed.ID]
		if !ok || !sess.IsOpen() {
			return session.ErrSessionClosed
		}
		sess.Status = session.StatusClosed
		sess.ExpectedBalance = closed.ExpectedBalance
		sess.ClosingBalance = closed.ClosingBalance
		sess.Variance = closed.Variance
		sess.ClosedAt = closed.ClosedAt
		st.sessions[closed.ID] = sess
		return nil
	})
}

type loyaltyRepository struct{ s *Store }

func (r *loyaltyRepository) GetAccount(ctx context.Context, customerID uuid.UUID) (*loyalty.Account, error) {
	var out loyalty.Account
	err := r.s.do(ctx, func(st *state) error {
		acct, ok := st.accounts[customerID]
		if !ok {
			return loyalty.ErrAccountNotFound
		}
		out = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *loyaltyRepository) AddToBalance(ctx context.Context, customerID uuid.UUID, delta int64, at time.Time) (int64, error) {
	var balance int64
	err := r.s.do(ctx, func(st *state) error {
		acct := st.accounts[customerID]
		acct.CustomerID = customerID
		if acct.Balance+delta < 0 {
			return loyalty.ErrInsufficientPoints
		}
		acct.Balance += delta
		acct.UpdatedAt = at
		st.accounts[customerID] = acct
		balance = acct.Balance
		return nil
	})
	return balance, err
}

func (r *loyaltyRepository) AppendEntry(ctx context.Context, e *loyalty.Entry) error {
	return r.s.do(ctx, func(st *state) error {
		st.entries = append(st.entries, *e)
		return nil
	})
}

func (r *loyaltyRepository) ListEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]*loyalty.Entry, error) {
	var out []*loyalty.Entry
	err := r.s.do(ctx, func(st *state) error {
		for i := len(st.entries) - 1; i >= 0; i-- {
			if st.entries[i].CustomerID == customerID {
				e := st.entries[i]
				out = append(out, &e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return newest(out[i].CreatedAt, out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type saleRepository struct{ s *Store }

func (r *saleRepository) Create(ctx context.Context, s *sale.Sale) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.sales {
			if other.RequestKey == s.RequestKey {
				return sale.ErrDuplicateSale
			}
		}
		st.sales[s.ID] = copySale(s)
		return nil
	})
}

func (r *saleRepository) Get(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	return r.find(ctx, func(s sale.Sale) bool { return s.ID == id })
}

func (r *saleRepository) GetByRequestKey(ctx context.Context, requestKey string) (*sale.Sale, error) {
	return r.find(ctx, func(s sale.Sale) bool { return s.RequestKey == requestKey })
}

func (r *saleRepository) find(ctx context.Context, match func(sale.Sale) bool) (*sale.Sale, error) {
	var out *sale.Sale
	err := r.s.do(ctx, func(st *state) error {
		for _, s := range st.sales {
			if match(s) {
				c := copySale(&s)
				out = &c
				return nil
			}
		}
		return sale.ErrSaleNotFound
	})
	return out, err
}

func (r *saleRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*sale.Sale, error) {
	var out []*sale.Sale
	err := r.s.do(ctx, func(st *state) error {
		for _, s := range st.sales {
			if s.SessionID == sessionID {
				c := copySale(&s)
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func copySale(s *sale.Sale) sale.Sale {
	c := *s
	c.Items = make([]*sale.SaleItem, len(s.Items))
	for i, it := range s.Items {
		item := *it
		c.Items[i] = &item
	}
	if s.Payment != nil {
		p := *s.Payment
		c.Payment = &p
	}
	return c
}

type reconciliationRepository struct{ s *Store }

func (r *reconciliationRepository) Create(ctx context.Context, e *reconciliation.Entry) error {
	return r.s.do(ctx, func(st *state) error {
		if e.Status.Open() {
			for _, other := range st.reconciliation {
				if other.Status.Open() && other.RequestKey == e.RequestKey {
					return errDuplicateOpenEntry
				}
			}
		}
		st.reconciliation[e.ID] = *e
		return nil
	})
}

func (r *reconciliationRepository) Get(ctx context.Context, id uuid.UUID) (*reconciliation.Entry, error) {
	return r.find(ctx, func(e reconciliation.Entry) bool { return e.ID == id })
}

func (r *reconciliationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*reconciliation.Entry, error) {
	return r.Get(ctx, id)
}

func (r *reconciliationRepository) GetOpenByKey(ctx context.Context, requestKey string) (*reconciliation.Entry, error) {
	return r.find(ctx, func(e reconciliation.Entry) bool { return e.Status.Open() && e.RequestKey == requestKey })
}

func (r *reconciliationRepository) find(ctx context.Context, match func(reconciliation.Entry) bool) (*reconciliation.Entry, error) {
	var out *reconciliation.Entry
	err := r.s.do(ctx, func(st *state) error {
		for _, e := range st.reconciliation {
			if match(e) {
				e := e
				out = &e
				return nil
			}
		}
		return reconciliation.ErrEntryNotFound
	})
	return out, err
}

func (r *reconciliationRepository) Update(ctx context.Context, e *reconciliation.Entry) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.reconciliation[e.ID]; !ok {
			return reconciliation.ErrEntryNotFound
		}
		st.reconciliation[e.ID] = *e
		return nil
	})
}

func (r *reconciliationRepository) List(ctx context.Context, status reconciliation.Status, limit int) ([]*reconciliation.Entry, error) {
	out, err := r.filter(ctx, func(e reconciliation.Entry) bool { return status == "" || e.Status == status })
	sort.Slice(out, func(i, j int) bool { return newest(out[i].CreatedAt, out[j].CreatedAt) })
	return capped(out, limit), err
}

func (r *reconciliationRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*reconciliation.Entry, error) {
	out, err := r.filter(ctx, func(e reconciliation.Entry) bool {
		return e.Status.Open() && !e.NextAttemptAt.After(now) && e.Attempts < maxAttempts
	})
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	return capped(out, limit), err
}

func (r *reconciliationRepository) filter(ctx context.Context, keep func(reconciliation.Entry) bool) ([]*reconciliation.Entry, error) {
	var out []*reconciliation.Entry
	err := r.s.do(ctx, func(st *state) error {
		for _, e := range st.reconciliation {
			if keep(e) {
				e := e
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Insert(ctx context.Context, msg outbox.Message) error {
	return r.s.do(ctx, func(st *state) error {
		st.outbox = append(st.outbox, msg)
		return nil
	})
}

func (r *outboxRepository) PendingBatch(ctx context.Context, maxRetry, batchSize int) ([]outbox.Message, error) {
	var out []outbox.Message
	err := r.s.do(ctx, func(st *state) error {
		for _, m := range st.outbox {
			if m.ProcessedAt == nil && m.RetryCount < maxRetry {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return capped(out, batchSize), err
}

func (r *outboxRepository) Save(ctx context.Context, msg outbox.Message) error {
	return r.s.do(ctx, func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == msg.ID {
				st.outbox[i].RetryCount = msg.RetryCount
				if msg.ProcessedAt != nil {
					st.outbox[i].ProcessedAt = msg.ProcessedAt
				}
				return nil
			}
		}
		return nil
	})
}

// Messages returns every outbox message in insertion order.
func (s *Store) Messages() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Message(nil), s.st.outbox...)
}
