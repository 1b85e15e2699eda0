package sale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
)

// PriceSource supplies the authoritative unit price of a product.
type PriceSource interface {
	CurrentPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

// Reconciler parks an attempt whose outcome is unknown. Enqueueing a key
// that already has an open entry updates that entry.
type Reconciler interface {
	Enqueue(ctx context.Context, requestKey string, payload Request, reason string) (uuid.UUID, error)
}

// Service is the sale orchestrator.
type Service interface {
	// CreateSale runs a checkout end to end. Business outcomes, including
	// validation failures, come back in the Result; the error is reserved for
	// infrastructure failures that left nothing to reconcile.
	CreateSale(ctx context.Context, req Request) (*Result, error)
	// ConfirmPayment settles a parked attempt with a payment outcome obtained
	// out of band, without contacting the gateway again.
	ConfirmPayment(ctx context.Context, req Request, auth payment.Authorization) (*Result, error)
	// Void settles a parked attempt as not paid and returns its stock.
	Void(ctx context.Context, req Request, reason string) (*Result, error)
	// Forfeit gives up on a parked attempt for good. Its request key keeps
	// replaying the indeterminate outcome, so the customer is never charged
	// again under it.
	Forfeit(ctx context.Context, requestKey, reason string) error
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	ListSessionSales(ctx context.Context, sessionID uuid.UUID) ([]*Sale, error)
}

// Dependencies are the collaborators a sale touches.
type Dependencies struct {
	Tx          database.Transactor
	Repo        Repository
	Inventory   inventory.Service
	Sessions    session.Service
	Loyalty     loyalty.Service
	Idempotency idempotency.Service
	Payments    payment.Service
	Prices      PriceSource
	Reconciler  Reconciler
	Events      outbox.Writer
	Clock       clock.Clock
	Logger      *zap.Logger
}

type service struct {
	Dependencies
	policy Policy
	// hold is how long stock stays reserved for a parked attempt.
	hold   time.Duration
	tracer trace.Tracer
}

func NewService(deps Dependencies, policy Policy, reconciliationHold time.Duration) Service {
	return &service{
		Dependencies: deps,
		policy:       policy,
		hold:         reconciliationHold,
		tracer:       otel.Tracer("github.com/georgemunganga/printa-pos/internal/modules/sale"),
	}
}

// attempt carries one run of the state machine.
type attempt struct {
	req     Request
	key     string
	resumed bool
	// prior is the outcome recorded by an earlier attempt on this key.
	prior *idempotency.Outcome
	// existing maps cart line to an active hold left by an earlier attempt.
	existing map[int]*inventory.Reservation
	state    State
	holds    []*inventory.Reservation
	totals   Totals
	log      *zap.Logger
}

func (a *attempt) advance(to State) error {
	for _, next := range validTransitions[a.state] {
		if next == to {
			a.log.Debug("sale state", zap.String("from", string(a.state)), zap.String("to", string(to)))
			a.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.state, to)
}

// atStake reports whether an earlier attempt may already have charged the customer.
func (a *attempt) atStake() bool {
	return a.resumed && ((a.prior != nil && a.prior.Status == string(OutcomeIndeterminate)) || len(a.existing) > 0)
}

// validationError marks a rejection that had no side effects.
type validationError struct{ err error }

func (e *validationError) Error() string { return e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

func invalid(err error) error { return &validationError{err: err} }

func rejected(err error) *Result {
	return &Result{Outcome: OutcomeValidationError, Reason: err.Error()}
}

func (s *service) CreateSale(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, nil)
}

func (s *service) ConfirmPayment(ctx context.Context, req Request, auth payment.Authorization) (*Result, error) {
	return s.run(ctx, req, &auth)
}

func (s *service) Void(ctx context.Context, req Request, reason string) (*Result, error) {
	return s.run(ctx, req, &payment.Authorization{Status: payment.StatusDeclined, Reason: reason})
}

func (s *service) Forfeit(ctx context.Context, requestKey, reason string) error {
	rec, err := s.Idempotency.Get(ctx, requestKey)
	if errors.Is(err, idempotency.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	res := &Result{Outcome: OutcomeIndeterminate}
	if rec.Outcome != nil && len(rec.Outcome.Payload) > 0 {
		if prior, err := decodeOutcome(rec.Outcome); err == nil {
			res = prior
		}
	}
	res.Outcome = OutcomeIndeterminate
	res.Reason = "abandoned: " + reason
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	err = s.Idempotency.Seal(ctx, requestKey, idempotency.Outcome{
		Status:  string(OutcomeIndeterminate),
		Payload: payload,
	})
	switch {
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		return nil
	case errors.Is(err, idempotency.ErrInFlight):
		return ErrAttemptRunning
	}
	return err
}

func (s *service) run(ctx context.Context, req Request, confirmed *payment.Authorization) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "sale.create",
		trace.WithAttributes(attribute.String("sale.request_key", req.RequestKey)))
	defer span.End()

	res, err := s.execute(ctx, req, confirmed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("sale.outcome", string(res.Outcome)))
	return res, nil
}

func (s *service) execute(ctx context.Context, req Request, confirmed *payment.Authorization) (*Result, error) {
	req.RequestKey = strings.TrimSpace(req.RequestKey)
	if req.RequestKey == "" {
		return rejected(idempotency.ErrKeyRequired), nil
	}
	fp, err := fingerprint(req)
	if err != nil {
		return nil, err
	}

	begin, err := s.Idempotency.Begin(ctx, req.RequestKey, fp)
	if errors.Is(err, idempotency.ErrFingerprintMismatch) {
		return rejected(ErrKeyReused), nil
	}
	if err != nil {
		return nil, fmt.Errorf("begin request %s: %w", req.RequestKey, err)
	}

	switch begin.Decision {
	case idempotency.Cached:
		return decodeOutcome(begin.Record.Outcome)
	case idempotency.Conflict:
		return &Result{Outcome: OutcomeConflict, Reason: "an attempt with this request key is still in progress"}, nil
	case idempotency.Fresh:
		if confirmed != nil {
			if err := s.Idempotency.Abort(ctx, req.RequestKey); err != nil {
				return nil, err
			}
			return rejected(ErrNothingToConfirm), nil
		}
	}

	a := &attempt{
		req:     req,
		key:     req.RequestKey,
		resumed: begin.Decision == idempotency.Resumed,
		prior:   begin.Record.Outcome,
		state:   StateValidating,
		log:     s.Logger.With(zap.String("request_key", req.RequestKey)),
	}
	if a.resumed {
		if err := s.loadExisting(ctx, a); err != nil {
			return nil, err
		}
		a.log.Info("resuming sale attempt", zap.Int("held_lines", len(a.existing)))
	}

	// A confirmed decline needs no cart checks, only the stock back.
	if confirmed != nil && confirmed.Status == payment.StatusDeclined {
		for _, h := range a.existing {
			a.holds = append(a.holds, h)
		}
		s.releaseAll(ctx, a)
		if err := a.advance(StateReleased); err != nil {
			return nil, err
		}
		return s.finish(ctx, a, &Result{Outcome: OutcomePaymentDeclined, Reason: confirmed.Reason})
	}

	if err := s.validate(ctx, a); err != nil {
		var verr *validationError
		if !errors.As(err, &verr) {
			return nil, s.abandon(ctx, a, err)
		}
		if a.atStake() {
			return s.reconcile(ctx, a, "revalidation failed: "+err.Error())
		}
		if err := a.advance(StateReleased); err != nil {
			return nil, err
		}
		if err := s.Idempotency.Abort(ctx, a.key); err != nil {
			return nil, err
		}
		a.log.Info("sale rejected", zap.Error(err))
		return rejected(err), nil
	}

	if err := a.advance(StateReserving); err != nil {
		return nil, err
	}
	failures, err := s.reserve(ctx, a)
	if err != nil {
		return nil, s.abandon(ctx, a, err)
	}
	if len(failures) > 0 {
		if a.atStake() {
			return s.reconcile(ctx, a, "stock no longer held for a possibly paid attempt")
		}
		s.releaseAll(ctx, a)
		if err := a.advance(StateReleased); err != nil {
			return nil, err
		}
		return s.finish(ctx, a, &Result{
			Outcome:             OutcomeInsufficientStock,
			ReservationFailures: failures,
			Reason:              "insufficient stock",
		})
	}

	if err := a.advance(StateAwaitingPayment); err != nil {
		return nil, err
	}
	auth := confirmed
	if auth == nil {
		auth = s.authorize(ctx, a)
	}

	switch auth.Status {
	case payment.StatusDeclined:
		s.releaseAll(ctx, a)
		if err := a.advance(StateReleased); err != nil {
			return nil, err
		}
		return s.finish(ctx, a, &Result{Outcome: OutcomePaymentDeclined, Reason: auth.Reason})
	case payment.StatusApproved:
	default:
		reason := auth.Reason
		if reason == "" {
			reason = "payment outcome unknown"
		}
		return s.reconcile(ctx, a, reason)
	}

	// The customer has paid; finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	if err := a.advance(StateCommitting); err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, a, auth)
	if err != nil {
		a.log.Error("sale commit failed", zap.Error(err))
		return s.reconcile(ctx, a, "commit failed: "+err.Error())
	}
	if err := a.advance(StateSucceeded); err != nil {
		return nil, err
	}
	a.log.Info("sale succeeded",
		zap.String("sale_id", res.SaleID.String()),
		zap.String("total", res.Sale.Total.StringFixed(2)),
	)
	return res, nil
}

func (s *service) loadExisting(ctx context.Context, a *attempt) error {
	holds, err := s.Inventory.ReservationsFor(ctx, a.key)
	if err != nil {
		return fmt.Errorf("load holds for %s: %w", a.key, err)
	}
	a.existing = make(map[int]*inventory.Reservation)
	for _, h := range holds {
		if h.Status == inventory.ReservationActive {
			a.existing[h.Line] = h
		}
	}
	return nil
}

func (s *service) validate(ctx context.Context, a *attempt) error {
	ctx, span := s.tracer.Start(ctx, "sale.validate")
	defer span.End()

	req := a.req
	switch {
	case req.SessionID == uuid.Nil:
		return invalid(ErrSessionRequired)
	case req.LocationID == uuid.Nil:
		return invalid(ErrLocationRequired)
	case len(req.Items) == 0:
		return invalid(ErrEmptyCart)
	case !req.PaymentMethod.Valid():
		return invalid(ErrInvalidMethod)
	case req.LoyaltyPointsToRedeem < 0:
		return invalid(ErrNegativePoints)
	case req.LoyaltyPointsToRedeem > 0 && req.CustomerID == nil:
		return invalid(ErrRedeemNeedsCustomer)
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return invalid(ErrInvalidQuantity)
		}
	}

	sess, err := s.Sessions.Get(ctx, req.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return invalid(err)
	}
	if err != nil {
		return err
	}
	// A customer who may already have been charged still gets their sale
	// after the register closes; commit books it as a late sale.
	if !sess.IsOpen() && !a.atStake() {
		return invalid(ErrSessionNotOpen)
	}
	if sess.LocationID != req.LocationID {
		return invalid(ErrSessionLocation)
	}
	if _, err := s.Inventory.GetLocation(ctx, req.LocationID); err != nil {
		if errors.Is(err, inventory.ErrLocationNotFound) {
			return invalid(err)
		}
		return err
	}

	// A resumed attempt keeps the prices it was quoted.
	if !a.resumed {
		for i, it := range req.Items {
			current, err := s.Prices.CurrentPrice(ctx, it.ProductID)
			if errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, catalog.ErrProductInactive) {
				return invalid(fmt.Errorf("line %d: %w", i, err))
			}
			if err != nil {
				return err
			}
			if !withinTolerance(it.UnitPrice, current, s.policy.Tolerance) {
				return invalid(fmt.Errorf("%w: line %d submitted %s, current %s",
					ErrStalePrice, i, it.UnitPrice.StringFixed(2), current.StringFixed(2)))
			}
		}
	}

	if req.LoyaltyPointsToRedeem > 0 {
		balance, err := s.Loyalty.Balance(ctx, *req.CustomerID)
		if err != nil {
			return err
		}
		if balance < req.LoyaltyPointsToRedeem {
			return invalid(ErrInsufficientPoints)
		}
	}

	totals, err := ComputeTotals(req.Items, req.LoyaltyPointsToRedeem, req.CustomerID != nil, s.policy)
	if err != nil {
		return invalid(err)
	}
	a.totals = totals
	return nil
}

// reserve holds stock for every line. After the first shortfall the
// remaining lines are only checked, so a failing cart does not briefly
// starve other registers.
func (s *service) reserve(ctx context.Context, a *attempt) ([]LineFailure, error) {
	ctx, span := s.tracer.Start(ctx, "sale.reserve")
	defer span.End()

	a.holds = make([]*inventory.Reservation, len(a.req.Items))
	var failures []LineFailure
	for i, it := range a.req.Items {
		if prev, ok := a.existing[i]; ok && prev.ProductID == it.ProductID && prev.Quantity == it.Quantity {
			a.holds[i] = prev
			continue
		}
		if len(failures) > 0 {
			rec, err := s.Inventory.GetRecord(ctx, it.ProductID, a.req.LocationID)
			available := 0
			switch {
			case err == nil:
				available = rec.Available()
			case !errors.Is(err, inventory.ErrRecordNotFound):
				return nil, err
			}
			if available < it.Quantity {
				failures = append(failures, LineFailure{Line: i, ProductID: it.ProductID, Requested: it.Quantity, Available: available})
			}
			continue
		}

		res, err := s.Inventory.Reserve(ctx, inventory.ReserveRequest{
			ProductID:  it.ProductID,
			LocationID: a.req.LocationID,
			Quantity:   it.Quantity,
			RequestKey: a.key,
			Line:       i,
		})
		if ise, ok := inventory.IsInsufficientStock(err); ok {
			failures = append(failures, LineFailure{Line: i, ProductID: it.ProductID, Requested: ise.Requested, Available: ise.Available})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reserve line %d: %w", i, err)
		}
		a.holds[i] = res
	}
	span.SetAttributes(attribute.Int("sale.shortfalls", len(failures)))
	return failures, nil
}

func (s *service) authorize(ctx context.Context, a *attempt) *payment.Authorization {
	ctx, span := s.tracer.Start(ctx, "sale.payment",
		trace.WithAttributes(attribute.String("payment.method", string(a.req.PaymentMethod))))
	defer span.End()

	auth, err := s.Payments.Authorize(ctx, payment.AuthorizeRequest{
		Amount:    a.totals.Total,
		Currency:  s.policy.Currency,
		Method:    a.req.PaymentMethod,
		Reference: a.key,
	})
	if err != nil {
		span.RecordError(err)
		return &payment.Authorization{Status: payment.StatusTimeout, Reason: err.Error()}
	}
	span.SetAttributes(attribute.String("payment.status", string(auth.Status)))
	return auth
}

// commit applies every write of a paid sale in one transaction.
func (s *service) commit(ctx context.Context, a *attempt, auth *payment.Authorization) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "sale.commit")
	defer span.End()

	now := s.Clock.Now()
	sale := s.buildSale(a, auth, now)
	res := &Result{Outcome: OutcomeSucceeded, SaleID: &sale.ID, Sale: sale}
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}

	err = s.Tx.WithTx(ctx, func(ctx context.Context) error {
		for _, h := range lockOrder(a.holds) {
			if err := s.Inventory.Commit(ctx, h.ID); err != nil {
				return fmt.Errorf("commit reservation %s: %w", h.ID, err)
			}
		}
		if err := s.Repo.Create(ctx, sale); err != nil {
			return err
		}
		if sale.CustomerID != nil && (sale.LoyaltyPointsRedeemed > 0 || sale.LoyaltyPointsEarned > 0) {
			if err := s.Loyalty.Apply(ctx, *sale.CustomerID, sale.ID, sale.LoyaltyPointsRedeemed, sale.LoyaltyPointsEarned); err != nil {
				return fmt.Errorf("apply loyalty: %w", err)
			}
		}
		err := s.Sessions.ApplySale(ctx, sale.SessionID, sale.PaymentMethod, sale.Total)
		if errors.Is(err, session.ErrSessionClosed) && a.atStake() {
			err = s.Sessions.ApplyLateSale(ctx, sale.SessionID, sale.PaymentMethod, sale.Total)
		}
		if err != nil {
			return fmt.Errorf("apply to session: %w", err)
		}
		if err := s.Idempotency.Complete(ctx, a.key, idempotency.Outcome{
			Status:  string(OutcomeSucceeded),
			SaleID:  &sale.ID,
			Payload: payload,
		}); err != nil {
			return fmt.Errorf("complete request key: %w", err)
		}
		return s.Events.Enqueue(ctx, outbox.EventSaleCompleted, CompletedEvent{
			SaleID:        sale.ID,
			RequestKey:    sale.RequestKey,
			SessionID:     sale.SessionID,
			LocationID:    sale.LocationID,
			Total:         sale.Total,
			Currency:      sale.Currency,
			PaymentMethod: sale.PaymentMethod,
			CustomerID:    sale.CustomerID,
			OccurredAt:    now,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

// lockOrder returns the holds sorted by inventory record so that concurrent
// commits take row locks in the same order.
func lockOrder(holds []*inventory.Reservation) []*inventory.Reservation {
	out := make([]*inventory.Reservation, len(holds))
	copy(out, holds)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].LocationID.String() < out[j].LocationID.String()
	})
	return out
}

func (s *service) buildSale(a *attempt, auth *payment.Authorization, now time.Time) *Sale {
	sale := &Sale{
		ID:                    uuid.New(),
		RequestKey:            a.key,
		SessionID:             a.req.SessionID,
		LocationID:            a.req.LocationID,
		Subtotal:              a.totals.Subtotal,
		DiscountAmount:        a.totals.Discount,
		TaxAmount:             a.totals.Tax,
		Total:                 a.totals.Total,
		Currency:              s.policy.Currency,
		PaymentMethod:         a.req.PaymentMethod,
		CustomerID:            a.req.CustomerID,
		LoyaltyPointsRedeemed: a.req.LoyaltyPointsToRedeem,
		LoyaltyPointsEarned:   a.totals.PointsEarned,
		CreatedAt:             now,
	}
	for i, it := range a.req.Items {
		sale.Items = append(sale.Items, &SaleItem{
			ID:            uuid.New(),
			SaleID:        sale.ID,
			Line:          i,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			LineTotal:     a.totals.Lines[i],
			ReservationID: a.holds[i].ID,
		})
	}
	if auth.AuthCode != "" {
		code := auth.AuthCode
		sale.PaymentReference = &code
	}
	sale.Payment = &Payment{
		ID:        uuid.New(),
		SaleID:    sale.ID,
		Method:    a.req.PaymentMethod,
		Amount:    sale.Total,
		AuthCode:  auth.AuthCode,
		CardLast4: auth.CardLast4,
		CardType:  auth.CardType,
		Reference: a.key,
		CreatedAt: now,
	}
	return sale
}

// reconcile parks the attempt: holds stay active for the reconciliation
// window, an entry is queued and the key stays open for a same-key retry.
func (s *service) reconcile(ctx context.Context, a *attempt, reason string) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "sale.reconcile")
	defer span.End()

	if err := a.advance(StateReconciling); err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	res := &Result{Outcome: OutcomeIndeterminate, Reason: reason}
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.Inventory.Extend(ctx, a.key, now.Add(s.hold)); err != nil {
			return fmt.Errorf("extend holds: %w", err)
		}
		id, err := s.Reconciler.Enqueue(ctx, a.key, a.req, reason)
		if err != nil {
			return fmt.Errorf("enqueue reconciliation: %w", err)
		}
		res.ReconciliationID = &id
		payload, err := json.Marshal(res)
		if err != nil {
			return err
		}
		if err := s.Idempotency.MarkIndeterminate(ctx, a.key, idempotency.Outcome{
			Status:  string(OutcomeIndeterminate),
			Payload: payload,
		}); err != nil {
			return fmt.Errorf("mark request key indeterminate: %w", err)
		}
		return s.Events.Enqueue(ctx, outbox.EventReconciliationOpened, ReconciliationEvent{
			EntryID:    id,
			RequestKey: a.key,
			Reason:     reason,
			OccurredAt: now,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.Error("could not park sale for reconciliation", zap.String("reason", reason), zap.Error(err))
		return nil, fmt.Errorf("park sale %s for reconciliation: %w", a.key, err)
	}
	a.log.Warn("sale outcome indeterminate",
		zap.String("reason", reason),
		zap.String("reconciliation_id", res.ReconciliationID.String()),
	)
	return res, nil
}

// finish records a terminal failure so retries of the key replay it.
func (s *service) finish(ctx context.Context, a *attempt, res *Result) (*Result, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	if err := s.Idempotency.Complete(ctx, a.key, idempotency.Outcome{
		Status:  string(res.Outcome),
		Payload: payload,
	}); err != nil {
		return nil, fmt.Errorf("complete request key: %w", err)
	}
	a.log.Info("sale not completed", zap.String("outcome", string(res.Outcome)), zap.String("reason", res.Reason))
	return res, nil
}

// abandon cleans up after an infrastructure error before payment. A fresh
// attempt is undone; a resumed one is left for its lease to lapse.
func (s *service) abandon(ctx context.Context, a *attempt, cause error) error {
	if a.resumed {
		return cause
	}
	ctx = context.WithoutCancel(ctx)
	s.releaseAll(ctx, a)
	if err := s.Idempotency.Abort(ctx, a.key); err != nil {
		a.log.Error("could not free request key", zap.Error(err))
	}
	return cause
}

func (s *service) releaseAll(ctx context.Context, a *attempt) {
	for _, h := range a.holds {
		if h == nil {
			continue
		}
		if err := s.Inventory.Release(ctx, h.ID); err != nil {
			// The sweeper returns the stock once the hold expires.
			a.log.Warn("release failed", zap.String("reservation_id", h.ID.String()), zap.Error(err))
		}
	}
}

func (s *service) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.Repo.Get(ctx, id)
}

func (s *service) ListSessionSales(ctx context.Context, sessionID uuid.UUID) ([]*Sale, error) {
	return s.Repo.ListBySession(ctx, sessionID)
}

// fingerprint identifies the payload of a request independent of its key.
func fingerprint(req Request) (string, error) {
	req.RequestKey = ""
	return idempotency.Fingerprint(req)
}

func decodeOutcome(o *idempotency.Outcome) (*Result, error) {
	if o == nil {
		return nil, errors.New("completed request key has no outcome")
	}
	if len(o.Payload) == 0 {
		return &Result{Outcome: Outcome(o.Status), SaleID: o.SaleID}, nil
	}
	res := &Result{}
	if err := json.Unmarshal(o.Payload, res); err != nil {
		return nil, fmt.Errorf("decode cached outcome: %w", err)
	}
	return res, nil
}
