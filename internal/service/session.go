package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/pricing"
	apperrors "go-pos-ws/pkg/errors"
	"go-pos-ws/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mutation operation names, used as metric labels.
const (
	OpAddItem           = "add_item"
	OpSetQuantity       = "set_quantity"
	OpSetItemDiscount   = "set_item_discount"
	OpRemoveItem        = "remove_item"
	OpClear             = "clear"
	OpSetGlobalDiscount = "set_global_discount"
	OpSetPaymentMethod  = "set_payment_method"
)

// MutationResult reports the outcome of a cart change. Applied is false when
// the change was ignored, for example a quantity above the available stock.
type MutationResult struct {
	Applied     bool             `json:"applied"`
	Preview     pricing.Totals   `json:"preview"`
	Transaction *TransactionView `json:"transaction"`
}

// SessionState is a snapshot of an open cart.
type SessionState struct {
	TransactionID  uuid.UUID           `json:"transaction_id"`
	Lines          []model.CartLine    `json:"lines"`
	GlobalDiscount decimal.Decimal     `json:"global_discount"`
	PaymentMethod  model.PaymentMethod `json:"payment_method"`
	Preview        pricing.Totals      `json:"preview"`
	Transaction    *TransactionView    `json:"transaction"`
}

type FinalizeInput struct {
	CashReceived *decimal.Decimal
	Notes        *string
}

type FinalizeResult struct {
	Transaction  *TransactionView `json:"transaction"`
	Number       string           `json:"number"`
	Total        decimal.Decimal  `json:"total"`
	CashReceived decimal.Decimal  `json:"cash_received"`
	Change       decimal.Decimal  `json:"change"`
}

type DraftInput struct {
	CashierID      string
	CashierName    string
	Notes          *string
	ClearCartAfter bool
}

type DraftResult struct {
	Saved  *TransactionView `json:"saved"`
	Number string           `json:"number"`
	// Next is the fresh draft the session moved to when the cart was cleared.
	Next *TransactionView `json:"next,omitempty"`
}

type command struct {
	ctx   context.Context
	fn    func(context.Context) error
	reply chan error
}

// CartSession is the handle to one open transaction. All operations are
// queued on the session's inbox and run one at a time by its goroutine, so
// the cart is never written concurrently.
type CartSession struct {
	svc      *Service
	inbox    chan command
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	idMu sync.RWMutex
	id   uuid.UUID

	// owned by the run goroutine
	engine         *cart.Engine
	globalDiscount decimal.Decimal
	method         model.PaymentMethod
	taxRate        decimal.Decimal
	notes          string
	cashierID      string
	cashierName    string
	canonical      *TransactionView
	finished       bool
}

func newCartSession(svc *Service, view *TransactionView) *CartSession {
	s := &CartSession{
		svc:    svc,
		inbox:  make(chan command, svc.inboxSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		engine: cart.NewEngine(),
	}
	s.adopt(view)
	return s
}

// ID returns the id of the transaction the session currently edits.
func (s *CartSession) ID() uuid.UUID {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.id
}

func (s *CartSession) setID(id uuid.UUID) {
	s.idMu.Lock()
	s.id = id
	s.idMu.Unlock()
}

// Done is closed once the session has stopped.
func (s *CartSession) Done() <-chan struct{} {
	return s.done
}

func (s *CartSession) run() {
	released := false
	defer func() {
		if !released {
			s.svc.release(s)
		}
		close(s.done)
	}()

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		select {
		case <-s.quit:
			return
		case cmd := <-s.inbox:
			ctx, cancel := s.svc.operationContext(cmd.ctx)
			err := cmd.fn(ctx)
			cancel()
			if s.finished {
				// leave the registry before the caller sees the result
				s.svc.release(s)
				released = true
			}
			cmd.reply <- err
			if s.finished {
				return
			}
		}
	}
}

func (s *CartSession) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// do queues fn and waits for its result.
func (s *CartSession) do(ctx context.Context, fn func(context.Context) error) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- command{ctx: ctx, fn: fn, reply: reply}:
	case <-s.done:
		return sessionClosed()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return sessionClosed()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// adopt replaces the in-memory cart with the stored transaction.
func (s *CartSession) adopt(view *TransactionView) {
	s.setID(view.ID)
	s.engine.Restore(toLines(view.Items))
	s.globalDiscount = pricing.NonNegative(view.Discount)
	s.method = view.PaymentMethod
	if !s.method.IsValid() {
		s.method = model.PaymentCash
	}
	s.taxRate = view.TaxRate
	s.notes = view.Notes
	s.cashierID = view.CashierID
	s.cashierName = view.CashierName
	s.canonical = view
	s.finished = view.Status.IsFinalized()
}

func (s *CartSession) logContext(ctx context.Context) context.Context {
	ctx = s.svc.log.WithTransactionID(ctx, s.ID().String())
	return s.svc.log.WithCashierID(ctx, s.cashierID)
}

func (s *CartSession) ensureOpen() error {
	if s.finished {
		return alreadyFinalized()
	}
	return nil
}

// refreshTaxRate reads the store settings. When they cannot be read the
// last known rate stays in use.
func (s *CartSession) refreshTaxRate(ctx context.Context) decimal.Decimal {
	settings, err := s.svc.settings.GetStoreSettings(ctx)
	if err != nil {
		s.svc.log.Warn(ctx, "store settings unavailable, keeping previous tax rate")
		return s.taxRate
	}
	s.taxRate = pricing.TaxRate(settings)
	return s.taxRate
}

func (s *CartSession) preview() pricing.Totals {
	return pricing.Calculate(s.engine.Lines(), s.globalDiscount, s.taxRate)
}

func (s *CartSession) state() *SessionState {
	return &SessionState{
		TransactionID:  s.ID(),
		Lines:          s.engine.Lines(),
		GlobalDiscount: s.globalDiscount,
		PaymentMethod:  s.method,
		Preview:        s.preview(),
		Transaction:    s.canonical,
	}
}

type persistPlan struct {
	items   bool
	payment bool
}

// mutate applies change to the cart and writes the result through. When the
// write fails the cart is put back the way it was.
func (s *CartSession) mutate(ctx context.Context, op string, plan persistPlan, change func(context.Context) (bool, error)) (*MutationResult, error) {
	var result *MutationResult
	err := s.do(ctx, func(ctx context.Context) error {
		if err := s.ensureOpen(); err != nil {
			return err
		}
		ctx = s.logContext(ctx)

		engineBefore := s.engine.Clone()
		discountBefore, methodBefore := s.globalDiscount, s.method

		applied, err := change(ctx)
		if err != nil {
			s.svc.metrics.IncMutation(op, metrics.OutcomeRejected)
			return err
		}
		if !applied {
			s.svc.metrics.IncMutation(op, metrics.OutcomeIgnored)
			s.svc.log.Debug(s.svc.log.WithField(ctx, "op", op), "cart mutation ignored")
			result = &MutationResult{Applied: false, Preview: s.preview(), Transaction: s.canonical}
			return nil
		}

		s.refreshTaxRate(ctx)
		totals := s.preview()
		if err := s.persist(ctx, op, plan, totals); err != nil {
			s.engine = engineBefore
			s.globalDiscount, s.method = discountBefore, methodBefore
			s.svc.metrics.IncMutation(op, metrics.OutcomeFailed)
			s.svc.log.Error(s.svc.log.WithField(ctx, "op", op), "cart mutation not saved, rolled back", err)
			return storeError(err, "could not save")
		}

		s.svc.metrics.IncMutation(op, metrics.OutcomeApplied)
		s.reload(ctx)
		result = &MutationResult{Applied: true, Preview: totals, Transaction: s.canonical}
		return nil
	})
	return result, err
}

func (s *CartSession) persist(ctx context.Context, op string, plan persistPlan, totals pricing.Totals) error {
	start := time.Now()
	defer func() { s.svc.metrics.ObservePersist(op, time.Since(start)) }()

	id := s.ID()
	if plan.items {
		if err := s.svc.sync.SaveItems(ctx, id, s.engine.Lines()); err != nil {
			return err
		}
	}
	if err := s.svc.sync.SaveTotals(ctx, id, totals); err != nil {
		return err
	}
	if plan.payment {
		if err := s.svc.sync.SavePayment(ctx, id, s.method, totals.Discount); err != nil {
			return err
		}
	}
	return nil
}

// reload refreshes the canonical view. A failed read keeps the previous
// view; the write it follows has already succeeded.
func (s *CartSession) reload(ctx context.Context) {
	view, err := s.svc.sync.Reload(ctx, s.ID())
	if err != nil {
		s.svc.log.Error(ctx, "reload canonical transaction", err)
		return
	}
	s.canonical = view
}

func (s *CartSession) product(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.svc.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// AddProduct adds one unit of the product, or starts a line for it.
func (s *CartSession) AddProduct(ctx context.Context, productID uuid.UUID) (*MutationResult, error) {
	return s.mutate(ctx, OpAddItem, persistPlan{items: true}, func(ctx context.Context) (bool, error) {
		product, err := s.product(ctx, productID)
		if err != nil {
			return false, err
		}
		return s.engine.AddOrIncrement(product), nil
	})
}

// SetQuantity sets a line's quantity. Zero or less removes the line.
func (s *CartSession) SetQuantity(ctx context.Context, productID uuid.UUID, qty int) (*MutationResult, error) {
	return s.mutate(ctx, OpSetQuantity, persistPlan{items: true}, func(ctx context.Context) (bool, error) {
		if qty <= 0 {
			return s.engine.Remove(productID), nil
		}
		product, err := s.product(ctx, productID)
		if err != nil {
			return false, err
		}
		return s.engine.SetQuantity(product, qty), nil
	})
}

func (s *CartSession) SetItemDiscount(ctx context.Context, productID uuid.UUID, amount decimal.Decimal) (*MutationResult, error) {
	return s.mutate(ctx, OpSetItemDiscount, persistPlan{items: true}, func(context.Context) (bool, error) {
		return s.engine.SetItemDiscount(productID, amount), nil
	})
}

func (s *CartSession) RemoveItem(ctx context.Context, productID uuid.UUID) (*MutationResult, error) {
	return s.mutate(ctx, OpRemoveItem, persistPlan{items: true}, func(context.Context) (bool, error) {
		return s.engine.Remove(productID), nil
	})
}

func (s *CartSession) Clear(ctx context.Context) (*MutationResult, error) {
	return s.mutate(ctx, OpClear, persistPlan{items: true, payment: true}, func(context.Context) (bool, error) {
		cleared := s.engine.Clear()
		hadDiscount := !s.globalDiscount.IsZero()
		s.globalDiscount = decimal.Zero
		return cleared || hadDiscount, nil
	})
}

// SetGlobalDiscount sets the cart-level discount. Negative amounts become
// zero; amounts above the subtotal are capped when totals are computed.
func (s *CartSession) SetGlobalDiscount(ctx context.Context, amount decimal.Decimal) (*MutationResult, error) {
	return s.mutate(ctx, OpSetGlobalDiscount, persistPlan{payment: true}, func(context.Context) (bool, error) {
		amount = pricing.NonNegative(amount)
		if amount.Equal(s.globalDiscount) {
			return false, nil
		}
		s.globalDiscount = amount
		return true, nil
	})
}

func (s *CartSession) SetPaymentMethod(ctx context.Context, method model.PaymentMethod) (*MutationResult, error) {
	return s.mutate(ctx, OpSetPaymentMethod, persistPlan{payment: true}, func(context.Context) (bool, error) {
		if !method.IsValid() {
			return false, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
		}
		if method == s.method {
			return false, nil
		}
		s.method = method
		return true, nil
	})
}

// State returns a snapshot of the cart.
func (s *CartSession) State(ctx context.Context) (*SessionState, error) {
	var state *SessionState
	err := s.do(ctx, func(context.Context) error {
		state = s.state()
		return nil
	})
	return state, err
}

// Finalize takes payment and moves the draft to PAID. The session stops
// once the transaction is finalized.
func (s *CartSession) Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	var result *FinalizeResult
	err := s.do(ctx, func(ctx context.Context) error {
		if err := s.ensureOpen(); err != nil {
			return err
		}
		ctx = s.logContext(ctx)

		// 1. Nothing to sell, nothing written
		if s.engine.IsEmpty() {
			s.svc.metrics.IncFinalization(metrics.OutcomeRejected)
			return apperrors.New(apperrors.CodeEmptyCart, "cart has no items")
		}

		// 2. Price with the current settings
		s.refreshTaxRate(ctx)
		totals := s.preview()

		// 3. Check the tender
		received, change, err := settle(s.method, totals.Total, in.CashReceived)
		if err != nil {
			s.svc.metrics.IncFinalization(metrics.OutcomeRejected)
			return err
		}
		notes := s.notes
		if in.Notes != nil {
			notes = *in.Notes
		}

		// 4. Totals, payment, then the status change
		id := s.ID()
		start := time.Now()
		err = s.svc.sync.SaveTotals(ctx, id, totals)
		if err == nil {
			err = s.svc.sync.SavePayment(ctx, id, s.method, totals.Discount)
		}
		if err == nil {
			err = s.svc.store.FinalizeTransaction(ctx, id, received, change, notes, s.svc.now())
		}
		s.svc.metrics.ObservePersist("finalize", time.Since(start))
		if err != nil {
			s.svc.metrics.IncFinalization(metrics.OutcomeFailed)
			s.svc.log.Error(ctx, "finalize not saved", err)
			return storeError(err, "could not save")
		}

		// 5. Canonical state
		s.finished = true
		s.notes = notes
		s.reload(ctx)
		s.svc.metrics.IncFinalization(metrics.OutcomeApplied)
		s.svc.log.Info(ctx, "transaction finalized")

		createdAt := s.canonical.CreatedAt
		result = &FinalizeResult{
			Transaction:  s.canonical,
			Number:       TransactionNumber(model.StatusPaid, id, createdAt, s.svc.loc),
			Total:        totals.Total,
			CashReceived: received,
			Change:       change,
		}
		return nil
	})
	return result, err
}

// settle checks the tender against total and returns what is recorded as
// received and the change due.
func settle(method model.PaymentMethod, total decimal.Decimal, cashReceived *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	switch method {
	case model.PaymentCash:
		// no tender counts as nothing received
		received := decimal.Zero
		if cashReceived != nil {
			received = *cashReceived
		}
		if received.LessThan(total) {
			return decimal.Zero, decimal.Zero, apperrors.New(apperrors.CodeInsufficientPayment, "amount received is less than total due").
				WithDetails(map[string]string{
					"total":    total.StringFixed(pricing.MoneyScale),
					"received": received.StringFixed(pricing.MoneyScale),
				})
		}
		return received, pricing.Change(received, total), nil
	case model.PaymentCard, model.PaymentTransfer, model.PaymentQRIS:
		return total, decimal.Zero, nil
	}
	return decimal.Zero, decimal.Zero, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
}

// SaveDraft writes the cart as a held draft. With ClearCartAfter the
// session moves on to a new empty draft and the saved one stays stored.
func (s *CartSession) SaveDraft(ctx context.Context, in DraftInput) (*DraftResult, error) {
	var result *DraftResult
	err := s.do(ctx, func(ctx context.Context) error {
		if err := s.ensureOpen(); err != nil {
			return err
		}
		ctx = s.logContext(ctx)

		cashierID, cashierName := s.cashierID, s.cashierName
		if in.CashierID != "" {
			cashierID, cashierName = in.CashierID, in.CashierName
		}
		notes := s.notes
		if in.Notes != nil {
			notes = *in.Notes
		}

		// 1. Write the whole cart without payment
		s.refreshTaxRate(ctx)
		totals := s.preview()
		id := s.ID()
		if err := s.persist(ctx, "save_draft", persistPlan{items: true, payment: true}, totals); err != nil {
			s.svc.log.Error(ctx, "draft not saved", err)
			return storeError(err, "could not save")
		}
		if err := s.svc.store.UpdateTransactionDraft(ctx, id, cashierID, cashierName, notes); err != nil {
			s.svc.log.Error(ctx, "draft not saved", err)
			return storeError(err, "could not save")
		}
		s.cashierID, s.cashierName, s.notes = cashierID, cashierName, notes

		// 2. Read back what was stored
		s.reload(ctx)
		result = &DraftResult{
			Saved:  s.canonical,
			Number: TransactionNumber(model.StatusDraft, id, s.canonical.CreatedAt, s.svc.loc),
		}
		if !in.ClearCartAfter {
			return nil
		}

		// 3. Move on to a fresh draft
		next, err := s.svc.store.CreateEmptyDraft(ctx, cashierID, cashierName)
		if err != nil {
			s.svc.log.Error(ctx, "create next draft", err)
			return storeError(err, "could not save")
		}
		nextView := newTransactionView(next, s.svc.loc)
		s.adopt(nextView)
		s.svc.rekey(s, id, next.ID)
		s.svc.sync.feed.Publish(ctx, nextView)
		result.Next = nextView
		return nil
	})
	return result, err
}

// Resync rebuilds the cart from the store's copy of the transaction.
func (s *CartSession) Resync(ctx context.Context) (*SessionState, error) {
	var state *SessionState
	err := s.do(ctx, func(ctx context.Context) error {
		view, err := s.svc.sync.Reload(ctx, s.ID())
		if err != nil {
			return storeError(err, "could not load transaction")
		}
		s.adopt(view)
		state = s.state()
		return nil
	})
	return state, err
}
