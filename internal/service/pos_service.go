package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/pricing"
	"go-pos-ws/internal/repository"
	apperrors "go-pos-ws/pkg/errors"
	"go-pos-ws/pkg/logger"
	"go-pos-ws/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	defaultInboxSize        = 16
	defaultOperationTimeout = 10 * time.Second
)

// ProductCatalog is the read side of the catalog the cart prices from. It
// only ever returns active products.
type ProductCatalog interface {
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

// SettingsProvider supplies the store-wide tax configuration.
type SettingsProvider interface {
	GetStoreSettings(ctx context.Context) (*model.StoreSetting, error)
}

type Options struct {
	Catalog          ProductCatalog
	Settings         SettingsProvider
	Store            repository.TransactionRepository
	Publisher        Publisher
	Metrics          *metrics.CartMetrics
	Logger           *logger.Logger
	Location         *time.Location
	InboxSize        int
	OperationTimeout time.Duration
	Now              func() time.Time
}

type CheckoutLine struct {
	ProductID uuid.UUID       `json:"product_id" validate:"uuid_required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	Discount  decimal.Decimal `json:"discount" validate:"decimal_gte0"`
}

// CheckoutInput describes a cart built outside a session and sold in one step.
type CheckoutInput struct {
	CashierID      string              `json:"-"`
	CashierName    string              `json:"-"`
	Lines          []CheckoutLine      `json:"lines" validate:"required,min=1,dive"`
	GlobalDiscount decimal.Decimal     `json:"global_discount" validate:"decimal_gte0"`
	PaymentMethod  model.PaymentMethod `json:"payment_method" validate:"required"`
	CashReceived   *decimal.Decimal    `json:"cash_received" validate:"omitempty,decimal_gte0"`
	Notes          string              `json:"notes"`
}

// Service owns the open cart sessions and the transaction lifecycle.
type Service struct {
	catalog   ProductCatalog
	settings  SettingsProvider
	store     repository.TransactionRepository
	sync      *Syncer
	feed      *Feed
	metrics   *metrics.CartMetrics
	log       *logger.Logger
	loc       *time.Location
	now       func() time.Time
	inboxSize int
	opTimeout time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*CartSession
	closed   bool
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}

	feed := NewFeed(opts.Publisher, opts.Logger)
	return &Service{
		catalog:   opts.Catalog,
		settings:  opts.Settings,
		store:     opts.Store,
		sync:      NewSyncer(opts.Store, feed, opts.Location),
		feed:      feed,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		loc:       opts.Location,
		now:       opts.Now,
		inboxSize: opts.InboxSize,
		opTimeout: opts.OperationTimeout,
		sessions:  make(map[uuid.UUID]*CartSession),
	}
}

// Initialize opens a sale: an empty DRAFT is stored and a session for it
// is started.
func (s *Service) Initialize(ctx context.Context, cashierID, cashierName string) (*CartSession, error) {
	if cashierID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "cashier id is required")
	}
	if s.isClosed() {
		return nil, sessionClosed()
	}

	draft, err := s.store.CreateEmptyDraft(ctx, cashierID, cashierName)
	if err != nil {
		s.log.Error(s.log.WithCashierID(ctx, cashierID), "create draft", err)
		return nil, storeError(err, "could not save")
	}
	view := newTransactionView(draft, s.loc)
	s.feed.Publish(ctx, view)

	session, err := s.start(view)
	if err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithTransactionID(s.log.WithCashierID(ctx, cashierID), draft.ID.String()), "cart session opened")
	return session, nil
}

// Resume reopens a stored draft, rebuilding the cart from its items. An
// already open session for the id is returned as is.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*CartSession, error) {
	if session, ok := s.lookup(id); ok {
		return session, nil
	}

	transaction, err := s.store.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "could not load transaction")
	}
	if transaction.Status != model.StatusDraft {
		return nil, apperrors.New(apperrors.CodeStateConflict, "only drafts can be resumed").
			WithDetails(map[string]string{"status": transaction.Status.String()})
	}
	return s.start(newTransactionView(transaction, s.loc))
}

// Session returns the open session editing id.
func (s *Service) Session(id uuid.UUID) (*CartSession, error) {
	session, ok := s.lookup(id)
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "no open cart session for transaction")
	}
	return session, nil
}

// Checkout sells a cart built by the caller in a single write. The
// transaction is stored directly as COMPLETED.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*FinalizeResult, error) {
	if !in.PaymentMethod.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", in.PaymentMethod))
	}
	ctx = s.log.WithCashierID(ctx, in.CashierID)

	// 1. Build the cart with the same rules a session applies
	engine := cart.NewEngine()
	var overStock []string
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			continue
		}
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		current, _ := engine.Line(product.ID)
		if !engine.SetQuantity(product, current.Quantity+line.Quantity) {
			overStock = append(overStock, product.ID.String())
			continue
		}
		engine.SetItemDiscount(product.ID, current.Discount.Add(line.Discount))
	}
	if len(overStock) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity exceeds available stock").
			WithDetails(map[string][]string{"product_ids": overStock})
	}
	if engine.IsEmpty() {
		s.metrics.IncFinalization(metrics.OutcomeRejected)
		return nil, apperrors.New(apperrors.CodeEmptyCart, "cart has no items")
	}

	// 2. Price and settle
	settings, err := s.settings.GetStoreSettings(ctx)
	if err != nil {
		return nil, storeError(err, "could not load store settings")
	}
	lines := engine.Lines()
	totals := pricing.Calculate(lines, pricing.NonNegative(in.GlobalDiscount), pricing.TaxRate(settings))
	received, change, err := settle(in.PaymentMethod, totals.Total, in.CashReceived)
	if err != nil {
		s.metrics.IncFinalization(metrics.OutcomeRejected)
		return nil, err
	}

	// 3. One write, already completed
	now := s.now()
	transaction := &model.Transaction{
		Status:        model.StatusCompleted,
		CashierID:     in.CashierID,
		CashierName:   in.CashierName,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Tax:           totals.Tax,
		Total:         totals.Total,
		TaxRate:       totals.TaxRate,
		PaymentMethod: in.PaymentMethod,
		CashReceived:  received,
		CashChange:    change,
		Notes:         in.Notes,
		PaidAt:        &now,
		CompletedAt:   &now,
		Items:         toItems(lines),
	}
	transaction.CreatedBy = in.CashierID
	transaction.UpdatedBy = in.CashierID
	if err := s.store.CreateTransaction(ctx, transaction); err != nil {
		s.metrics.IncFinalization(metrics.OutcomeFailed)
		s.log.Error(ctx, "checkout not saved", err)
		return nil, storeError(err, "could not save")
	}
	s.metrics.IncFinalization(metrics.OutcomeApplied)

	view, err := s.sync.Reload(ctx, transaction.ID)
	if err != nil {
		s.log.Error(ctx, "reload checkout", err)
		view = newTransactionView(transaction, s.loc)
	}
	return &FinalizeResult{
		Transaction:  view,
		Number:       view.Number,
		Total:        totals.Total,
		CashReceived: received,
		Change:       change,
	}, nil
}

// Complete marks a PAID transaction COMPLETED. Completing a COMPLETED
// transaction is a no-op.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*TransactionView, error) {
	transaction, err := s.store.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "could not load transaction")
	}
	ctx = s.log.WithTransactionID(ctx, id.String())

	switch transaction.Status {
	case model.StatusCompleted:
		return newTransactionView(transaction, s.loc), nil
	case model.StatusDraft:
		return nil, apperrors.New(apperrors.CodeStateConflict, "a draft must be paid before it is completed")
	case model.StatusPaid:
		err := s.store.CompleteTransaction(ctx, id, s.now())
		if errors.Is(err, repository.ErrStatusChanged) {
			// lost a race with another completer
			current, getErr := s.store.GetTransactionByID(ctx, id)
			if getErr == nil && current.Status == model.StatusCompleted {
				return newTransactionView(current, s.loc), nil
			}
		}
		if err != nil {
			return nil, storeError(err, "could not save")
		}
		view, err := s.sync.Reload(ctx, id)
		if err != nil {
			return nil, storeError(err, "could not load transaction")
		}
		s.log.Info(ctx, "transaction completed")
		return view, nil
	}
	return nil, apperrors.New(apperrors.CodeInternal, fmt.Sprintf("unknown transaction status %q", transaction.Status))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*TransactionView, error) {
	transaction, err := s.store.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "could not load transaction")
	}
	return newTransactionView(transaction, s.loc), nil
}

func (s *Service) List(ctx context.Context, filter repository.TransactionFilter) ([]TransactionView, error) {
	transactions, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, storeError(err, "could not load transactions")
	}
	views := make([]TransactionView, len(transactions))
	for i := range transactions {
		views[i] = *newTransactionView(&transactions[i], s.loc)
	}
	return views, nil
}

// Watch streams the canonical state of a transaction, starting with the
// current one. The channel is closed when ctx ends.
func (s *Service) Watch(ctx context.Context, id uuid.UUID) (<-chan TransactionView, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ch, cancel := s.feed.Subscribe(id, current)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, nil
}

// Close stops the session for id. Its draft stays stored.
func (s *Service) Close(ctx context.Context, id uuid.UUID) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	session.stop()
	select {
	case <-session.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops every session and refuses new ones.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*CartSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.stop()
	}
	var err error
	for _, session := range sessions {
		select {
		case <-session.Done():
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("session %s: %w", session.ID(), ctx.Err()))
		}
	}
	return err
}

// OpenSessions reports how many sessions are running.
func (s *Service) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) start(view *TransactionView) (*CartSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, sessionClosed()
	}
	if existing, ok := s.sessions[view.ID]; ok {
		return existing, nil
	}

	session := newCartSession(s, view)
	s.sessions[view.ID] = session
	s.metrics.SessionOpened()
	go session.run()
	return session, nil
}

func (s *Service) lookup(id uuid.UUID) (*CartSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) rekey(session *CartSession, from, to uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[from] == session {
		delete(s.sessions, from)
	}
	s.sessions[to] = session
}

func (s *Service) release(session *CartSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := session.ID()
	if s.sessions[id] == session {
		delete(s.sessions, id)
	}
	s.metrics.SessionClosed()
}

func (s *Service) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.opTimeout)
}
