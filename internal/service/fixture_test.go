package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errStoreDown = errors.New("store unavailable")

// recordingStore counts writes and can be told to fail totals updates.
type recordingStore struct {
	repository.TransactionRepository

	mu         sync.Mutex
	writes     int
	failTotals bool
}

func (s *recordingStore) wrote() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func (s *recordingStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *recordingStore) setFailTotals(fail bool) {
	s.mu.Lock()
	s.failTotals = fail
	s.mu.Unlock()
}

func (s *recordingStore) CreateEmptyDraft(ctx context.Context, cashierID, cashierName string) (*model.Transaction, error) {
	s.wrote()
	return s.TransactionRepository.CreateEmptyDraft(ctx, cashierID, cashierName)
}

func (s *recordingStore) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	s.wrote()
	return s.TransactionRepository.CreateTransaction(ctx, transaction)
}

func (s *recordingStore) UpdateTransactionItems(ctx context.Context, id uuid.UUID, items []model.TransactionItem) error {
	s.wrote()
	return s.TransactionRepository.UpdateTransactionItems(ctx, id, items)
}

func (s *recordingStore) UpdateTransactionTotals(ctx context.Context, id uuid.UUID, subtotal, tax, discount, total, taxRate decimal.Decimal) error {
	s.wrote()
	s.mu.Lock()
	fail := s.failTotals
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.TransactionRepository.UpdateTransactionTotals(ctx, id, subtotal, tax, discount, total, taxRate)
}

func (s *recordingStore) UpdateTransactionPayment(ctx context.Context, id uuid.UUID, method model.PaymentMethod, discount decimal.Decimal) error {
	s.wrote()
	return s.TransactionRepository.UpdateTransactionPayment(ctx, id, method, discount)
}

func (s *recordingStore) UpdateTransactionDraft(ctx context.Context, id uuid.UUID, cashierID, cashierName, notes string) error {
	s.wrote()
	return s.TransactionRepository.UpdateTransactionDraft(ctx, id, cashierID, cashierName, notes)
}

func (s *recordingStore) FinalizeTransaction(ctx context.Context, id uuid.UUID, received, change decimal.Decimal, notes string, paidAt time.Time) error {
	s.wrote()
	return s.TransactionRepository.FinalizeTransaction(ctx, id, received, change, notes, paidAt)
}

func (s *recordingStore) CompleteTransaction(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	s.wrote()
	return s.TransactionRepository.CompleteTransaction(ctx, id, completedAt)
}

type publishedMessage struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	for i, m := range p.messages {
		out[i] = m.topic
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	store     *recordingStore
	products  repository.ProductRepository
	settings  repository.SettingRepository
	catalog   CatalogService
	publisher *recordingPublisher
	svc       *Service
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// newFixture wires a Service on sqlite with tax at taxPercentage ("" disables tax).
func newFixture(t *testing.T, taxPercentage string) *fixture {
	t.Helper()
	db := newTestDB(t)

	settingRepo := repository.NewSettingRepo(db)
	defaults := model.StoreSetting{StoreName: "Test Store"}
	if taxPercentage != "" {
		defaults.TaxEnabled = true
		defaults.TaxPercentage = decimal.RequireFromString(taxPercentage)
	}
	_, err := settingRepo.EnsureDefault(context.Background(), defaults)
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		store:     &recordingStore{TransactionRepository: repository.NewTransactionRepo(db)},
		products:  repository.NewProductRepo(db),
		settings:  settingRepo,
		publisher: &recordingPublisher{},
	}
	f.catalog = NewCatalogService(f.products, db, f.publisher, nil)
	f.svc = NewService(Options{
		Catalog:   f.catalog,
		Settings:  NewSettingsService(settingRepo, nil, "", 0, nil),
		Store:     f.store,
		Publisher: f.publisher,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.svc.Shutdown(ctx)
	})
	return f
}

func (f *fixture) addProduct(t *testing.T, name string, price int64, stock int) *model.Product {
	t.Helper()
	product := &model.Product{
		SKU:      name + "-" + uuid.NewString()[:8],
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, f.products.Create(context.Background(), product))
	return product
}

func (f *fixture) open(t *testing.T) *CartSession {
	t.Helper()
	session, err := f.svc.Initialize(context.Background(), "cashier-1", "Ana")
	require.NoError(t, err)
	return session
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *model.Transaction {
	t.Helper()
	transaction, err := f.store.GetTransactionByID(context.Background(), id)
	require.NoError(t, err)
	return transaction
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr[T any](v T) *T {
	return &v
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !got.Equal(dec(want)) {
		assert.Fail(t, fmt.Sprintf("expected %s, got %s", want, got.String()), msgAndArgs...)
	}
}
