package repository

import (
	"context"
	"errors"
	"time"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrStatusChanged is returned by conditional status updates when the row
// exists but is no longer in the expected status.
var ErrStatusChanged = errors.New("transaction status changed")

type TransactionRepository interface {
	CreateEmptyDraft(ctx context.Context, cashierID, cashierName string) (*model.Transaction, error)
	CreateTransaction(ctx context.Context, transaction *model.Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetTransactionItems(ctx context.Context, id uuid.UUID) ([]model.TransactionItem, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateTransactionItems(ctx context.Context, id uuid.UUID, items []model.TransactionItem) error
	UpdateTransactionTotals(ctx context.Context, id uuid.UUID, subtotal, tax, discount, total, taxRate decimal.Decimal) error
	UpdateTransactionPayment(ctx context.Context, id uuid.UUID, method model.PaymentMethod, discount decimal.Decimal) error
	UpdateTransactionDraft(ctx context.Context, id uuid.UUID, cashierID, cashierName, notes string) error
	FinalizeTransaction(ctx context.Context, id uuid.UUID, received, change decimal.Decimal, notes string, paidAt time.Time) error
	CompleteTransaction(ctx context.Context, id uuid.UUID, completedAt time.Time) error
}

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
type TransactionFilter struct {
	Status    model.TransactionStatus
	CashierID string
	Limit     int
	Offset    int
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) CreateEmptyDraft(ctx context.Context, cashierID, cashierName string) (*model.Transaction, error) {
	transaction := &model.Transaction{
		Status:        model.StatusDraft,
		CashierID:     cashierID,
		CashierName:   cashierName,
		PaymentMethod: model.PaymentCash,
	}
	transaction.CreatedBy = cashierID
	transaction.UpdatedBy = cashierID

	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

// CreateTransaction inserts the header and its items atomically.
func (r *transactionRepo) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := transaction.Items
		transaction.Items = nil
		defer func() { transaction.Items = items }()

		if err := tx.Create(transaction).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].TransactionID = transaction.ID
			items[i].Position = i
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *transactionRepo) GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&transaction, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepo) GetTransactionItems(ctx context.Context, id uuid.UUID) ([]model.TransactionItem, error) {
	var items []model.TransactionItem
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", id).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

func (r *transactionRepo) ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&model.Transaction{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CashierID != "" {
		query = query.Where("cashier_id = ?", filter.CashierID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var transactions []model.Transaction
	err := query.Order("created_at DESC").Find(&transactions).Error
	return transactions, err
}

// UpdateTransactionItems replaces the stored items with items, in order.
func (r *transactionRepo) UpdateTransactionItems(ctx context.Context, id uuid.UUID, items []model.TransactionItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Touch the header, which also proves it exists
		res := tx.Model(&model.Transaction{}).Where("id = ?", id).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// 2. Drop the previous lines
		if err := tx.Where("transaction_id = ?", id).Delete(&model.TransactionItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		// 3. Insert the new lines with their positions
		rows := make([]model.TransactionItem, len(items))
		for i, item := range items {
			item.ID = uuid.Nil
			item.TransactionID = id
			item.Position = i
			rows[i] = item
		}
		return tx.Create(&rows).Error
	})
}

func (r *transactionRepo) UpdateTransactionTotals(ctx context.Context, id uuid.UUID, subtotal, tax, discount, total, taxRate decimal.Decimal) error {
	return r.update(ctx, id, map[string]interface{}{
		"subtotal": subtotal,
		"tax":      tax,
		"discount": discount,
		"total":    total,
		"tax_rate": taxRate,
	})
}

func (r *transactionRepo) UpdateTransactionPayment(ctx context.Context, id uuid.UUID, method model.PaymentMethod, discount decimal.Decimal) error {
	return r.update(ctx, id, map[string]interface{}{
		"payment_method": method,
		"discount":       discount,
	})
}

func (r *transactionRepo) UpdateTransactionDraft(ctx context.Context, id uuid.UUID, cashierID, cashierName, notes string) error {
	return r.update(ctx, id, map[string]interface{}{
		"cashier_id":   cashierID,
		"cashier_name": cashierName,
		"notes":        notes,
		"updated_by":   cashierID,
	})
}

// FinalizeTransaction moves a DRAFT to PAID. A row in any other status is
// left untouched and ErrStatusChanged is returned.
func (r *transactionRepo) FinalizeTransaction(ctx context.Context, id uuid.UUID, received, change decimal.Decimal, notes string, paidAt time.Time) error {
	return r.transition(ctx, id, model.StatusDraft, map[string]interface{}{
		"status":        model.StatusPaid,
		"cash_received": received,
		"cash_change":   change,
		"notes":         notes,
		"paid_at":       paidAt,
	})
}

// CompleteTransaction moves a PAID transaction to COMPLETED.
func (r *transactionRepo) CompleteTransaction(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	return r.transition(ctx, id, model.StatusPaid, map[string]interface{}{
		"status":       model.StatusCompleted,
		"completed_at": completedAt,
	})
}

func (r *transactionRepo) update(ctx context.Context, id uuid.UUID, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *transactionRepo) transition(ctx context.Context, id uuid.UUID, from model.TransactionStatus, values map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Transaction{}).
			Where("id = ? AND status = ?", id, from).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&model.Transaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrStatusChanged
	})
}
