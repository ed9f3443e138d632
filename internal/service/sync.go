package service

import (
	"context"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/pricing"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Syncer writes cart state to the transaction store and publishes the
// canonical record read back after each write.
type Syncer struct {
	store repository.TransactionRepository
	feed  *Feed
	loc   *time.Location
}

func NewSyncer(store repository.TransactionRepository, feed *Feed, loc *time.Location) *Syncer {
	return &Syncer{store: store, feed: feed, loc: loc}
}

func (s *Syncer) SaveItems(ctx context.Context, id uuid.UUID, lines []model.CartLine) error {
	return s.store.UpdateTransactionItems(ctx, id, toItems(lines))
}

func (s *Syncer) SaveTotals(ctx context.Context, id uuid.UUID, totals pricing.Totals) error {
	return s.store.UpdateTransactionTotals(ctx, id, totals.Subtotal, totals.Tax, totals.Discount, totals.Total, totals.TaxRate)
}

func (s *Syncer) SavePayment(ctx context.Context, id uuid.UUID, method model.PaymentMethod, discount decimal.Decimal) error {
	return s.store.UpdateTransactionPayment(ctx, id, method, discount)
}

// Reload reads the canonical transaction and publishes it.
func (s *Syncer) Reload(ctx context.Context, id uuid.UUID) (*TransactionView, error) {
	transaction, err := s.store.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := newTransactionView(transaction, s.loc)
	s.feed.Publish(ctx, view)
	return view, nil
}

func toItems(lines []model.CartLine) []model.TransactionItem {
	items := make([]model.TransactionItem, len(lines))
	for i, line := range lines {
		items[i] = model.TransactionItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			Discount:    line.Discount,
			Subtotal:    line.Subtotal,
			Position:    i,
		}
	}
	return items
}

func toLines(items []model.TransactionItem) []model.CartLine {
	lines := make([]model.CartLine, len(items))
	for i, item := range items {
		lines[i] = model.CartLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Discount:    item.Discount,
			Subtotal:    item.Subtotal,
		}
	}
	return lines
}
