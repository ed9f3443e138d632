// Package cart keeps the line items of one open transaction.
//
// Every mutation is checked against the stock rules in package pricing and
// recomputes the line subtotal, so the line invariants hold between calls.
// An Engine is not safe for concurrent use; the owning session serializes
// access to it.
package cart

import (
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Engine struct {
	lines map[uuid.UUID]*model.CartLine
	order []uuid.UUID
}

func NewEngine() *Engine {
	return &Engine{lines: make(map[uuid.UUID]*model.CartLine)}
}

// AddOrIncrement adds one unit of product. A new line starts at quantity 1
// with no discount and snapshots the product's current price. It returns
// false when the extra unit would exceed stock.
func (e *Engine) AddOrIncrement(product *model.Product) bool {
	if product == nil {
		return false
	}

	existing, ok := e.lines[product.ID]
	current := 0
	if ok {
		current = existing.Quantity
	}
	if !pricing.CanAdd(product, current) {
		return false
	}

	if ok {
		existing.Quantity++
		recompute(existing)
		return true
	}

	line := &model.CartLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    1,
		Discount:    decimal.Zero,
	}
	recompute(line)
	e.lines[product.ID] = line
	e.order = append(e.order, product.ID)
	return true
}

// SetQuantity sets the quantity of product's line, starting the line when
// the cart has none. qty <= 0 removes the line. The existing discount is
// clamped to the new gross amount.
func (e *Engine) SetQuantity(product *model.Product, qty int) bool {
	if product == nil {
		return false
	}
	if qty <= 0 {
		return e.Remove(product.ID)
	}
	if !pricing.CanSetQuantity(product, qty) {
		return false
	}

	line, ok := e.lines[product.ID]
	if !ok {
		line = &model.CartLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Discount:    decimal.Zero,
		}
		e.lines[product.ID] = line
		e.order = append(e.order, product.ID)
	} else if line.Quantity == qty {
		return false
	}

	line.Quantity = qty
	recompute(line)
	return true
}

// SetItemDiscount clamps amount into [0, unitPrice × quantity]. It never
// rejects; it returns false only when the line is missing or unchanged.
func (e *Engine) SetItemDiscount(productID uuid.UUID, amount decimal.Decimal) bool {
	line, ok := e.lines[productID]
	if !ok {
		return false
	}

	clamped := pricing.ClampDiscount(amount, line.Gross())
	if clamped.Equal(line.Discount) {
		return false
	}
	line.Discount = clamped
	recompute(line)
	return true
}

func (e *Engine) Remove(productID uuid.UUID) bool {
	if _, ok := e.lines[productID]; !ok {
		return false
	}
	delete(e.lines, productID)
	for i, id := range e.order {
		if id == productID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

func (e *Engine) Clear() bool {
	if len(e.order) == 0 {
		return false
	}
	e.lines = make(map[uuid.UUID]*model.CartLine)
	e.order = nil
	return true
}

// Lines returns a copy of the lines in insertion order.
func (e *Engine) Lines() []model.CartLine {
	out := make([]model.CartLine, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.lines[id])
	}
	return out
}

func (e *Engine) Line(productID uuid.UUID) (model.CartLine, bool) {
	line, ok := e.lines[productID]
	if !ok {
		return model.CartLine{}, false
	}
	return *line, true
}

func (e *Engine) Len() int {
	return len(e.order)
}

func (e *Engine) IsEmpty() bool {
	return len(e.order) == 0
}

func (e *Engine) Clone() *Engine {
	clone := NewEngine()
	clone.Restore(e.Lines())
	return clone
}

// Restore replaces the cart with lines, keeping their order. Lines with a
// non-positive quantity are dropped and discounts are clamped again, so
// rows read back from storage cannot break the line rules.
func (e *Engine) Restore(lines []model.CartLine) {
	e.lines = make(map[uuid.UUID]*model.CartLine, len(lines))
	e.order = e.order[:0:0]
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		line := l
		line.Discount = pricing.ClampDiscount(line.Discount, line.Gross())
		recompute(&line)
		if _, dup := e.lines[line.ProductID]; !dup {
			e.order = append(e.order, line.ProductID)
		}
		e.lines[line.ProductID] = &line
	}
}

// recompute keeps the discount within the line's gross amount and derives
// the subtotal from it.
func recompute(line *model.CartLine) {
	line.Discount = pricing.ClampDiscount(line.Discount, line.Gross())
	line.Subtotal = pricing.LineSubtotal(line.UnitPrice, line.Quantity, line.Discount)
}
