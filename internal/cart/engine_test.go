package cart

import (
	"math/rand"
	"testing"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(name string, price int64, stock int) *model.Product {
	p := &model.Product{Name: name, Price: decimal.NewFromInt(price), Stock: stock, IsActive: true}
	p.ID = uuid.New()
	return p
}

func TestAddOrIncrement(t *testing.T) {
	e := NewEngine()
	coffee := newProduct("Coffee", 10000, 2)

	require.True(t, e.AddOrIncrement(coffee))
	require.True(t, e.AddOrIncrement(coffee))

	line, ok := e.Line(coffee.ID)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.Subtotal.Equal(decimal.NewFromInt(20000)))
	assert.True(t, line.Discount.IsZero())

	assert.False(t, e.AddOrIncrement(coffee), "third unit exceeds stock")
	line, _ = e.Line(coffee.ID)
	assert.Equal(t, 2, line.Quantity)
}

func TestAddOrIncrement_OutOfStockNeverCreatesLine(t *testing.T) {
	e := NewEngine()
	soldOut := newProduct("Tea", 8000, 0)

	assert.False(t, e.AddOrIncrement(soldOut))
	assert.Equal(t, 0, e.Len())
	_, ok := e.Line(soldOut.ID)
	assert.False(t, ok)
}

func TestAddOrIncrement_SnapshotsPrice(t *testing.T) {
	e := NewEngine()
	p := newProduct("Bread", 5000, 10)
	require.True(t, e.AddOrIncrement(p))

	p.Price = decimal.NewFromInt(9000)
	require.True(t, e.AddOrIncrement(p))

	line, _ := e.Line(p.ID)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(5000)))
	assert.True(t, line.Subtotal.Equal(decimal.NewFromInt(10000)))
}

func TestSetQuantity(t *testing.T) {
	e := NewEngine()
	p := newProduct("Milk", 10000, 5)
	require.True(t, e.AddOrIncrement(p))

	assert.True(t, e.SetQuantity(p, 4))
	assert.False(t, e.SetQuantity(p, 6), "stock + 1 is rejected")
	line, _ := e.Line(p.ID)
	assert.Equal(t, 4, line.Quantity, "rejected change keeps prior quantity")

	assert.True(t, e.SetQuantity(p, 0))
	assert.Equal(t, 0, e.Len())

	require.True(t, e.AddOrIncrement(p))
	assert.True(t, e.SetQuantity(p, -3))
	assert.True(t, e.IsEmpty())
}

func TestSetQuantity_ReclampsDiscount(t *testing.T) {
	e := NewEngine()
	p := newProduct("Rice", 10000, 5)
	require.True(t, e.SetQuantity(p, 3))
	require.True(t, e.SetItemDiscount(p.ID, decimal.NewFromInt(25000)))

	require.True(t, e.SetQuantity(p, 2))
	line, _ := e.Line(p.ID)
	assert.True(t, line.Discount.Equal(decimal.NewFromInt(20000)))
	assert.True(t, line.Subtotal.IsZero())
}

func TestSetQuantity_ClampedDiscountDoesNotReturnOnIncrease(t *testing.T) {
	e := NewEngine()
	p := newProduct("Rice", 10000, 5)
	require.True(t, e.SetQuantity(p, 3))
	require.True(t, e.SetItemDiscount(p.ID, decimal.NewFromInt(25000)))
	require.True(t, e.SetQuantity(p, 2))
	require.True(t, e.SetQuantity(p, 3))

	line, _ := e.Line(p.ID)
	assert.True(t, line.Discount.Equal(decimal.NewFromInt(20000)), "discount %s", line.Discount)
	assert.True(t, line.Subtotal.Equal(decimal.NewFromInt(10000)), "subtotal %s", line.Subtotal)
}

func TestSetQuantity_Idempotent(t *testing.T) {
	e := NewEngine()
	p := newProduct("Sugar", 10000, 5)
	require.True(t, e.SetQuantity(p, 2))
	require.True(t, e.SetItemDiscount(p.ID, decimal.NewFromInt(5000)))

	e.SetQuantity(p, 3)
	first := e.Lines()
	assert.False(t, e.SetQuantity(p, 3))
	assert.Equal(t, first, e.Lines())
}

func TestSetItemDiscount(t *testing.T) {
	e := NewEngine()
	p := newProduct("Coffee", 10000, 5)
	require.True(t, e.SetQuantity(p, 2))

	assert.True(t, e.SetItemDiscount(p.ID, decimal.NewFromInt(5000)))
	line, _ := e.Line(p.ID)
	assert.True(t, line.Subtotal.Equal(decimal.NewFromInt(15000)))

	assert.True(t, e.SetItemDiscount(p.ID, decimal.NewFromInt(-10)))
	line, _ = e.Line(p.ID)
	assert.True(t, line.Discount.IsZero())

	assert.True(t, e.SetItemDiscount(p.ID, decimal.NewFromInt(50000)))
	line, _ = e.Line(p.ID)
	assert.True(t, line.Discount.Equal(decimal.NewFromInt(20000)))

	assert.False(t, e.SetItemDiscount(uuid.New(), decimal.NewFromInt(1)))
}

func TestRemoveAndClearKeepOrder(t *testing.T) {
	e := NewEngine()
	a := newProduct("A", 1000, 9)
	b := newProduct("B", 2000, 9)
	c := newProduct("C", 3000, 9)
	for _, p := range []*model.Product{a, b, c} {
		require.True(t, e.AddOrIncrement(p))
	}
	require.True(t, e.AddOrIncrement(a))

	require.True(t, e.Remove(b.ID))
	assert.False(t, e.Remove(b.ID))

	lines := e.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, a.ID, lines[0].ProductID)
	assert.Equal(t, c.ID, lines[1].ProductID)

	assert.True(t, e.Clear())
	assert.False(t, e.Clear())
	assert.Empty(t, e.Lines())
}

func TestCloneIsIndependent(t *testing.T) {
	e := NewEngine()
	p := newProduct("A", 1000, 9)
	require.True(t, e.AddOrIncrement(p))

	snapshot := e.Clone()
	require.True(t, e.AddOrIncrement(p))

	line, _ := snapshot.Line(p.ID)
	assert.Equal(t, 1, line.Quantity)

	e.Restore(snapshot.Lines())
	line, _ = e.Line(p.ID)
	assert.Equal(t, 1, line.Quantity)
}

func TestRestoreRepairsStoredLines(t *testing.T) {
	e := NewEngine()
	id := uuid.New()
	e.Restore([]model.CartLine{
		{ProductID: id, UnitPrice: decimal.NewFromInt(100), Quantity: 2, Discount: decimal.NewFromInt(500)},
		{ProductID: uuid.New(), UnitPrice: decimal.NewFromInt(100), Quantity: 0},
	})

	require.Equal(t, 1, e.Len())
	line, _ := e.Line(id)
	assert.True(t, line.Discount.Equal(decimal.NewFromInt(200)))
	assert.True(t, line.Subtotal.IsZero())
}

func TestLineInvariantsHoldUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	products := []*model.Product{
		newProduct("A", 1500, 4),
		newProduct("B", 12000, 1),
		newProduct("C", 999, 10),
	}
	e := NewEngine()

	for i := 0; i < 500; i++ {
		p := products[rng.Intn(len(products))]
		switch rng.Intn(4) {
		case 0:
			e.AddOrIncrement(p)
		case 1:
			e.SetQuantity(p, rng.Intn(14)-2)
		case 2:
			e.SetItemDiscount(p.ID, decimal.NewFromInt(int64(rng.Intn(40000)-5000)))
		case 3:
			if rng.Intn(10) == 0 {
				e.Remove(p.ID)
			}
		}

		sum := decimal.Zero
		for _, line := range e.Lines() {
			assert.GreaterOrEqual(t, line.Quantity, 1)
			assert.False(t, line.Discount.IsNegative())
			assert.False(t, line.Discount.GreaterThan(line.Gross()))
			assert.True(t, line.Subtotal.Equal(line.Gross().Sub(line.Discount)))
			sum = sum.Add(line.Subtotal)
		}
		for _, prod := range products {
			if line, ok := e.Line(prod.ID); ok {
				assert.LessOrEqual(t, line.Quantity, prod.Stock)
			}
		}
		totals := pricing.Calculate(e.Lines(), decimal.Zero, decimal.Zero)
		assert.True(t, totals.Subtotal.Equal(sum))
	}
}
