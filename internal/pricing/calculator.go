// Package pricing holds the side-effect free money rules of the cart:
// line and cart totals, tax, change and the stock gate for quantity changes.
package pricing

import (
	"go-pos-ws/internal/model"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places monetary amounts are kept at.
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Totals is the priced view of a cart.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// RoundMoney rounds half away from zero to MoneyScale places.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// ClampDiscount forces amount into [0, max].
func ClampDiscount(amount, max decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if max.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, max)
}

// NonNegative clamps amount to [0, +inf).
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// LineSubtotal is unitPrice × qty − discount, floored at zero.
func LineSubtotal(unitPrice decimal.Decimal, qty int, discount decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return NonNegative(gross.Sub(discount))
}

// Calculate prices the lines. The global discount is clamped to the
// subtotal here; tax applies to the discounted base.
func Calculate(lines []model.CartLine, globalDiscount, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineSubtotal(line.UnitPrice, line.Quantity, line.Discount))
	}

	discount := ClampDiscount(globalDiscount, subtotal)
	base := subtotal.Sub(discount)
	rate := NonNegative(taxRate)
	tax := RoundMoney(base.Mul(rate))

	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		TaxableBase: base,
		TaxRate:     rate,
		Tax:         tax,
		Total:       base.Add(tax),
	}
}

// Change is max(0, received − total).
func Change(received, total decimal.Decimal) decimal.Decimal {
	return NonNegative(received.Sub(total))
}

// TaxRate converts store settings into a fractional rate.
func TaxRate(settings *model.StoreSetting) decimal.Decimal {
	if settings == nil || !settings.TaxEnabled {
		return decimal.Zero
	}
	return NonNegative(settings.TaxPercentage).Div(hundred)
}
