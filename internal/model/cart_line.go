package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is the in-memory form of one product in an open cart. A line
// with quantity 0 does not exist; removal deletes it.
type CartLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Gross is unitPrice × quantity, the upper bound for the line discount.
func (l CartLine) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
