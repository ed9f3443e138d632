package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus tracks where a sale is in its lifecycle.
type TransactionStatus string

const (
	StatusDraft     TransactionStatus = "DRAFT"
	StatusPaid      TransactionStatus = "PAID"
	StatusCompleted TransactionStatus = "COMPLETED"
)

var validTransactionStatuses = []TransactionStatus{
	StatusDraft,
	StatusPaid,
	StatusCompleted,
}

func (s TransactionStatus) String() string {
	return string(s)
}

func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinalized reports whether payment has been resolved.
func (s TransactionStatus) IsFinalized() bool {
	switch s {
	case StatusPaid, StatusCompleted:
		return true
	case StatusDraft:
		return false
	}
	return false
}

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// PaymentMethod describes how the customer settles the sale.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentQRIS     PaymentMethod = "QRIS"
)

var validPaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentCard,
	PaymentTransfer,
	PaymentQRIS,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresTender reports whether the cashier must count received money
// against the total before finalizing.
func (p PaymentMethod) RequiresTender() bool {
	switch p {
	case PaymentCash:
		return true
	case PaymentCard, PaymentTransfer, PaymentQRIS:
		return false
	}
	return false
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// PaymentMethods lists every supported method.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(validPaymentMethods))
	copy(out, validPaymentMethods)
	return out
}

// Transaction is the persisted sale. Totals are the values last written by
// the cart engine and are authoritative over any in-memory preview.
type Transaction struct {
	BaseModel
	Status        TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CashierID     string            `gorm:"type:varchar(255);index" json:"cashier_id"`
	CashierName   string            `gorm:"type:varchar(255)" json:"cashier_name"`
	Subtotal      decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"subtotal"`
	Discount      decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"discount"`
	Tax           decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"tax"`
	Total         decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"total"`
	TaxRate       decimal.Decimal   `gorm:"type:numeric(9,6);not null;default:0" json:"tax_rate"`
	PaymentMethod PaymentMethod     `gorm:"type:varchar(20);not null" json:"payment_method"`
	CashReceived  decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"cash_received"`
	CashChange    decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"cash_change"`
	Notes         string            `gorm:"type:text" json:"notes"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`

	Items []TransactionItem `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"items"`
}

// TransactionItem is one persisted cart line.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	ProductName   string          `gorm:"type:varchar(255)" json:"product_name"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	Discount      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"discount"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	Position      int             `gorm:"not null" json:"position"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (item *TransactionItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return
}
