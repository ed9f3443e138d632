package model

import "github.com/shopspring/decimal"

// Product is the catalog entry the cart reads price and stock from.
type Product struct {
	BaseModel
	SKU               string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Stock             int             `gorm:"default:0" json:"stock" validate:"gte=0"`
	Unit              string          `gorm:"type:varchar(20)" json:"unit"`
	Price             decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"price" validate:"decimal_gte0"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
}

// IsLowStock reports whether stock fell to or below the product's threshold.
func (p *Product) IsLowStock() bool {
	if p.LowStockThreshold == nil {
		return false
	}
	return p.Stock <= *p.LowStockThreshold
}
