package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreSettingID is the primary key of the single settings row.
const StoreSettingID uint = 1

// StoreSetting holds the store-wide values the pricing engine reads.
type StoreSetting struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	StoreName     string          `gorm:"type:varchar(255)" json:"store_name"`
	TaxEnabled    bool            `gorm:"not null" json:"tax_enabled"`
	TaxPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"tax_percentage" validate:"decimal_gte0"`
	UpdatedAt     time.Time       `json:"updated_at"`
	UpdatedBy     string          `json:"updated_by"`
}
