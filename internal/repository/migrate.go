package repository

import (
	"go-pos-ws/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables the POS core needs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Product{},
		&model.StoreSetting{},
		&model.Transaction{},
		&model.TransactionItem{},
	)
}
