package repositories

import (
	"gorm.io/gorm"

	"library/internal/models"
)

// AutoMigrate creates or updates the circulation tables, including the
// partial unique index on open transactions.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Book{},
		&models.BookCopy{},
		&models.Transaction{},
	)
}
