package database

import (
	"fmt"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.AgeRange{},
		&models.Child{},
		&models.Invoice{},
		&models.CheckoutSession{},
		&models.ProcessedEvent{},
		&models.SupportTicket{},
		&models.TicketReply{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
