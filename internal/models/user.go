package models

import "time"

// User represents an account of any role. OrganizationID is set for
// childcare admins and guardians and nil for system admins.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	Email          string `gorm:"size:128;uniqueIndex;not null"`
	PasswordHash   string `gorm:"size:255;not null"`
	DisplayName    string `gorm:"size:64"`
	Role           string `gorm:"size:32;index;not null"`
	OrganizationID *uint  `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	FailedLoginAttempts int        `gorm:"default:0"`
	LockedUntil         *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	LastLoginIP         string `gorm:"size:64"`

	// set once a SETUP_PAYMENT_METHOD checkout completes
	PaymentMethodReady bool `gorm:"default:false"`

	Organization *Organization `gorm:"constraint:OnDelete:SET NULL"`
}
