package models

import "time"

// Subscription states mirrored from the payment provider.
const (
	SubscriptionIncomplete = "incomplete"
	SubscriptionActive     = "active"
	SubscriptionPastDue    = "past_due"
	SubscriptionCanceled   = "canceled"
)

// Organization is a childcare business and the unit of tenancy.
type Organization struct {
	ID                   uint    `gorm:"primaryKey"`
	Name                 string  `gorm:"size:128;not null"`
	Plan                 string  `gorm:"size:32"`
	SubscriptionStatus   string  `gorm:"size:32;index;default:incomplete"`
	StripeCustomerID     string  `gorm:"size:64;index"`
	StripeSubscriptionID *string `gorm:"size:64;uniqueIndex"`
	OwnerID              *uint   `gorm:"index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AgeRange is a pricing bracket configured per organization.
type AgeRange struct {
	ID              uint   `gorm:"primaryKey"`
	OrganizationID  uint   `gorm:"index;not null"`
	Name            string `gorm:"size:64;not null"`
	MinMonths       int    `gorm:"not null"`
	MaxMonths       int    `gorm:"not null"`
	WeeklyRateCents int64  `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Child is enrolled at one organization and belongs to one guardian.
type Child struct {
	ID             uint      `gorm:"primaryKey"`
	OrganizationID uint      `gorm:"index;not null"`
	GuardianID     uint      `gorm:"index;not null"`
	AgeRangeID     *uint     `gorm:"index"`
	FirstName      string    `gorm:"size:64;not null"`
	LastName       string    `gorm:"size:64;not null"`
	BirthDate      time.Time `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
