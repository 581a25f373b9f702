package models

import "time"

// Invoice statuses.
const (
	InvoiceDraft  = "draft"
	InvoiceOpen   = "open"
	InvoicePaid   = "paid"
	InvoiceFailed = "failed"
	InvoiceVoid   = "void"
)

// Invoice is a bill issued by an organization to one guardian.
// Amounts are stored in cents.
type Invoice struct {
	ID                uint   `gorm:"primaryKey"`
	OrganizationID    uint   `gorm:"index;not null"`
	GuardianID        uint   `gorm:"index;not null"`
	ChildID           *uint  `gorm:"index"`
	Number            string `gorm:"size:32;uniqueIndex;not null"`
	Description       string `gorm:"size:255"`
	AmountCents       int64  `gorm:"not null"`
	Status            string `gorm:"size:16;index;not null"`
	DueDate           time.Time
	PaidAt            *time.Time
	CheckoutSessionID string `gorm:"size:128;index"`
	// CheckoutHoldUntil is set while a checkout session for the invoice may
	// still be paid.
	CheckoutHoldUntil *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CheckoutSession records every provider checkout session created, so a
// session that succeeded provider-side is never lost.
type CheckoutSession struct {
	ID             string `gorm:"primaryKey;size:128"` // provider session id
	PrincipalID    uint   `gorm:"index;not null"`
	OrganizationID *uint  `gorm:"index"`
	Intent         string `gorm:"size:32;not null"`
	InvoiceID      *uint  `gorm:"index"`
	Plan           string `gorm:"size:32"`
	AmountCents    int64
	RedirectURL    string `gorm:"size:1024"`
	Metadata       string `gorm:"type:text"` // JSON
	CreatedAt      time.Time
}

// ProcessedEvent marks a provider webhook event as applied. The primary key
// is what makes redelivery a no-op.
type ProcessedEvent struct {
	EventID     string `gorm:"primaryKey;size:128"`
	Type        string `gorm:"size:64;not null"`
	ProcessedAt time.Time
}
