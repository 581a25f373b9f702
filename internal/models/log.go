package models

import "time"

// AuditLog records authenticated API operations. Path and action are stored
// encrypted.
type AuditLog struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         *uint  `gorm:"index"`
	OrganizationID *uint  `gorm:"index"`
	Role           string `gorm:"size:32"`
	PathEnc        string `gorm:"size:1024"`
	Method         string `gorm:"size:16"`
	ActionEnc      string `gorm:"size:2048"`
	Status         int
	IP             string `gorm:"size:64"`
	UserAgent      string `gorm:"size:255"`
	CreatedAt      time.Time
}
