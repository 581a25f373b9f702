package models

import "time"

// Ticket statuses.
const (
	TicketOpen     = "open"
	TicketAnswered = "answered"
	TicketClosed   = "closed"
)

// SupportTicket is raised by any user and answered by staff.
type SupportTicket struct {
	ID             uint   `gorm:"primaryKey"`
	OrganizationID *uint  `gorm:"index"`
	AuthorID       uint   `gorm:"index;not null"`
	Subject        string `gorm:"size:128;not null"`
	Body           string `gorm:"type:text;not null"`
	Status         string `gorm:"size:16;index;not null"`
	ReadByAuthor   bool   `gorm:"not null;default:true"`
	ReadByStaff    bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Replies []TicketReply `gorm:"constraint:OnDelete:CASCADE"`
}

// TicketReply is one message in a ticket thread.
type TicketReply struct {
	ID              uint   `gorm:"primaryKey"`
	SupportTicketID uint   `gorm:"index;not null"`
	AuthorID        uint   `gorm:"index;not null"`
	Body            string `gorm:"type:text;not null"`
	CreatedAt       time.Time
}
