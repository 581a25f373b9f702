package repository

import (
	"context"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// TicketScope decides which support tickets a viewer sees. Guardians see
// their own, childcare admins every ticket of their organization, system
// admins all. Whoever is not the author of a ticket acts as staff on it.
type TicketScope struct {
	viewer     uint
	all        bool
	tenantID   uint
	authorOnly bool
}

// TicketScopeFor derives the ticket scope for p.
func TicketScopeFor(p auth.Principal) TicketScope {
	if err := p.Validate(); err != nil {
		return TicketScope{}
	}
	switch p.Role {
	case auth.RoleSystemAdmin:
		return TicketScope{viewer: p.ID, all: true}
	case auth.RoleChildcareAdmin:
		return TicketScope{viewer: p.ID, tenantID: p.Tenant()}
	default:
		return TicketScope{viewer: p.ID, authorOnly: true}
	}
}

func (s TicketScope) rows(db *gorm.DB) *gorm.DB {
	switch {
	case s.viewer == 0:
		return db.Where("1 = 0")
	case s.all:
		return db
	case s.authorOnly:
		return db.Where("support_tickets.author_id = ?", s.viewer)
	default:
		return db.Where("support_tickets.organization_id = ?", s.tenantID)
	}
}

// Tickets is the GORM TicketRepository.
type Tickets struct {
	db *gorm.DB
}

func NewTickets(db *gorm.DB) *Tickets {
	return &Tickets{db: db}
}

func (r *Tickets) Create(ctx context.Context, t *models.SupportTicket) error {
	t.Status = models.TicketOpen
	t.ReadByAuthor = true
	t.ReadByStaff = false
	return wrap("create ticket", r.db.WithContext(ctx).Create(t).Error)
}

func (r *Tickets) List(ctx context.Context, scope TicketScope) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	err := scope.rows(r.db.WithContext(ctx)).Order("updated_at DESC, id DESC").Find(&tickets).Error
	return tickets, wrap("list tickets", err)
}

func (r *Tickets) Open(ctx context.Context, scope TicketScope, id uint) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := scope.rows(r.db.WithContext(ctx)).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&t, id).Error
	if err != nil {
		return nil, wrap("open ticket", err)
	}

	column := "read_by_staff"
	if t.AuthorID == scope.viewer {
		column = "read_by_author"
	}
	if err := r.db.WithContext(ctx).Model(&models.SupportTicket{}).
		Where("id = ?", t.ID).UpdateColumn(column, true).Error; err != nil {
		return nil, wrap("mark ticket read", err)
	}
	if column == "read_by_author" {
		t.ReadByAuthor = true
	} else {
		t.ReadByStaff = true
	}
	return &t, nil
}

func (r *Tickets) Reply(ctx context.Context, scope TicketScope, id uint, body string) (*models.TicketReply, error) {
	var reply *models.TicketReply
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.SupportTicket
		if err := scope.rows(tx).First(&t, id).Error; err != nil {
			return err
		}
		if t.Status == models.TicketClosed {
			return ErrConflict
		}

		reply = &models.TicketReply{SupportTicketID: t.ID, AuthorID: scope.viewer, Body: body}
		if err := tx.Create(reply).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if t.AuthorID == scope.viewer {
			updates["status"] = models.TicketOpen
			updates["read_by_author"] = true
			updates["read_by_staff"] = false
		} else {
			updates["status"] = models.TicketAnswered
			updates["read_by_author"] = false
			updates["read_by_staff"] = true
		}
		return tx.Model(&t).Updates(updates).Error
	})
	if err != nil {
		return nil, wrap("reply ticket", err)
	}
	return reply, nil
}

func (r *Tickets) Close(ctx context.Context, scope TicketScope, id uint) error {
	res := scope.rows(r.db.WithContext(ctx).Model(&models.SupportTicket{})).
		Where("support_tickets.id = ? AND support_tickets.status <> ?", id, models.TicketClosed).
		Update("status", models.TicketClosed)
	if res.Error != nil {
		return wrap("close ticket", res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := scope.rows(r.db.WithContext(ctx).Model(&models.SupportTicket{})).
			Where("support_tickets.id = ?", id).Count(&n).Error; err != nil {
			return wrap("close ticket", err)
		}
		if n == 0 {
			return wrap("close ticket", ErrNotFound)
		}
		return wrap("close ticket", ErrConflict)
	}
	return nil
}

// CountUnread counts tickets the viewer authored with unseen staff replies
// plus tickets in scope, authored by others, the staff side has not seen.
func (r *Tickets) CountUnread(ctx context.Context, scope TicketScope) (int64, error) {
	var n int64
	err := scope.rows(r.db.WithContext(ctx).Model(&models.SupportTicket{})).
		Where("(support_tickets.author_id = ? AND support_tickets.read_by_author = ?) OR "+
			"(support_tickets.author_id <> ? AND support_tickets.read_by_staff = ?)",
			scope.viewer, false, scope.viewer, false).
		Count(&n).Error
	return n, wrap("count unread tickets", err)
}
