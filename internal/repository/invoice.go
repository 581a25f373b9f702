package repository

import (
	"context"
	"fmt"
	"time"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// Invoices is the GORM InvoiceRepository.
type Invoices struct {
	db *gorm.DB
}

func NewInvoices(db *gorm.DB) *Invoices {
	return &Invoices{db: db}
}

func (r *Invoices) List(ctx context.Context, scope Scope, f InvoiceFilter) ([]models.Invoice, error) {
	q := scope.guardianRows(r.db.WithContext(ctx).Model(&models.Invoice{}), "invoices")
	if f.Status != "" {
		q = q.Where("invoices.status = ?", f.Status)
	}
	if f.GuardianID != 0 {
		q = q.Where("invoices.guardian_id = ?", f.GuardianID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var invoices []models.Invoice
	err := q.Order("invoices.due_date DESC, invoices.id DESC").Find(&invoices).Error
	return invoices, wrap("list invoices", err)
}

func (r *Invoices) Get(ctx context.Context, scope Scope, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := scope.guardianRows(r.db.WithContext(ctx), "invoices").First(&inv, id).Error; err != nil {
		return nil, wrap("get invoice", err)
	}
	return &inv, nil
}

func (r *Invoices) Create(ctx context.Context, scope Scope, inv *models.Invoice) error {
	if !scope.IsTenantAdmin() {
		return wrap("create invoice", ErrForbidden)
	}
	inv.OrganizationID = scope.tenantID
	if inv.Status == "" {
		inv.Status = models.InvoiceOpen
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// guardian and child must belong to the same tenant
		var n int64
		if err := guardianUsers(tx.Model(&models.User{}), scope).
			Where("users.id = ?", inv.GuardianID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("guardian %d: %w", inv.GuardianID, ErrNotFound)
		}
		if inv.ChildID != nil {
			if err := scope.tenantRows(tx.Model(&models.Child{}), "children").
				Where("children.id = ? AND children.guardian_id = ?", *inv.ChildID, inv.GuardianID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("child %d: %w", *inv.ChildID, ErrNotFound)
			}
		}
		return tx.Create(inv).Error
	})
	return wrap("create invoice", err)
}

// Void cancels an unpaid invoice.
func (r *Invoices) Void(ctx context.Context, scope Scope, id uint) error {
	if !scope.IsTenantAdmin() && !scope.all {
		return wrap("void invoice", ErrForbidden)
	}
	res := scope.guardianRows(r.db.WithContext(ctx).Model(&models.Invoice{}), "invoices").
		Where("invoices.id = ? AND invoices.status NOT IN ?", id, []string{models.InvoicePaid, models.InvoiceVoid}).
		Update("status", models.InvoiceVoid)
	if res.Error != nil {
		return wrap("void invoice", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, scope, id); err != nil {
			return err
		}
		return wrap("void invoice", ErrConflict)
	}
	return nil
}

func (r *Invoices) HoldForCheckout(ctx context.Context, scope Scope, id uint, now, until time.Time) error {
	res := scope.guardianRows(r.db.WithContext(ctx).Model(&models.Invoice{}), "invoices").
		Where("invoices.id = ? AND invoices.status NOT IN ?", id, []string{models.InvoicePaid, models.InvoiceVoid}).
		Where("(invoices.checkout_hold_until IS NULL OR invoices.checkout_hold_until <= ?)", now.UTC()).
		Update("checkout_hold_until", until.UTC())
	if res.Error != nil {
		return wrap("hold invoice", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, scope, id); err != nil {
			return err
		}
		return wrap("hold invoice", ErrConflict)
	}
	return nil
}

func (r *Invoices) ReleaseCheckout(ctx context.Context, scope Scope, id uint) error {
	err := scope.guardianRows(r.db.WithContext(ctx).Model(&models.Invoice{}), "invoices").
		Where("invoices.id = ?", id).
		Update("checkout_hold_until", nil).Error
	return wrap("release invoice", err)
}
