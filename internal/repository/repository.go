// Package repository holds the datastore access for the billing service.
// Tenant-owned queries take a Scope, so callers cannot reach another
// organization's rows through these paths.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist or is outside the scope.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique constraint violations and illegal
	// state transitions.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when a scope may read but not perform a write.
	ErrForbidden = errors.New("forbidden")
	// ErrDatastoreUnavailable wraps transient datastore failures.
	ErrDatastoreUnavailable = errors.New("datastore unavailable")
)

// wrap maps gorm errors onto the repository taxonomy.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrForbidden):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrDatastoreUnavailable, err)
	}
}

// OrganizationRepository manages tenants.
type OrganizationRepository interface {
	List(ctx context.Context, scope Scope) ([]models.Organization, error)
	Get(ctx context.Context, scope Scope, id uint) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
}

// UserRepository manages accounts. Lookups by email are unscoped because
// they serve sign-in.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	// RecordLoginFailure counts a failed password check. Once the count
	// reaches maxAttempts the account is locked until lockUntil and the
	// counter starts over.
	RecordLoginFailure(ctx context.Context, id uint, maxAttempts int, lockUntil time.Time) (locked bool, err error)
	RecordLogin(ctx context.Context, id uint, at time.Time, ip string) error
	SetPasswordHash(ctx context.Context, id uint, hash string) error
	SetDisplayName(ctx context.Context, id uint, name string) error
	ListGuardians(ctx context.Context, scope Scope) ([]models.User, error)
	GetGuardian(ctx context.Context, scope Scope, id uint) (*models.User, error)
	// RegisterBusiness creates an organization and its first childcare admin
	// atomically.
	RegisterBusiness(ctx context.Context, org *models.Organization, admin *models.User) error
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status     string
	GuardianID uint
	Limit      int
	Offset     int
}

// InvoiceRepository manages invoices.
type InvoiceRepository interface {
	List(ctx context.Context, scope Scope, f InvoiceFilter) ([]models.Invoice, error)
	Get(ctx context.Context, scope Scope, id uint) (*models.Invoice, error)
	// Create stores inv under the scope's tenant. Only tenant admin scopes
	// may create.
	Create(ctx context.Context, scope Scope, inv *models.Invoice) error
	Void(ctx context.Context, scope Scope, id uint) error
	// HoldForCheckout reserves a payable invoice for one checkout session
	// until the given time. It fails with ErrConflict while another hold is
	// live or once the invoice is settled.
	HoldForCheckout(ctx context.Context, scope Scope, id uint, now, until time.Time) error
	// ReleaseCheckout drops a hold whose session was never created.
	ReleaseCheckout(ctx context.Context, scope Scope, id uint) error
}

// ChildRepository manages enrolled children.
type ChildRepository interface {
	List(ctx context.Context, scope Scope) ([]models.Child, error)
	Get(ctx context.Context, scope Scope, id uint) (*models.Child, error)
	Create(ctx context.Context, scope Scope, child *models.Child) error
}

// AgeRangeRepository manages pricing brackets.
type AgeRangeRepository interface {
	List(ctx context.Context, scope Scope) ([]models.AgeRange, error)
	Create(ctx context.Context, scope Scope, r *models.AgeRange) error
}

// TicketRepository is the server-side support ticket store.
type TicketRepository interface {
	Create(ctx context.Context, t *models.SupportTicket) error
	List(ctx context.Context, scope TicketScope) ([]models.SupportTicket, error)
	// Open loads a ticket with replies and marks it read for the viewer.
	Open(ctx context.Context, scope TicketScope, id uint) (*models.SupportTicket, error)
	Reply(ctx context.Context, scope TicketScope, id uint, body string) (*models.TicketReply, error)
	Close(ctx context.Context, scope TicketScope, id uint) error
	CountUnread(ctx context.Context, scope TicketScope) (int64, error)
}

// CheckoutRepository durably records created checkout sessions.
type CheckoutRepository interface {
	Record(ctx context.Context, s *models.CheckoutSession) error
}

// AuditRepository stores audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error)
}

// SubscriptionActivation describes a completed subscription checkout.
// OrganizationID is zero when the buyer has no organization yet; OwnerID and
// Name are then used to create one.
type SubscriptionActivation struct {
	OrganizationID uint
	OwnerID        uint
	Name           string
	Plan           string
	CustomerID     string
	SubscriptionID string
}

// BillingMutations are the state transitions driven by provider webhooks.
// Each reports whether it changed anything.
type BillingMutations interface {
	MarkInvoicePaid(ctx context.Context, invoiceID uint, checkoutSessionID string, at time.Time) (bool, error)
	ActivateSubscription(ctx context.Context, a SubscriptionActivation) (bool, error)
	CreateSubscribedOrganization(ctx context.Context, a SubscriptionActivation) (bool, error)
	SetSubscriptionStatus(ctx context.Context, subscriptionID, status string) (bool, error)
	MarkPaymentMethodReady(ctx context.Context, userID uint) (bool, error)
}

// BillingStore applies webhook events at most once. ProcessOnce records
// eventID and runs fn in a single transaction; a recorded eventID makes it
// return duplicate=true without calling fn. If fn fails nothing is recorded.
type BillingStore interface {
	ProcessOnce(ctx context.Context, eventID, eventType string, fn func(BillingMutations) error) (duplicate bool, err error)
}
