package repository

import (
	"context"
	"errors"
	"time"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// errAlreadyProcessed aborts the transaction of a redelivered event.
var errAlreadyProcessed = errors.New("event already processed")

// Billing is the GORM BillingStore.
type Billing struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBilling(db *gorm.DB) *Billing {
	return &Billing{db: db, now: time.Now}
}

func (b *Billing) ProcessOnce(ctx context.Context, eventID, eventType string, fn func(BillingMutations) error) (bool, error) {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := models.ProcessedEvent{EventID: eventID, Type: eventType, ProcessedAt: b.now()}
		if err := tx.Create(&marker).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyProcessed
			}
			return err
		}
		return fn(&billingTx{tx: tx})
	})
	if errors.Is(err, errAlreadyProcessed) {
		return true, nil
	}
	if err != nil {
		return false, wrap("process event "+eventID, err)
	}
	return false, nil
}

// billingTx applies mutations inside the ProcessOnce transaction. Updates are
// conditional so concurrent or repeated deliveries cannot double apply.
type billingTx struct {
	tx *gorm.DB
}

func (m *billingTx) MarkInvoicePaid(ctx context.Context, invoiceID uint, checkoutSessionID string, at time.Time) (bool, error) {
	res := m.tx.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", invoiceID, []string{models.InvoiceOpen, models.InvoiceFailed, models.InvoiceDraft}).
		Updates(map[string]interface{}{
			"status":              models.InvoicePaid,
			"paid_at":             at,
			"checkout_session_id": checkoutSessionID,
			"checkout_hold_until": nil,
		})
	return res.RowsAffected > 0, res.Error
}

func (m *billingTx) ActivateSubscription(ctx context.Context, a SubscriptionActivation) (bool, error) {
	res := m.tx.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ? AND (stripe_subscription_id IS NULL OR stripe_subscription_id <> ? OR subscription_status <> ?)",
			a.OrganizationID, a.SubscriptionID, models.SubscriptionActive).
		Updates(map[string]interface{}{
			"plan":                   a.Plan,
			"subscription_status":    models.SubscriptionActive,
			"stripe_customer_id":     a.CustomerID,
			"stripe_subscription_id": a.SubscriptionID,
		})
	return res.RowsAffected > 0, res.Error
}

// CreateSubscribedOrganization creates an active organization for a buyer
// without one. The subscription id is unique, so a second delivery is a no-op.
func (m *billingTx) CreateSubscribedOrganization(ctx context.Context, a SubscriptionActivation) (bool, error) {
	var n int64
	if err := m.tx.WithContext(ctx).Model(&models.Organization{}).
		Where("stripe_subscription_id = ?", a.SubscriptionID).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	subID, owner := a.SubscriptionID, a.OwnerID
	org := models.Organization{
		Name:                 a.Name,
		Plan:                 a.Plan,
		SubscriptionStatus:   models.SubscriptionActive,
		StripeCustomerID:     a.CustomerID,
		StripeSubscriptionID: &subID,
		OwnerID:              &owner,
	}
	if err := m.tx.WithContext(ctx).Create(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *billingTx) SetSubscriptionStatus(ctx context.Context, subscriptionID, status string) (bool, error) {
	res := m.tx.WithContext(ctx).Model(&models.Organization{}).
		Where("stripe_subscription_id = ? AND subscription_status <> ?", subscriptionID, status).
		Update("subscription_status", status)
	return res.RowsAffected > 0, res.Error
}

func (m *billingTx) MarkPaymentMethodReady(ctx context.Context, userID uint) (bool, error) {
	res := m.tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND payment_method_ready = ?", userID, false).
		Update("payment_method_ready", true)
	return res.RowsAffected > 0, res.Error
}
