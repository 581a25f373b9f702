package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"childcare-billing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilling_ProcessOnceIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewBilling(db)
	target := f.invoices[0]

	first := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	apply := func(at time.Time) func(BillingMutations) error {
		return func(m BillingMutations) error {
			calls++
			_, err := m.MarkInvoicePaid(context.Background(), target.ID, "cs_test_1", at)
			return err
		}
	}

	dup, err := store.ProcessOnce(ctx(), "evt_1", "checkout.session.completed", apply(first))
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.ProcessOnce(ctx(), "evt_1", "checkout.session.completed", apply(first.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, calls)

	var inv models.Invoice
	require.NoError(t, db.First(&inv, target.ID).Error)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.True(t, inv.PaidAt.Equal(first), "paid_at must not move on replay")
	assert.Equal(t, "cs_test_1", inv.CheckoutSessionID)
}

func TestBilling_MarkPaidIsConditional(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewBilling(db)
	target := f.invoices[1]

	var changed []bool
	for _, id := range []string{"evt_a", "evt_b"} {
		_, err := store.ProcessOnce(ctx(), id, "checkout.session.completed", func(m BillingMutations) error {
			ok, err := m.MarkInvoicePaid(context.Background(), target.ID, "cs_"+id, time.Now())
			changed = append(changed, ok)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []bool{true, false}, changed, "distinct events for one invoice pay it once")
}

func TestBilling_FailedMutationIsNotRecorded(t *testing.T) {
	db := setupTestDB(t)
	seedFixture(t, db)
	store := NewBilling(db)

	boom := errors.New("boom")
	_, err := store.ProcessOnce(ctx(), "evt_retry", "customer.subscription.updated", func(BillingMutations) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatastoreUnavailable)

	var n int64
	require.NoError(t, db.Model(&models.ProcessedEvent{}).Where("event_id = ?", "evt_retry").Count(&n).Error)
	assert.Zero(t, n)

	dup, err := store.ProcessOnce(ctx(), "evt_retry", "customer.subscription.updated", func(BillingMutations) error {
		return nil
	})
	require.NoError(t, err)
	assert.False(t, dup, "redelivery after failure must be processed")
}

func TestBilling_ConcurrentReplays(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewBilling(db)

	var (
		mu      sync.Mutex
		applied int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dup, err := store.ProcessOnce(ctx(), "evt_parallel", "checkout.session.completed", func(m BillingMutations) error {
				_, err := m.MarkInvoicePaid(context.Background(), f.invoices[4].ID, "cs_p", time.Now())
				return err
			})
			if err == nil && !dup {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, applied, 1)
}

func TestBilling_SubscriptionTransitions(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewBilling(db)
	org := f.orgs[0]

	_, err := store.ProcessOnce(ctx(), "evt_s1", "checkout.session.completed", func(m BillingMutations) error {
		ok, err := m.ActivateSubscription(context.Background(), SubscriptionActivation{
			OrganizationID: org.ID, Plan: "STARTER", CustomerID: "cus_1", SubscriptionID: "sub_1",
		})
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)

	_, err = store.ProcessOnce(ctx(), "evt_s2", "customer.subscription.deleted", func(m BillingMutations) error {
		ok, err := m.SetSubscriptionStatus(context.Background(), "sub_1", models.SubscriptionCanceled)
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)

	var got models.Organization
	require.NoError(t, db.First(&got, org.ID).Error)
	assert.Equal(t, "STARTER", got.Plan)
	assert.Equal(t, models.SubscriptionCanceled, got.SubscriptionStatus)
	require.NotNil(t, got.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *got.StripeSubscriptionID)
}

func TestBilling_CreateSubscribedOrganizationOnce(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	store := NewBilling(db)

	act := SubscriptionActivation{
		OwnerID:        f.sysAdmin.ID,
		Name:           "New Daycare",
		Plan:           "STARTER",
		CustomerID:     "cus_new",
		SubscriptionID: "sub_new",
	}
	for i, evt := range []string{"evt_a", "evt_b"} {
		var created bool
		_, err := store.ProcessOnce(ctx(), evt, "checkout.session.completed", func(m BillingMutations) error {
			var err error
			created, err = m.CreateSubscribedOrganization(context.Background(), act)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
	}

	var orgs []models.Organization
	require.NoError(t, db.Where("stripe_subscription_id = ?", "sub_new").Find(&orgs).Error)
	require.Len(t, orgs, 1)
	assert.Equal(t, models.SubscriptionActive, orgs[0].SubscriptionStatus)
	assert.Equal(t, "STARTER", orgs[0].Plan)
}
