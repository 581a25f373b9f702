package repository

import (
	"sync"
	"testing"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoices_ListIsTenantScoped(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewInvoices(db)

	for _, p := range f.principals() {
		got, err := repo.List(ctx(), ScopeFor(p), InvoiceFilter{})
		require.NoError(t, err)

		switch p.Role {
		case auth.RoleSystemAdmin:
			assert.Len(t, got, len(f.invoices))
		case auth.RoleChildcareAdmin:
			assert.Len(t, got, 4)
			for _, inv := range got {
				assert.Equal(t, p.Tenant(), inv.OrganizationID, "admin %d saw foreign invoice %d", p.ID, inv.ID)
			}
		case auth.RoleGuardian:
			assert.Len(t, got, 2)
			for _, inv := range got {
				assert.Equal(t, p.ID, inv.GuardianID, "guardian %d saw invoice %d", p.ID, inv.ID)
			}
		}
	}
}

func TestInvoices_GetCannotCrossTenant(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewInvoices(db)

	for _, p := range f.principals() {
		scope := ScopeFor(p)
		for _, inv := range f.invoices {
			got, err := repo.Get(ctx(), scope, inv.ID)
			if scope.Permits(inv.OrganizationID, inv.GuardianID) {
				require.NoError(t, err)
				assert.Equal(t, inv.ID, got.ID)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
				assert.Nil(t, got)
			}
		}
	}
}

func TestInvoices_FilterCannotWidenScope(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewInvoices(db)

	// guardian asks for another guardian's invoices
	got, err := repo.List(ctx(), ScopeFor(f.guardians[0]), InvoiceFilter{GuardianID: f.guardians[1].ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	// admin filters on a guardian of the other tenant
	got, err = repo.List(ctx(), ScopeFor(f.admins[0]), InvoiceFilter{GuardianID: f.guardians[3].ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.List(ctx(), Scope{}, InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvoices_Create(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewInvoices(db)
	adminScope := ScopeFor(f.admins[0])

	inv := models.Invoice{GuardianID: f.guardians[0].ID, Number: "INV-NEW-1", AmountCents: 4501, OrganizationID: f.orgs[1].ID}
	require.NoError(t, repo.Create(ctx(), adminScope, &inv))
	assert.Equal(t, f.orgs[0].ID, inv.OrganizationID, "tenant comes from scope, not input")
	assert.Equal(t, models.InvoiceOpen, inv.Status)

	// guardian of the other organization
	foreign := models.Invoice{GuardianID: f.guardians[2].ID, Number: "INV-NEW-2", AmountCents: 100}
	assert.ErrorIs(t, repo.Create(ctx(), adminScope, &foreign), ErrNotFound)

	// child that belongs to a different guardian
	wrongChild := f.invoices[2].ChildID
	mismatch := models.Invoice{GuardianID: f.guardians[0].ID, ChildID: wrongChild, Number: "INV-NEW-3", AmountCents: 100}
	assert.ErrorIs(t, repo.Create(ctx(), adminScope, &mismatch), ErrNotFound)

	dup := models.Invoice{GuardianID: f.guardians[0].ID, Number: "INV-NEW-1", AmountCents: 100}
	assert.ErrorIs(t, repo.Create(ctx(), adminScope, &dup), ErrConflict)

	for _, p := range []auth.Principal{f.guardians[0], f.sysAdmin} {
		other := models.Invoice{GuardianID: f.guardians[0].ID, Number: "INV-NEW-4", AmountCents: 100}
		assert.ErrorIs(t, repo.Create(ctx(), ScopeFor(p), &other), ErrForbidden)
	}
}

func TestInvoices_Void(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewInvoices(db)

	target := f.invoices[0]
	assert.ErrorIs(t, repo.Void(ctx(), ScopeFor(f.admins[1]), target.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Void(ctx(), ScopeFor(f.guardians[0]), target.ID), ErrForbidden)

	require.NoError(t, repo.Void(ctx(), ScopeFor(f.admins[0]), target.ID))
	assert.ErrorIs(t, repo.Void(ctx(), ScopeFor(f.admins[0]), target.ID), ErrConflict)

	got, err := repo.Get(ctx(), ScopeFor(f.admins[0]), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceVoid, got.Status)
}

func TestInvoices_HoldForCheckout(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewInvoices(db)
	billing := NewBilling(db)
	owner := ScopeFor(f.guardians[0])
	target := f.invoices[0]
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, repo.HoldForCheckout(ctx(), ScopeFor(f.guardians[1]), target.ID, now, now.Add(time.Hour)), ErrNotFound)

	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.HoldForCheckout(ctx(), owner, target.ID, now, now.Add(time.Hour))
		}()
	}
	wg.Wait()
	close(errs)
	held := 0
	for err := range errs {
		if err == nil {
			held++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, held)

	// an expired hold can be taken again
	later := now.Add(2 * time.Hour)
	require.NoError(t, repo.HoldForCheckout(ctx(), owner, target.ID, later, later.Add(time.Hour)))

	require.NoError(t, repo.ReleaseCheckout(ctx(), owner, target.ID))
	require.NoError(t, repo.HoldForCheckout(ctx(), owner, target.ID, later, later.Add(time.Hour)))

	_, err := billing.ProcessOnce(ctx(), "evt_hold", "checkout.session.completed", func(m BillingMutations) error {
		_, err := m.MarkInvoicePaid(ctx(), target.ID, "cs_hold", later)
		return err
	})
	require.NoError(t, err)
	got, err := repo.Get(ctx(), owner, target.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CheckoutHoldUntil)
	assert.ErrorIs(t, repo.HoldForCheckout(ctx(), owner, target.ID, later.Add(3*time.Hour), later.Add(4*time.Hour)), ErrConflict)
}

func TestChildren_Scoped(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewChildren(db)

	for _, p := range f.principals() {
		got, err := repo.List(ctx(), ScopeFor(p))
		require.NoError(t, err)
		for _, c := range got {
			assert.True(t, ScopeFor(p).Permits(c.OrganizationID, c.GuardianID))
		}
		if p.Role == auth.RoleGuardian {
			assert.Len(t, got, 1)
		}
	}

	child := models.Child{GuardianID: f.guardians[2].ID, FirstName: "A", LastName: "B"}
	assert.ErrorIs(t, repo.Create(ctx(), ScopeFor(f.admins[0]), &child), ErrNotFound)
}

func TestUsers_GuardiansAndRegistration(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repo := NewUsers(db)

	guardians, err := repo.ListGuardians(ctx(), ScopeFor(f.admins[0]))
	require.NoError(t, err)
	assert.Len(t, guardians, 2)

	self, err := repo.ListGuardians(ctx(), ScopeFor(f.guardians[0]))
	require.NoError(t, err)
	require.Len(t, self, 1)
	assert.Equal(t, f.guardians[0].ID, self[0].ID)

	_, err = repo.GetGuardian(ctx(), ScopeFor(f.admins[0]), f.guardians[3].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	org := models.Organization{Name: "Little Oaks"}
	admin := models.User{Email: "owner@oaks.example", PasswordHash: "x"}
	require.NoError(t, repo.RegisterBusiness(ctx(), &org, &admin))
	require.NotNil(t, admin.OrganizationID)
	assert.Equal(t, org.ID, *admin.OrganizationID)
	assert.Equal(t, string(auth.RoleChildcareAdmin), admin.Role)

	found, err := repo.FindByEmail(ctx(), "OWNER@oaks.example")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, found.ID)

	// guardian without a tenant violates the principal invariant
	bad := models.User{Email: "lost@example.com", PasswordHash: "x", Role: string(auth.RoleGuardian)}
	assert.ErrorIs(t, repo.Create(ctx(), &bad), ErrConflict)
}
