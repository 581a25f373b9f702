package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/config"
	"childcare-billing/internal/database"
	"childcare-billing/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB opens a migrated SQLite database in a temp dir.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// fixture is two organizations, each with one admin and two guardians who
// each have one child and two invoices.
type fixture struct {
	sysAdmin  auth.Principal
	orgs      []models.Organization
	admins    []auth.Principal
	guardians []auth.Principal
	invoices  []models.Invoice
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	var f fixture

	sys := models.User{Email: "root@example.com", PasswordHash: "x", Role: string(auth.RoleSystemAdmin)}
	require.NoError(t, db.Create(&sys).Error)
	f.sysAdmin = auth.Principal{ID: sys.ID, Role: auth.RoleSystemAdmin}

	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for o := 0; o < 2; o++ {
		org := models.Organization{Name: fmt.Sprintf("Org %d", o), SubscriptionStatus: models.SubscriptionActive}
		require.NoError(t, db.Create(&org).Error)
		f.orgs = append(f.orgs, org)
		orgID := org.ID

		admin := models.User{Email: fmt.Sprintf("admin%d@example.com", o), PasswordHash: "x",
			Role: string(auth.RoleChildcareAdmin), OrganizationID: &orgID}
		require.NoError(t, db.Create(&admin).Error)
		f.admins = append(f.admins, auth.Principal{ID: admin.ID, Role: auth.RoleChildcareAdmin, TenantID: &orgID})

		for g := 0; g < 2; g++ {
			guardian := models.User{Email: fmt.Sprintf("g%d-%d@example.com", o, g), PasswordHash: "x",
				Role: string(auth.RoleGuardian), OrganizationID: &orgID}
			require.NoError(t, db.Create(&guardian).Error)
			f.guardians = append(f.guardians, auth.Principal{ID: guardian.ID, Role: auth.RoleGuardian, TenantID: &orgID})

			child := models.Child{OrganizationID: orgID, GuardianID: guardian.ID, FirstName: "Kid",
				LastName: fmt.Sprintf("%d-%d", o, g), BirthDate: due.AddDate(-3, 0, 0)}
			require.NoError(t, db.Create(&child).Error)

			for i := 0; i < 2; i++ {
				childID := child.ID
				inv := models.Invoice{
					OrganizationID: orgID,
					GuardianID:     guardian.ID,
					ChildID:        &childID,
					Number:         fmt.Sprintf("INV-%d-%d-%d", o, g, i),
					AmountCents:    int64(10000 + i),
					Status:         models.InvoiceOpen,
					DueDate:        due.AddDate(0, i, 0),
				}
				require.NoError(t, db.Create(&inv).Error)
				f.invoices = append(f.invoices, inv)
			}
		}
	}
	return f
}

func (f fixture) principals() []auth.Principal {
	all := []auth.Principal{f.sysAdmin}
	all = append(all, f.admins...)
	return append(all, f.guardians...)
}

func ctx() context.Context { return context.Background() }
