package database

import (
	"context"
	"fmt"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"
	"childcare-billing/internal/util"

	"gorm.io/gorm"
)

// SeedResult summarizes what Seed created.
type SeedResult struct {
	Organizations int
	Users         int
	Children      int
	Invoices      int
}

// Seed loads demo data into an empty database: a system admin and two
// organizations, each with an admin, two guardians, their children and
// invoices. Every account uses password. A database that already has users
// is left untouched.
func Seed(ctx context.Context, db *gorm.DB, password string, bcryptCost int) (SeedResult, error) {
	var res SeedResult
	var n int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return res, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return res, nil
	}

	hash, err := util.HashPassword(password, bcryptCost)
	if err != nil {
		return res, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		root := models.User{Email: "admin@example.com", PasswordHash: hash, DisplayName: "System Admin", Role: string(auth.RoleSystemAdmin)}
		if err := tx.Create(&root).Error; err != nil {
			return err
		}
		res.Users++

		due := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
		for o, name := range []string{"Sunshine Daycare", "Little Oaks Preschool"} {
			org := models.Organization{Name: name, Plan: "STARTER", SubscriptionStatus: models.SubscriptionIncomplete}
			if err := tx.Create(&org).Error; err != nil {
				return err
			}
			res.Organizations++
			orgID := org.ID

			admin := models.User{
				Email:          fmt.Sprintf("owner%d@example.com", o+1),
				PasswordHash:   hash,
				DisplayName:    name + " Owner",
				Role:           string(auth.RoleChildcareAdmin),
				OrganizationID: &orgID,
			}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
			if err := tx.Model(&org).Update("owner_id", admin.ID).Error; err != nil {
				return err
			}
			res.Users++

			toddlers := models.AgeRange{OrganizationID: orgID, Name: "Toddler", MinMonths: 12, MaxMonths: 36, WeeklyRateCents: 32500}
			if err := tx.Create(&toddlers).Error; err != nil {
				return err
			}

			for g := 1; g <= 2; g++ {
				guardian := models.User{
					Email:          fmt.Sprintf("parent%d.%d@example.com", o+1, g),
					PasswordHash:   hash,
					DisplayName:    fmt.Sprintf("Parent %d-%d", o+1, g),
					Role:           string(auth.RoleGuardian),
					OrganizationID: &orgID,
				}
				if err := tx.Create(&guardian).Error; err != nil {
					return err
				}
				res.Users++

				rangeID := toddlers.ID
				child := models.Child{
					OrganizationID: orgID,
					GuardianID:     guardian.ID,
					AgeRangeID:     &rangeID,
					FirstName:      fmt.Sprintf("Kid%d", g),
					LastName:       fmt.Sprintf("Family%d%d", o+1, g),
					BirthDate:      time.Date(2023, time.Month(g*3), 10, 0, 0, 0, 0, time.UTC),
				}
				if err := tx.Create(&child).Error; err != nil {
					return err
				}
				res.Children++

				childID := child.ID
				for i, status := range []string{models.InvoiceOpen, models.InvoicePaid} {
					inv := models.Invoice{
						OrganizationID: orgID,
						GuardianID:     guardian.ID,
						ChildID:        &childID,
						Number:         fmt.Sprintf("DEMO-%d-%d-%d", o+1, g, i+1),
						Description:    fmt.Sprintf("Weekly tuition #%d", i+1),
						AmountCents:    toddlers.WeeklyRateCents,
						Status:         status,
						DueDate:        due.AddDate(0, 0, -7*i),
					}
					if status == models.InvoicePaid {
						paid := due.AddDate(0, 0, -10)
						inv.PaidAt = &paid
					}
					if err := tx.Create(&inv).Error; err != nil {
						return err
					}
					res.Invoices++
				}
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: %w", err)
	}
	return res, nil
}
