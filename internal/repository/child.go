package repository

import (
	"context"
	"fmt"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// Children is the GORM ChildRepository.
type Children struct {
	db *gorm.DB
}

func NewChildren(db *gorm.DB) *Children {
	return &Children{db: db}
}

func (r *Children) List(ctx context.Context, scope Scope) ([]models.Child, error) {
	var children []models.Child
	err := scope.guardianRows(r.db.WithContext(ctx), "children").
		Order("last_name ASC, first_name ASC").
		Find(&children).Error
	return children, wrap("list children", err)
}

func (r *Children) Get(ctx context.Context, scope Scope, id uint) (*models.Child, error) {
	var child models.Child
	if err := scope.guardianRows(r.db.WithContext(ctx), "children").First(&child, id).Error; err != nil {
		return nil, wrap("get child", err)
	}
	return &child, nil
}

func (r *Children) Create(ctx context.Context, scope Scope, child *models.Child) error {
	if !scope.IsTenantAdmin() {
		return wrap("create child", ErrForbidden)
	}
	child.OrganizationID = scope.tenantID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := guardianUsers(tx.Model(&models.User{}), scope).
			Where("users.id = ?", child.GuardianID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("guardian %d: %w", child.GuardianID, ErrNotFound)
		}
		if child.AgeRangeID != nil {
			if err := scope.tenantRows(tx.Model(&models.AgeRange{}), "age_ranges").
				Where("age_ranges.id = ?", *child.AgeRangeID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("age range %d: %w", *child.AgeRangeID, ErrNotFound)
			}
		}
		return tx.Create(child).Error
	})
	return wrap("create child", err)
}

// AgeRanges is the GORM AgeRangeRepository.
type AgeRanges struct {
	db *gorm.DB
}

func NewAgeRanges(db *gorm.DB) *AgeRanges {
	return &AgeRanges{db: db}
}

func (r *AgeRanges) List(ctx context.Context, scope Scope) ([]models.AgeRange, error) {
	var ranges []models.AgeRange
	err := scope.tenantRows(r.db.WithContext(ctx), "age_ranges").
		Order("min_months ASC").
		Find(&ranges).Error
	return ranges, wrap("list age ranges", err)
}

func (r *AgeRanges) Create(ctx context.Context, scope Scope, ar *models.AgeRange) error {
	if !scope.IsTenantAdmin() {
		return wrap("create age range", ErrForbidden)
	}
	if ar.MinMonths < 0 || ar.MaxMonths < ar.MinMonths {
		return wrap("create age range", fmt.Errorf("%w: bad month bounds", ErrConflict))
	}
	ar.OrganizationID = scope.tenantID
	return wrap("create age range", r.db.WithContext(ctx).Create(ar).Error)
}
