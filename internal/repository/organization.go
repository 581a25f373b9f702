package repository

import (
	"context"

	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// Organizations is the GORM OrganizationRepository.
type Organizations struct {
	db *gorm.DB
}

func NewOrganizations(db *gorm.DB) *Organizations {
	return &Organizations{db: db}
}

// orgRows filters the organizations table, whose tenant column is its id.
func orgRows(db *gorm.DB, scope Scope) *gorm.DB {
	switch {
	case scope.all:
		return db
	case scope.tenantID == 0:
		return db.Where("1 = 0")
	default:
		return db.Where("organizations.id = ?", scope.tenantID)
	}
}

func (r *Organizations) List(ctx context.Context, scope Scope) ([]models.Organization, error) {
	var orgs []models.Organization
	err := orgRows(r.db.WithContext(ctx), scope).Order("id ASC").Find(&orgs).Error
	return orgs, wrap("list organizations", err)
}

func (r *Organizations) Get(ctx context.Context, scope Scope, id uint) (*models.Organization, error) {
	var org models.Organization
	if err := orgRows(r.db.WithContext(ctx), scope).First(&org, id).Error; err != nil {
		return nil, wrap("get organization", err)
	}
	return &org, nil
}

func (r *Organizations) Create(ctx context.Context, org *models.Organization) error {
	if org.SubscriptionStatus == "" {
		org.SubscriptionStatus = models.SubscriptionIncomplete
	}
	return wrap("create organization", r.db.WithContext(ctx).Create(org).Error)
}
