package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"

	"gorm.io/gorm"
)

// Users is the GORM UserRepository.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).
		First(&u).Error
	if err != nil {
		return nil, wrap("find user", err)
	}
	return &u, nil
}

func (r *Users) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, wrap("get user", err)
	}
	return &u, nil
}

func (r *Users) Create(ctx context.Context, u *models.User) error {
	if err := validateUserTenant(u); err != nil {
		return wrap("create user", err)
	}
	return wrap("create user", r.db.WithContext(ctx).Create(u).Error)
}

// Account updates touch only their own columns. Billing flags on the same
// row are written by webhook transactions.

func (r *Users) RecordLoginFailure(ctx context.Context, id uint, maxAttempts int, lockUntil time.Time) (bool, error) {
	var locked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).
			Update("failed_login_attempts", gorm.Expr("failed_login_attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		res = tx.Model(&models.User{}).
			Where("id = ? AND failed_login_attempts >= ?", id, maxAttempts).
			Updates(map[string]interface{}{
				"failed_login_attempts": 0,
				"locked_until":          lockUntil,
			})
		locked = res.RowsAffected > 0
		return res.Error
	})
	return locked, wrap("record login failure", err)
}

func (r *Users) RecordLogin(ctx context.Context, id uint, at time.Time, ip string) error {
	return r.updateColumns(ctx, "record login", id, map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         at,
		"last_login_ip":         ip,
	})
}

func (r *Users) SetPasswordHash(ctx context.Context, id uint, hash string) error {
	return r.updateColumns(ctx, "set password", id, map[string]interface{}{"password_hash": hash})
}

func (r *Users) SetDisplayName(ctx context.Context, id uint, name string) error {
	return r.updateColumns(ctx, "set display name", id, map[string]interface{}{"display_name": name})
}

func (r *Users) updateColumns(ctx context.Context, op string, id uint, cols map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap(op, ErrNotFound)
	}
	return nil
}

// guardianUsers filters users down to guardians of the scope's tenant. A
// guardian scope sees only itself.
func guardianUsers(db *gorm.DB, scope Scope) *gorm.DB {
	db = db.Where("users.role = ?", string(auth.RoleGuardian))
	switch {
	case scope.all:
		return db
	case scope.tenantID == 0:
		return db.Where("1 = 0")
	}
	db = db.Where("users.organization_id = ?", scope.tenantID)
	if scope.guardianID != 0 {
		db = db.Where("users.id = ?", scope.guardianID)
	}
	return db
}

func (r *Users) ListGuardians(ctx context.Context, scope Scope) ([]models.User, error) {
	var users []models.User
	err := guardianUsers(r.db.WithContext(ctx), scope).Order("id ASC").Find(&users).Error
	return users, wrap("list guardians", err)
}

func (r *Users) GetGuardian(ctx context.Context, scope Scope, id uint) (*models.User, error) {
	var u models.User
	if err := guardianUsers(r.db.WithContext(ctx), scope).First(&u, id).Error; err != nil {
		return nil, wrap("get guardian", err)
	}
	return &u, nil
}

func (r *Users) RegisterBusiness(ctx context.Context, org *models.Organization, admin *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if org.SubscriptionStatus == "" {
			org.SubscriptionStatus = models.SubscriptionIncomplete
		}
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		admin.Role = string(auth.RoleChildcareAdmin)
		admin.OrganizationID = &org.ID
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		return tx.Model(org).Update("owner_id", admin.ID).Error
	})
	return wrap("register business", err)
}

// validateUserTenant keeps stored users consistent with the principal
// invariant so every login yields a valid session.
func validateUserTenant(u *models.User) error {
	role, err := auth.ParseRole(u.Role)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	hasTenant := u.OrganizationID != nil && *u.OrganizationID != 0
	if role.TenantScoped() != hasTenant {
		return fmt.Errorf("%w: role %s tenant mismatch", ErrConflict, role)
	}
	return nil
}
