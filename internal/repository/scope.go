package repository

import (
	"childcare-billing/internal/auth"

	"gorm.io/gorm"
)

// Scope is the row filter derived from a principal. Every tenant-owned read or
// write goes through one. The zero Scope matches no rows.
type Scope struct {
	all        bool
	tenantID   uint
	guardianID uint
}

// ScopeFor derives the scope for p: system admins see everything, childcare
// admins their organization, guardians only rows that reference them.
func ScopeFor(p auth.Principal) Scope {
	if err := p.Validate(); err != nil {
		return Scope{}
	}
	switch p.Role {
	case auth.RoleSystemAdmin:
		return Scope{all: true}
	case auth.RoleChildcareAdmin:
		return Scope{tenantID: p.Tenant()}
	case auth.RoleGuardian:
		return Scope{tenantID: p.Tenant(), guardianID: p.ID}
	}
	return Scope{}
}

// All reports an unfiltered scope.
func (s Scope) All() bool { return s.all }

// TenantID returns the organization the scope is pinned to.
func (s Scope) TenantID() (uint, bool) { return s.tenantID, s.tenantID != 0 }

// GuardianID returns the guardian the scope is pinned to.
func (s Scope) GuardianID() (uint, bool) { return s.guardianID, s.guardianID != 0 }

// IsTenantAdmin reports a childcare admin scope.
func (s Scope) IsTenantAdmin() bool { return !s.all && s.tenantID != 0 && s.guardianID == 0 }

// Permits reports whether a row owned by organizationID and guardianID is
// visible. It mirrors guardianRows for in-memory stores.
func (s Scope) Permits(organizationID, guardianID uint) bool {
	switch {
	case s.all:
		return true
	case s.tenantID == 0:
		return false
	case organizationID != s.tenantID:
		return false
	case s.guardianID != 0:
		return guardianID == s.guardianID
	default:
		return true
	}
}

// PermitsTenant reports whether rows of organizationID are visible to a
// scope on a table without a guardian column.
func (s Scope) PermitsTenant(organizationID uint) bool {
	return s.all || (s.tenantID != 0 && organizationID == s.tenantID)
}

// tenantRows filters a table by organization_id.
func (s Scope) tenantRows(db *gorm.DB, table string) *gorm.DB {
	switch {
	case s.all:
		return db
	case s.tenantID == 0:
		return db.Where("1 = 0")
	default:
		return db.Where(table+".organization_id = ?", s.tenantID)
	}
}

// guardianRows filters a table by organization_id and, for guardians, by
// guardian_id.
func (s Scope) guardianRows(db *gorm.DB, table string) *gorm.DB {
	db = s.tenantRows(db, table)
	if !s.all && s.guardianID != 0 {
		db = db.Where(table+".guardian_id = ?", s.guardianID)
	}
	return db
}
