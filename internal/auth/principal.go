// Package auth resolves session artifacts into principals and enforces
// role-based access before protected operations run.
package auth

import (
	"errors"
	"fmt"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleSystemAdmin    Role = "system_admin"
	RoleChildcareAdmin Role = "childcare_admin"
	RoleGuardian       Role = "guardian"
)

// AllRoles lists every role, for routes open to any signed-in user.
var AllRoles = []Role{RoleSystemAdmin, RoleChildcareAdmin, RoleGuardian}

// ParseRole converts a stored role string, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystemAdmin, RoleChildcareAdmin, RoleGuardian:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// TenantScoped reports whether principals of this role belong to exactly one
// organization.
func (r Role) TenantScoped() bool {
	return r == RoleChildcareAdmin || r == RoleGuardian
}

var (
	// ErrUnauthenticated means no valid session artifact was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the principal's role is not allowed.
	ErrUnauthorized = errors.New("unauthorized")
)

// Principal is the authenticated identity of a request.
type Principal struct {
	ID       uint
	Role     Role
	TenantID *uint
}

// NewPrincipal builds a principal, enforcing that TenantID is present exactly
// when the role is tenant scoped.
func NewPrincipal(id uint, role Role, tenantID *uint) (Principal, error) {
	p := Principal{ID: id, Role: role, TenantID: tenantID}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Validate checks the principal invariants.
func (p Principal) Validate() error {
	if p.ID == 0 {
		return errors.New("principal id is required")
	}
	if _, err := ParseRole(string(p.Role)); err != nil {
		return err
	}
	if p.Role.TenantScoped() {
		if p.TenantID == nil || *p.TenantID == 0 {
			return fmt.Errorf("role %s requires a tenant", p.Role)
		}
	} else if p.TenantID != nil {
		return fmt.Errorf("role %s must not carry a tenant", p.Role)
	}
	return nil
}

// Tenant returns the tenant id, or 0 for system admins.
func (p Principal) Tenant() uint {
	if p.TenantID == nil {
		return 0
	}
	return *p.TenantID
}

// HasRole reports whether the principal's role is in allowed.
func (p Principal) HasRole(allowed ...Role) bool {
	for _, r := range allowed {
		if p.Role == r {
			return true
		}
	}
	return false
}
