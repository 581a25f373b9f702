package handler

import (
	"strings"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

func userView(u *models.User) gin.H {
	return gin.H{
		"id":                   u.ID,
		"email":                u.Email,
		"display_name":         u.DisplayName,
		"role":                 u.Role,
		"organization_id":      u.OrganizationID,
		"payment_method_ready": u.PaymentMethodReady,
		"created_at":           u.CreatedAt,
	}
}

// UserHandler serves the current profile and tenant guardian accounts.
type UserHandler struct {
	users      repository.UserRepository
	orgs       repository.OrganizationRepository
	bcryptCost int
}

func NewUserHandler(users repository.UserRepository, orgs repository.OrganizationRepository, bcryptCost int) *UserHandler {
	return &UserHandler{users: users, orgs: orgs, bcryptCost: bcryptCost}
}

// GetMe returns the signed-in principal with profile and organization.
func (h *UserHandler) GetMe(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := util.Response{
		"principal": gin.H{"id": p.ID, "role": p.Role, "tenant_id": p.TenantID},
		"user":      userView(user),
	}
	if p.TenantID != nil {
		org, err := h.orgs.Get(c.Request.Context(), repository.ScopeFor(p), *p.TenantID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["organization"] = organizationView(org)
	}
	util.Success(c, resp)
}

// ListGuardians lists guardian accounts visible to the caller.
func (h *UserHandler) ListGuardians(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	users, err := h.users.ListGuardians(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(users))
	for i := range users {
		list = append(list, userView(&users[i]))
	}
	util.Success(c, util.Response{"guardians": list})
}

type createGuardianReq struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"max=64"`
}

// CreateGuardian adds a guardian account to the caller's organization.
func (h *UserHandler) CreateGuardian(c *gin.Context) {
	s, p, ok := scope(c)
	if !ok {
		return
	}
	if !s.IsTenantAdmin() {
		respondError(c, auth.ErrUnauthorized)
		return
	}
	var req createGuardianReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		badRequest(c, "invalid email")
		return
	}
	if !util.IsStrongPassword(req.Password) {
		badRequest(c, "password needs 8-64 characters with upper, lower case letters and a digit")
		return
	}
	hash, err := util.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		respondError(c, err)
		return
	}
	tenant := p.Tenant()
	u := &models.User{
		Email:          email,
		PasswordHash:   hash,
		DisplayName:    strings.TrimSpace(req.DisplayName),
		Role:           string(auth.RoleGuardian),
		OrganizationID: &tenant,
	}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"guardian": userView(u)})
}
