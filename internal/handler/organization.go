package handler

import (
	"strings"

	"childcare-billing/internal/models"
	"childcare-billing/internal/payment"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

func organizationView(o *models.Organization) gin.H {
	return gin.H{
		"id":                  o.ID,
		"name":                o.Name,
		"plan":                o.Plan,
		"subscription_status": o.SubscriptionStatus,
		"owner_id":            o.OwnerID,
		"created_at":          o.CreatedAt,
	}
}

// OrganizationHandler serves tenant records. Listing and creation are system
// admin routes; any signed-in user may read their own organization.
type OrganizationHandler struct {
	orgs repository.OrganizationRepository
}

func NewOrganizationHandler(orgs repository.OrganizationRepository) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

func (h *OrganizationHandler) List(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	orgs, err := h.orgs.List(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(orgs))
	for i := range orgs {
		list = append(list, organizationView(&orgs[i]))
	}
	util.Success(c, util.Response{"organizations": list})
}

func (h *OrganizationHandler) Get(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), s, id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"organization": organizationView(org)})
}

type createOrganizationReq struct {
	Name string `json:"name" binding:"required,max=128"`
	Plan string `json:"plan"`
}

func (h *OrganizationHandler) Create(c *gin.Context) {
	var req createOrganizationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	org := &models.Organization{Name: strings.TrimSpace(req.Name)}
	if req.Plan != "" {
		plan, err := payment.ParsePlan(req.Plan)
		if err != nil {
			respondError(c, err)
			return
		}
		org.Plan = string(plan)
	}
	if err := h.orgs.Create(c.Request.Context(), org); err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"organization": organizationView(org)})
}
