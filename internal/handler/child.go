package handler

import (
	"strings"

	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// ChildHandler serves enrolled children and the age ranges they are priced by.
type ChildHandler struct {
	children  repository.ChildRepository
	ageRanges repository.AgeRangeRepository
}

func NewChildHandler(children repository.ChildRepository, ageRanges repository.AgeRangeRepository) *ChildHandler {
	return &ChildHandler{children: children, ageRanges: ageRanges}
}

func childView(ch *models.Child) gin.H {
	return gin.H{
		"id":              ch.ID,
		"organization_id": ch.OrganizationID,
		"guardian_id":     ch.GuardianID,
		"age_range_id":    ch.AgeRangeID,
		"first_name":      ch.FirstName,
		"last_name":       ch.LastName,
		"birth_date":      ch.BirthDate.Format("2006-01-02"),
	}
}

func ageRangeView(ar *models.AgeRange) gin.H {
	return gin.H{
		"id":                ar.ID,
		"name":              ar.Name,
		"min_months":        ar.MinMonths,
		"max_months":        ar.MaxMonths,
		"weekly_rate_cents": ar.WeeklyRateCents,
		"weekly_rate":       util.FormatCents(ar.WeeklyRateCents),
	}
}

func (h *ChildHandler) List(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	children, err := h.children.List(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(children))
	for i := range children {
		list = append(list, childView(&children[i]))
	}
	util.Success(c, util.Response{"children": list})
}

type createChildReq struct {
	GuardianID uint   `json:"guardian_id" binding:"required"`
	AgeRangeID *uint  `json:"age_range_id"`
	FirstName  string `json:"first_name" binding:"required,max=64"`
	LastName   string `json:"last_name" binding:"required,max=64"`
	BirthDate  string `json:"birth_date" binding:"required"`
}

func (h *ChildHandler) Create(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	var req createChildReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	birth, err := util.ValidateDate(req.BirthDate)
	if err != nil {
		badRequest(c, "birth_date must be YYYY-MM-DD")
		return
	}
	child := &models.Child{
		GuardianID: req.GuardianID,
		AgeRangeID: req.AgeRangeID,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		BirthDate:  birth,
	}
	if err := h.children.Create(c.Request.Context(), s, child); err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"child": childView(child)})
}

func (h *ChildHandler) ListAgeRanges(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	ranges, err := h.ageRanges.List(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(ranges))
	for i := range ranges {
		list = append(list, ageRangeView(&ranges[i]))
	}
	util.Success(c, util.Response{"age_ranges": list})
}

type createAgeRangeReq struct {
	Name            string `json:"name" binding:"required,max=64"`
	MinMonths       int    `json:"min_months" binding:"min=0"`
	MaxMonths       int    `json:"max_months" binding:"min=0"`
	WeeklyRateCents int64  `json:"weekly_rate_cents"`
}

func (h *ChildHandler) CreateAgeRange(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	var req createAgeRangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if err := util.ValidateAmountCents(req.WeeklyRateCents); err != nil {
		badRequest(c, "weekly_rate_cents must be positive")
		return
	}
	ar := &models.AgeRange{
		Name:            strings.TrimSpace(req.Name),
		MinMonths:       req.MinMonths,
		MaxMonths:       req.MaxMonths,
		WeeklyRateCents: req.WeeklyRateCents,
	}
	if err := h.ageRanges.Create(c.Request.Context(), s, ar); err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"age_range": ageRangeView(ar)})
}
