package handler

import (
	"net/http"
	"strconv"
	"strings"

	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler serves invoices through the caller's scope.
type InvoiceHandler struct {
	invoices repository.InvoiceRepository
	pageSize int
}

func NewInvoiceHandler(invoices repository.InvoiceRepository, pageSize int) *InvoiceHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &InvoiceHandler{invoices: invoices, pageSize: pageSize}
}

func invoiceView(inv *models.Invoice) gin.H {
	return gin.H{
		"id":              inv.ID,
		"organization_id": inv.OrganizationID,
		"guardian_id":     inv.GuardianID,
		"child_id":        inv.ChildID,
		"number":          inv.Number,
		"description":     inv.Description,
		"amount_cents":    inv.AmountCents,
		"amount":          util.FormatCents(inv.AmountCents),
		"status":          inv.Status,
		"due_date":        inv.DueDate.Format("2006-01-02"),
		"paid_at":         inv.PaidAt,
		"created_at":      inv.CreatedAt,
	}
}

func invoiceFilter(c *gin.Context, pageSize int) (repository.InvoiceFilter, bool) {
	page, size := pageParams(c, pageSize)
	f := repository.InvoiceFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if g := c.Query("guardian_id"); g != "" {
		id, err := strconv.ParseUint(g, 10, 64)
		if err != nil {
			badRequest(c, "invalid guardian_id")
			return f, false
		}
		f.GuardianID = uint(id)
	}
	return f, true
}

func (h *InvoiceHandler) List(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	f, ok := invoiceFilter(c, h.pageSize)
	if !ok {
		return
	}
	invoices, err := h.invoices.List(c.Request.Context(), s, f)
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(invoices))
	for i := range invoices {
		list = append(list, invoiceView(&invoices[i]))
	}
	util.Success(c, util.Response{"invoices": list})
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), s, id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"invoice": invoiceView(inv)})
}

type createInvoiceReq struct {
	GuardianID  uint   `json:"guardian_id" binding:"required"`
	ChildID     *uint  `json:"child_id"`
	Description string `json:"description" binding:"max=255"`
	AmountCents int64  `json:"amount_cents"`
	DueDate     string `json:"due_date" binding:"required"`
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	var req createInvoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if err := util.ValidateAmountCents(req.AmountCents); err != nil {
		util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid_amount", "amount_cents must be positive")
		return
	}
	due, err := util.ValidateDate(req.DueDate)
	if err != nil {
		badRequest(c, "due_date must be YYYY-MM-DD")
		return
	}
	inv := &models.Invoice{
		GuardianID:  req.GuardianID,
		ChildID:     req.ChildID,
		Number:      newInvoiceNumber(),
		Description: strings.TrimSpace(req.Description),
		AmountCents: req.AmountCents,
		Status:      models.InvoiceOpen,
		DueDate:     due,
	}
	if err := h.invoices.Create(c.Request.Context(), s, inv); err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"invoice": invoiceView(inv)})
}

func (h *InvoiceHandler) Void(c *gin.Context) {
	s, _, ok := scope(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Void(c.Request.Context(), s, id); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"id": id, "status": models.InvoiceVoid})
}

func newInvoiceNumber() string {
	return "INV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
