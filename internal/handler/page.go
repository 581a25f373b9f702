package handler

import (
	"net/http"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/middleware"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	gomponents "maragu.dev/gomponents"
)

// PageHandler renders the dashboards.
type PageHandler struct {
	orgs     repository.OrganizationRepository
	users    repository.UserRepository
	children repository.ChildRepository
	invoices repository.InvoiceRepository
	tickets  repository.TicketRepository
}

func NewPageHandler(
	orgs repository.OrganizationRepository,
	users repository.UserRepository,
	children repository.ChildRepository,
	invoices repository.InvoiceRepository,
	tickets repository.TicketRepository,
) *PageHandler {
	return &PageHandler{orgs: orgs, users: users, children: children, invoices: invoices, tickets: tickets}
}

func render(c *gin.Context, status int, node gomponents.Node) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := node.Render(c.Writer); err != nil {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("render page")
	}
}

// pageFailed sends page errors back to sign-in; the detail is logged.
func pageFailed(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.FullPath()).Msg("page failed")
	c.Redirect(http.StatusFound, "/")
}

func (h *PageHandler) SignIn(c *gin.Context) {
	render(c, http.StatusOK, view.SignIn(c.Query("error")))
}

// Dashboard sends a signed-in user to the dashboard of their role.
func (h *PageHandler) Dashboard(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	target := "/"
	switch p.Role {
	case auth.RoleSystemAdmin:
		target = "/admin"
	case auth.RoleChildcareAdmin:
		target = "/business"
	case auth.RoleGuardian:
		target = "/guardian"
	}
	c.Redirect(http.StatusFound, target)
}

func (h *PageHandler) who(c *gin.Context, p auth.Principal) string {
	u, err := h.users.Get(c.Request.Context(), p.ID)
	if err != nil {
		return string(p.Role)
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

func (h *PageHandler) Admin(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	ctx, s := c.Request.Context(), repository.ScopeFor(p)

	orgs, err := h.orgs.List(ctx, s)
	if err != nil {
		pageFailed(c, err)
		return
	}
	invoices, err := h.invoices.List(ctx, s, repository.InvoiceFilter{Limit: 20})
	if err != nil {
		pageFailed(c, err)
		return
	}
	unread, err := h.tickets.CountUnread(ctx, repository.TicketScopeFor(p))
	if err != nil {
		pageFailed(c, err)
		return
	}
	render(c, http.StatusOK, view.AdminDashboard(view.AdminData{
		Who:           h.who(c, p),
		Organizations: orgs,
		Invoices:      invoices,
		UnreadTickets: unread,
	}))
}

func (h *PageHandler) Business(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	ctx, s := c.Request.Context(), repository.ScopeFor(p)

	org, err := h.orgs.Get(ctx, s, p.Tenant())
	if err != nil {
		pageFailed(c, err)
		return
	}
	guardians, err := h.users.ListGuardians(ctx, s)
	if err != nil {
		pageFailed(c, err)
		return
	}
	children, err := h.children.List(ctx, s)
	if err != nil {
		pageFailed(c, err)
		return
	}
	invoices, err := h.invoices.List(ctx, s, repository.InvoiceFilter{Limit: 50})
	if err != nil {
		pageFailed(c, err)
		return
	}
	unread, err := h.tickets.CountUnread(ctx, repository.TicketScopeFor(p))
	if err != nil {
		pageFailed(c, err)
		return
	}
	render(c, http.StatusOK, view.BusinessDashboard(view.BusinessData{
		Who:           h.who(c, p),
		Organization:  org,
		Guardians:     guardians,
		Children:      children,
		Invoices:      invoices,
		UnreadTickets: unread,
	}))
}

func (h *PageHandler) Guardian(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	ctx, s := c.Request.Context(), repository.ScopeFor(p)

	user, err := h.users.Get(ctx, p.ID)
	if err != nil {
		pageFailed(c, err)
		return
	}
	children, err := h.children.List(ctx, s)
	if err != nil {
		pageFailed(c, err)
		return
	}
	invoices, err := h.invoices.List(ctx, s, repository.InvoiceFilter{Limit: 50})
	if err != nil {
		pageFailed(c, err)
		return
	}
	unread, err := h.tickets.CountUnread(ctx, repository.TicketScopeFor(p))
	if err != nil {
		pageFailed(c, err)
		return
	}
	who := user.DisplayName
	if who == "" {
		who = user.Email
	}
	render(c, http.StatusOK, view.GuardianDashboard(view.GuardianData{
		Who:                who,
		PaymentMethodReady: user.PaymentMethodReady,
		Children:           children,
		Invoices:           invoices,
		UnreadTickets:      unread,
	}))
}

func (h *PageHandler) PaymentSuccess(c *gin.Context) {
	render(c, http.StatusOK, view.PaymentResult(true))
}

func (h *PageHandler) PaymentCancel(c *gin.Context) {
	render(c, http.StatusOK, view.PaymentResult(false))
}
