package handler

import (
	"strings"

	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// TicketHandler serves support tickets.
type TicketHandler struct {
	tickets repository.TicketRepository
}

func NewTicketHandler(tickets repository.TicketRepository) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func ticketView(t *models.SupportTicket, viewer uint) gin.H {
	unread := !t.ReadByStaff
	if t.AuthorID == viewer {
		unread = !t.ReadByAuthor
	}
	v := gin.H{
		"id":              t.ID,
		"organization_id": t.OrganizationID,
		"author_id":       t.AuthorID,
		"subject":         t.Subject,
		"body":            t.Body,
		"status":          t.Status,
		"unread":          unread,
		"created_at":      t.CreatedAt,
		"updated_at":      t.UpdatedAt,
	}
	if t.Replies != nil {
		replies := make([]gin.H, 0, len(t.Replies))
		for _, r := range t.Replies {
			replies = append(replies, gin.H{"id": r.ID, "author_id": r.AuthorID, "body": r.Body, "created_at": r.CreatedAt})
		}
		v["replies"] = replies
	}
	return v
}

type ticketReq struct {
	Subject string `json:"subject" binding:"required,max=128"`
	Body    string `json:"body" binding:"required,max=5000"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req ticketReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "subject and body are required")
		return
	}
	t := &models.SupportTicket{
		OrganizationID: p.TenantID,
		AuthorID:       p.ID,
		Subject:        strings.TrimSpace(req.Subject),
		Body:           strings.TrimSpace(req.Body),
	}
	if err := h.tickets.Create(c.Request.Context(), t); err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"ticket": ticketView(t, p.ID)})
}

func (h *TicketHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	tickets, err := h.tickets.List(c.Request.Context(), repository.TicketScopeFor(p))
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(tickets))
	for i := range tickets {
		list = append(list, ticketView(&tickets[i], p.ID))
	}
	util.Success(c, util.Response{"tickets": list})
}

// Get opens a ticket thread and marks it read for the caller's side.
func (h *TicketHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.tickets.Open(c.Request.Context(), repository.TicketScopeFor(p), id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"ticket": ticketView(t, p.ID)})
}

type replyReq struct {
	Body string `json:"body" binding:"required,max=5000"`
}

func (h *TicketHandler) Reply(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req replyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body is required")
		return
	}
	reply, err := h.tickets.Reply(c.Request.Context(), repository.TicketScopeFor(p), id, strings.TrimSpace(req.Body))
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, util.Response{"reply": gin.H{"id": reply.ID, "author_id": reply.AuthorID, "body": reply.Body, "created_at": reply.CreatedAt}})
}

func (h *TicketHandler) Close(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.tickets.Close(c.Request.Context(), repository.TicketScopeFor(p), id); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"id": id, "status": models.TicketClosed})
}

func (h *TicketHandler) Unread(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	n, err := h.tickets.CountUnread(c.Request.Context(), repository.TicketScopeFor(p))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"unread": n})
}
