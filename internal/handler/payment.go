package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"
	"childcare-billing/internal/payment"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Dispatcher is the payment entry point the handler depends on.
type Dispatcher interface {
	DispatchIntent(ctx context.Context, p auth.Principal, intent payment.Intent) (payment.CheckoutSession, error)
}

// PaymentHandler creates checkout sessions.
type PaymentHandler struct {
	dispatcher Dispatcher
	invoices   repository.InvoiceRepository
	now        func() time.Time
}

func NewPaymentHandler(dispatcher Dispatcher, invoices repository.InvoiceRepository) *PaymentHandler {
	return &PaymentHandler{dispatcher: dispatcher, invoices: invoices, now: time.Now}
}

// invoiceHoldMargin keeps an invoice held a little past its session expiry.
const invoiceHoldMargin = 5 * time.Minute

type createSessionReq struct {
	IntentType string          `json:"intentType"`
	Payload    json.RawMessage `json:"payload"`
}

// CreateSession answers {checkoutSessionId, redirectUrl}.
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", payment.ErrInvalidPayload, err))
		return
	}
	t, err := payment.ParseIntentType(req.IntentType)
	if err != nil {
		respondError(c, err)
		return
	}
	intent, err := payment.DecodeIntent(t, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.authorize(ctx, p, intent); err != nil {
		respondError(c, err)
		return
	}

	// one live session per invoice, so a second tab cannot charge twice
	in, isInvoice := intent.(payment.InvoicePayment)
	if isInvoice {
		now := h.now()
		until := now.Add(payment.InvoiceCheckoutTTL + invoiceHoldMargin)
		if err := h.invoices.HoldForCheckout(ctx, repository.ScopeFor(p), in.InvoiceID, now, until); err != nil {
			respondError(c, err)
			return
		}
	}

	session, err := h.dispatcher.DispatchIntent(ctx, p, intent)
	if err != nil {
		if isInvoice && !errors.Is(err, payment.ErrProviderUnavailable) {
			// refused or invalid, no session exists to pay with
			if rerr := h.invoices.ReleaseCheckout(context.WithoutCancel(ctx), repository.ScopeFor(p), in.InvoiceID); rerr != nil {
				log.Error().Err(rerr).Uint("invoice_id", in.InvoiceID).Msg("release invoice hold")
			}
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":              util.CodeOK,
		"checkoutSessionId": session.ProviderSessionID,
		"redirectUrl":       session.RedirectURL,
	})
}

// authorize applies the per-intent rules: subscriptions are bought by
// business admins (or a system admin founding an organization), and invoices
// are paid only through the caller's scope, in full, while still payable.
func (h *PaymentHandler) authorize(ctx context.Context, p auth.Principal, intent payment.Intent) error {
	switch in := intent.(type) {
	case payment.Subscription:
		if !p.HasRole(auth.RoleChildcareAdmin, auth.RoleSystemAdmin) {
			return auth.ErrUnauthorized
		}
	case payment.InvoicePayment:
		inv, err := h.invoices.Get(ctx, repository.ScopeFor(p), in.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == models.InvoicePaid || inv.Status == models.InvoiceVoid {
			return fmt.Errorf("invoice %d is %s: %w", inv.ID, inv.Status, repository.ErrConflict)
		}
		if in.MinorUnits != inv.AmountCents {
			return fmt.Errorf("%w: %d does not match invoice amount %d", payment.ErrInvalidAmount, in.MinorUnits, inv.AmountCents)
		}
	}
	return nil
}
