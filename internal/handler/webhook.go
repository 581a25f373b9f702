package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"childcare-billing/internal/util"
	"childcare-billing/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const webhookBodyLimit = 1 << 20 // 1MiB

// EventMapper applies a verified event.
type EventMapper interface {
	Handle(ctx context.Context, ev webhook.Event) (webhook.Outcome, error)
}

// WebhookHandler receives payment provider events. The signature is the
// only authentication on this route.
type WebhookHandler struct {
	verifier webhook.Verifier
	mapper   EventMapper
}

func NewWebhookHandler(verifier webhook.Verifier, mapper EventMapper) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, mapper: mapper}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid_request", "failed to read request body")
		return
	}

	ev, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("webhook rejected")
		if errors.Is(err, webhook.ErrMalformedEvent) {
			util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid_event", "invalid event")
			return
		}
		util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid_signature", "invalid signature")
		return
	}

	outcome, err := h.mapper.Handle(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, webhook.ErrMalformedEvent) {
			log.Warn().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("webhook event unusable")
			util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid_event", "invalid event")
			return
		}
		log.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("webhook processing failed")
		util.ErrorReason(c, http.StatusInternalServerError, util.CodeServerErr, "processing_failed", "failed to process event")
		return
	}

	resp := gin.H{"received": true, "status": outcome}
	if outcome == webhook.OutcomeDuplicate {
		resp["duplicate"] = true
	}
	c.JSON(http.StatusOK, resp)
}
