package handler

import (
	"errors"
	"net/http"
	"strconv"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/middleware"
	"childcare-billing/internal/payment"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"
	"childcare-billing/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type apiError struct {
	status int
	code   int
	reason string
	msg    string
}

// classify maps the error taxonomy onto HTTP responses. Messages are safe to
// show; the wrapped detail is only logged.
func classify(err error) apiError {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return apiError{http.StatusUnauthorized, util.CodeAuth, "unauthenticated", "sign in required"}
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, repository.ErrForbidden):
		return apiError{http.StatusForbidden, util.CodeForbidden, "forbidden", "not allowed"}
	case errors.Is(err, payment.ErrInvalidPlan):
		return apiError{http.StatusBadRequest, util.CodeInvalidParam, "invalid_plan", "unknown plan"}
	case errors.Is(err, payment.ErrInvalidAmount):
		return apiError{http.StatusBadRequest, util.CodeInvalidParam, "invalid_amount", "amount must be a positive number"}
	case errors.Is(err, payment.ErrUnsupportedIntent):
		return apiError{http.StatusBadRequest, util.CodeInvalidParam, "unsupported_intent", "unsupported intent type"}
	case errors.Is(err, payment.ErrInvalidPayload):
		return apiError{http.StatusBadRequest, util.CodeInvalidParam, "invalid_payload", "invalid payload"}
	case errors.Is(err, webhook.ErrSignatureVerificationFailed):
		return apiError{http.StatusBadRequest, util.CodeInvalidParam, "invalid_signature", "invalid signature"}
	case errors.Is(err, webhook.ErrMalformedEvent):
		return apiError{http.StatusBadRequest, util.CodeInvalidParam, "invalid_event", "invalid event"}
	case errors.Is(err, repository.ErrNotFound):
		return apiError{http.StatusNotFound, util.CodeNotFound, "not_found", "not found"}
	case errors.Is(err, repository.ErrConflict):
		return apiError{http.StatusConflict, util.CodeConflict, "conflict", "conflicts with current state"}
	case errors.Is(err, payment.ErrProviderRejected):
		return apiError{http.StatusBadGateway, util.CodeBadGateway, "provider_rejected", "payment provider rejected the request"}
	case errors.Is(err, payment.ErrProviderUnavailable):
		return apiError{http.StatusServiceUnavailable, util.CodeUnavailable, "provider_unavailable", "payment provider unavailable, try again"}
	case errors.Is(err, repository.ErrDatastoreUnavailable):
		return apiError{http.StatusServiceUnavailable, util.CodeUnavailable, "datastore_unavailable", "service temporarily unavailable"}
	default:
		return apiError{http.StatusInternalServerError, util.CodeServerErr, "internal", "internal error"}
	}
}

// respondError logs err with request context and writes the safe envelope.
func respondError(c *gin.Context, err error) {
	e := classify(err)
	ev := log.Warn()
	if e.status >= 500 {
		ev = log.Error()
	}
	ev = ev.Err(err).Str("path", c.FullPath()).Int("status", e.status)
	if id, ok := c.Get("request_id"); ok {
		ev = ev.Interface("request_id", id)
	}
	if p, ok := middleware.CurrentPrincipal(c); ok {
		ev = ev.Uint("principal_id", p.ID)
	}
	ev.Msg("request failed")
	_ = c.Error(err)
	util.ErrorReason(c, e.status, e.code, e.reason, e.msg)
}

func badRequest(c *gin.Context, msg string) {
	util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid_param", msg)
}

// principal returns the guard-set principal or writes 401.
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		respondError(c, auth.ErrUnauthenticated)
		return auth.Principal{}, false
	}
	return p, true
}

func scope(c *gin.Context) (repository.Scope, auth.Principal, bool) {
	p, ok := principal(c)
	if !ok {
		return repository.Scope{}, p, false
	}
	return repository.ScopeFor(p), p, true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func pageParams(c *gin.Context, defaultSize int) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultSize)))
	if size <= 0 || size > 100 {
		size = defaultSize
	}
	return page, size
}

func created(c *gin.Context, data util.Response) {
	c.JSON(http.StatusCreated, gin.H{
		"code": util.CodeOK,
		"data": data,
	})
}
