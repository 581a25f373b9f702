package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxAuditBody = 2000

// AuditMiddleware records each authenticated call. Path and action are
// stored encrypted; request bodies of mutating calls are included when small.
func AuditMiddleware(logs repository.AuditRepository, encryptKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bodyBytes []byte
		if c.Request.Method != http.MethodGet && c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		c.Next()

		p, ok := CurrentPrincipal(c)
		if !ok {
			return
		}

		path := c.Request.URL.Path
		action := c.Request.Method + " " + path
		if len(bodyBytes) > 0 && len(bodyBytes) < maxAuditBody {
			action += " " + redactBody(bodyBytes)
		}

		encPath, err := util.EncryptField(encryptKey, path)
		if err != nil {
			log.Error().Err(err).Msg("audit encrypt path")
			return
		}
		encAction, err := util.EncryptField(encryptKey, action)
		if err != nil {
			log.Error().Err(err).Msg("audit encrypt action")
			return
		}

		userID := p.ID
		entry := models.AuditLog{
			UserID:         &userID,
			OrganizationID: p.TenantID,
			Role:           string(p.Role),
			PathEnc:        encPath,
			Method:         c.Request.Method,
			ActionEnc:      encAction,
			Status:         c.Writer.Status(),
			IP:             c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}
		if err := logs.Create(c.Request.Context(), &entry); err != nil {
			log.Error().Err(err).Uint("user_id", p.ID).Msg("audit write failed")
		}
	}
}

// redactBody masks password fields of a JSON object body. Bodies that are
// not JSON objects are kept only when they mention no password.
func redactBody(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		if strings.Contains(strings.ToLower(string(body)), "password") {
			return "[redacted]"
		}
		return string(body)
	}
	masked := false
	for k := range fields {
		if strings.Contains(strings.ToLower(k), "password") {
			fields[k] = "***"
			masked = true
		}
	}
	if !masked {
		return string(body)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return "[redacted]"
	}
	return string(out)
}
