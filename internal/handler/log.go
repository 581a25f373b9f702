package handler

import (
	"time"

	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

// LogHandler serves the audit log to system admins.
type LogHandler struct {
	logs       repository.AuditRepository
	encryptKey string
}

func NewLogHandler(logs repository.AuditRepository, encryptKey string) *LogHandler {
	return &LogHandler{logs: logs, encryptKey: encryptKey}
}

type logResp struct {
	ID             uint      `json:"id"`
	UserID         *uint     `json:"user_id"`
	OrganizationID *uint     `json:"organization_id"`
	Role           string    `json:"role"`
	Action         string    `json:"action"`
	Path           string    `json:"path"`
	Method         string    `json:"method"`
	Status         int       `json:"status"`
	IP             string    `json:"ip"`
	UserAgent      string    `json:"user_agent"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListLogs pages through audit entries, newest first, decrypting path and
// action.
func (h *LogHandler) ListLogs(c *gin.Context) {
	page, size := pageParams(c, 20)
	logs, total, err := h.logs.List(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]logResp, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		items = append(items, logResp{
			ID:             l.ID,
			UserID:         l.UserID,
			OrganizationID: l.OrganizationID,
			Role:           l.Role,
			Action:         util.DecryptField(h.encryptKey, l.ActionEnc),
			Path:           util.DecryptField(h.encryptKey, l.PathEnc),
			Method:         l.Method,
			Status:         l.Status,
			IP:             l.IP,
			UserAgent:      l.UserAgent,
			CreatedAt:      l.CreatedAt,
		})
	}

	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}
