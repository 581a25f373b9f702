package handler

import (
	"net/http"
	"strings"

	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

type updateProfileReq struct {
	DisplayName string `json:"display_name" binding:"max=64"`
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdateProfile changes the caller's display name.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	user, err := h.users.Get(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	user.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := h.users.SetDisplayName(c.Request.Context(), user.ID, user.DisplayName); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"user": userView(user)})
}

// ChangePassword replaces the caller's password after checking the old one.
// Sessions already issued stay valid until they expire.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	if !util.IsStrongPassword(req.NewPassword) {
		badRequest(c, "password needs 8-64 characters with upper, lower case letters and a digit")
		return
	}
	user, err := h.users.Get(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !util.CheckPassword(req.OldPassword, user.PasswordHash) {
		util.ErrorReason(c, http.StatusBadRequest, util.CodeInvalidParam, "wrong_password", "current password is incorrect")
		return
	}
	hash, err := util.HashPassword(req.NewPassword, h.bcryptCost)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.users.SetPasswordHash(c.Request.Context(), user.ID, hash); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.Response{"message": "password changed"})
}
