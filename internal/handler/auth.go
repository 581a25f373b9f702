package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/middleware"
	"childcare-billing/internal/models"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 10 * time.Minute
)

// AuthHandler serves sign-in, sign-out and business registration.
type AuthHandler struct {
	users      repository.UserRepository
	sessions   *auth.Sessions
	cookie     middleware.SessionCookie
	bcryptCost int
	// compared against when the email is unknown so both paths cost the same
	dummyHash string
	now       func() time.Time
}

func NewAuthHandler(users repository.UserRepository, sessions *auth.Sessions, cookie middleware.SessionCookie, bcryptCost int) *AuthHandler {
	dummy, _ := util.HashPassword("not-a-real-password", bcryptCost)
	return &AuthHandler{
		users:      users,
		sessions:   sessions,
		cookie:     cookie,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		now:        time.Now,
	}
}

// ---------- login ----------

type loginReq struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
	// BearerToken asks for the session token in the body, for clients that
	// send an Authorization header instead of the cookie.
	BearerToken bool `json:"bearer_token" form:"-"`
}

func isForm(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == gin.MIMEPOSTForm || ct == gin.MIMEMultipartPOSTForm
}

// Login accepts JSON or a form post from the sign-in page. Form posts are
// answered with redirects.
func (h *AuthHandler) Login(c *gin.Context) {
	form := isForm(c)
	fail := func(status, code int, reason, msg string) {
		if form {
			c.Redirect(http.StatusSeeOther, "/?error="+reason)
			return
		}
		util.ErrorReason(c, status, code, reason, msg)
	}

	var req loginReq
	if err := c.ShouldBind(&req); err != nil {
		fail(http.StatusBadRequest, util.CodeInvalidParam, "invalid_param", "email and password are required")
		return
	}
	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		fail(http.StatusUnauthorized, util.CodeAuth, "invalid_credentials", "invalid email or password")
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.CheckPassword(req.Password, h.dummyHash)
			fail(http.StatusUnauthorized, util.CodeAuth, "invalid_credentials", "invalid email or password")
			return
		}
		respondError(c, err)
		return
	}

	now := h.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		fail(http.StatusUnauthorized, util.CodeAuth, "account_locked", "account locked, try again later")
		return
	}

	if !util.CheckPassword(req.Password, user.PasswordHash) {
		locked, err := h.users.RecordLoginFailure(c.Request.Context(), user.ID, maxFailedLogins, now.Add(lockoutDuration))
		if err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("record failed login")
		}
		if locked {
			log.Warn().Uint("user_id", user.ID).Str("ip", c.ClientIP()).Msg("account locked after failed logins")
		}
		fail(http.StatusUnauthorized, util.CodeAuth, "invalid_credentials", "invalid email or password")
		return
	}

	role, err := auth.ParseRole(user.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := auth.NewPrincipal(user.ID, role, user.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	token, expires, err := h.sessions.Issue(p)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.users.RecordLogin(c.Request.Context(), user.ID, now, c.ClientIP()); err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("record login")
	}
	user.LastLoginAt = &now

	h.cookie.Write(c, token)
	if form {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	resp := util.Response{
		"expires_at": expires,
		"user":       userView(user),
	}
	if req.BearerToken {
		resp["token"] = token
	}
	util.Success(c, resp)
}

// Logout expires the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookie.Clear(c)
	if isForm(c) || strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	util.Success(c, util.Response{"message": "signed out"})
}

// ---------- register ----------

type registerReq struct {
	OrganizationName string `json:"organization_name" binding:"required,max=128"`
	Email            string `json:"email" binding:"required"`
	Password         string `json:"password" binding:"required"`
	DisplayName      string `json:"display_name" binding:"max=64"`
	BearerToken      bool   `json:"bearer_token"`
}

// Register creates a childcare business and its first admin, then signs the
// admin in. The organization starts without a subscription.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		badRequest(c, "invalid email")
		return
	}
	if !util.IsStrongPassword(req.Password) {
		badRequest(c, "password needs 8-64 characters with upper, lower case letters and a digit")
		return
	}
	hash, err := util.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		respondError(c, err)
		return
	}

	org := &models.Organization{Name: strings.TrimSpace(req.OrganizationName)}
	admin := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
	}
	if err := h.users.RegisterBusiness(c.Request.Context(), org, admin); err != nil {
		respondError(c, err)
		return
	}

	p, err := auth.NewPrincipal(admin.ID, auth.RoleChildcareAdmin, &org.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	token, expires, err := h.sessions.Issue(p)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cookie.Write(c, token)

	resp := util.Response{
		"expires_at":   expires,
		"user":         userView(admin),
		"organization": organizationView(org),
	}
	if req.BearerToken {
		resp["token"] = token
	}
	created(c, resp)
}
