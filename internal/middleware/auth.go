package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/util"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// SessionCookie writes and reads the session artifact cookie.
type SessionCookie struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Write replaces any prior session cookie.
func (s SessionCookie) Write(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.TTL.Seconds()),
		Expires:  time.Now().Add(s.TTL),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear overwrites the cookie with an already expired one.
func (s SessionCookie) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s SessionCookie) Read(c *gin.Context) string {
	v, err := c.Cookie(s.Name)
	if err != nil {
		return ""
	}
	return v
}

// Guard adapts the auth gate to gin routes.
type Guard struct {
	gate   *auth.Gate
	cookie SessionCookie
}

func NewGuard(gate *auth.Gate, cookie SessionCookie) *Guard {
	return &Guard{gate: gate, cookie: cookie}
}

// token prefers an Authorization: Bearer header, then the session cookie.
func (g *Guard) token(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return g.cookie.Read(c)
}

// API rejects with 401 or 403 JSON before the handler runs.
func (g *Guard) API(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.gate.RequireRole(g.token(c), roles...)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				util.ErrorReason(c, http.StatusForbidden, util.CodeForbidden, "forbidden", "not allowed for this role")
			} else {
				util.ErrorReason(c, http.StatusUnauthorized, util.CodeAuth, "unauthenticated", "sign in required")
			}
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Page redirects to the sign-in page on any failure.
func (g *Guard) Page(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.gate.RequireRole(g.token(c), roles...)
		if err != nil {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Optional attaches the principal when the request carries a valid session.
func (g *Guard) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := g.gate.ResolvePrincipal(g.token(c)); ok {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

// CurrentPrincipal returns the principal set by a Guard.
func CurrentPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
