package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/pagevault/pagevault/internal/pkg"
)

// AuthHandler handles REST API requests for session management.
type AuthHandler struct {
	svc          Service
	cookieName   string
	cookieMaxAge int
}

// NewHandler creates a new AuthHandler. cookieMaxAge is in seconds and bounds
// the session cookie lifetime to the token expiry.
func NewHandler(svc Service, cookieName string, cookieMaxAge int) *AuthHandler {
	return &AuthHandler{svc: svc, cookieName: cookieName, cookieMaxAge: cookieMaxAge}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	tokenResp, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	h.SetSessionCookie(c, tokenResp.Token)
	pkg.Success(c, tokenResp)
}

// Logout handles POST /api/v1/auth/logout. It is a no-op for requests
// without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.ClearSessionCookie(c)
	pkg.Success(c, nil)
}

// SetSessionCookie attaches the session token to the response.
func (h *AuthHandler) SetSessionCookie(c *gin.Context, token string) {
	c.SetCookie(h.cookieName, token, h.cookieMaxAge, "/", "", false, true)
}

// ClearSessionCookie expires the session cookie.
func (h *AuthHandler) ClearSessionCookie(c *gin.Context) {
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
}
