package auth

// LoginRequest represents the input for user login.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required,min=1,max=100"`
	Password string `json:"password" form:"password" binding:"required,min=8,max=72"`
}

// TokenResponse represents the session token returned after login.
type TokenResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}
