package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/simp-lee/jwt"

	"github.com/pagevault/pagevault/internal/domain"
)

// Service defines the session operations.
type Service interface {
	Login(ctx context.Context, username, password string) (*TokenResponse, error)
	// IssueToken creates a session token for an already-resolved user, e.g.
	// a freshly created anonymous account.
	IssueToken(user *domain.User) (string, error)
}

// authService implements Service.
type authService struct {
	jwtSvc      jwt.Service
	userRepo    domain.UserRepository
	tokenExpiry time.Duration
}

// NewService creates a new auth Service.
func NewService(jwtSvc jwt.Service, userRepo domain.UserRepository, tokenExpiry time.Duration) Service {
	return &authService{
		jwtSvc:      jwtSvc,
		userRepo:    userRepo,
		tokenExpiry: tokenExpiry,
	}
}

// Login authenticates a user by username and password and returns a session token.
// It also records the login time on the account.
func (s *authService) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Don't reveal whether the user exists — always return unauthorized.
		if domain.IsNotFound(err) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	parsedToken, parseErr := s.jwtSvc.ParseToken(token)
	if parseErr != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to parse generated token", parseErr)
	}

	// Last-login is informational; a failed write must not fail the login.
	_ = s.userRepo.UpdateFields(ctx, user.Username, map[string]any{"last_login": time.Now().UTC()})

	return &TokenResponse{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: parsedToken.ExpiresAt.Unix(),
	}, nil
}

// IssueToken creates a session token carrying the username and role.
func (s *authService) IssueToken(user *domain.User) (string, error) {
	token, err := s.jwtSvc.GenerateToken(user.Username, []string{user.Role}, s.tokenExpiry)
	if err != nil {
		return "", domain.NewAppError(domain.CodeInternal, "failed to generate token", err)
	}
	return token, nil
}
