package user

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagevault/pagevault/internal/domain"
	"github.com/pagevault/pagevault/internal/middleware"
	"github.com/pagevault/pagevault/internal/pkg"
)

// SessionWriter attaches or clears the session cookie on a response. The auth
// module provides the implementation; the user module needs it for anonymous
// sessions and self-service account deletion.
type SessionWriter interface {
	SetSessionCookie(c *gin.Context, token string)
	ClearSessionCookie(c *gin.Context)
}

// TokenIssuer mints a session token for a user. Satisfied by the auth service.
type TokenIssuer interface {
	IssueToken(user *domain.User) (string, error)
}

// UserHandler handles REST API requests for user accounts.
type UserHandler struct {
	svc     domain.UserService
	collSvc domain.CollectionService
	session SessionWriter
	tokens  TokenIssuer
}

// NewHandler creates a new UserHandler.
func NewHandler(svc domain.UserService, collSvc domain.CollectionService, session SessionWriter, tokens TokenIssuer) *UserHandler {
	return &UserHandler{svc: svc, collSvc: collSvc, session: session, tokens: tokens}
}

// Dashboard handles GET /api/v1/dashboard. The aggregate is cached as raw
// JSON, so the response bytes are written directly instead of re-encoding.
func (h *UserHandler) Dashboard(c *gin.Context) {
	data, err := h.svc.DashboardJSON(c.Request.Context())
	if err != nil {
		pkg.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// List handles GET /api/v1/users?sort=<key>.
func (h *UserHandler) List(c *gin.Context) {
	column, desc, err := pkg.ParseUserSort(c.Query("sort"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	users, err := h.svc.ListUsers(c.Request.Context(), column, desc)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for i := range users {
		u := &users[i]
		views = append(views, newUserView(u, h.svc.SpaceUtilization(c.Request.Context(), u)))
	}
	pkg.List(c, gin.H{"users": views})
}

// Get handles GET /api/v1/users/:username.
func (h *UserHandler) Get(c *gin.Context) {
	view, err := h.detailView(c, c.Param("username"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, view)
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req NewUserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), domain.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
	})
	if err != nil {
		pkg.Error(c, err)
		return
	}

	view := newUserView(user, h.svc.SpaceUtilization(c.Request.Context(), user))
	c.JSON(http.StatusCreated, pkg.Response{
		Code:    http.StatusCreated,
		Message: "success",
		Data:    view,
	})
}

// Update handles PUT /api/v1/users/:username. Owners may update their own
// profile; admin-only fields in the payload are silently ignored for them.
func (h *UserHandler) Update(c *gin.Context) {
	username := c.Param("username")
	if !middleware.IsOwnerOrAdmin(c, username) {
		pkg.Error(c, domain.ErrForbidden)
		return
	}

	var req UpdateUserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	_, err := h.svc.UpdateUser(c.Request.Context(), username, req.toUpdate(), middleware.IsAdmin(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	view, err := h.detailView(c, username)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, view)
}

// Delete handles DELETE /api/v1/users/:username.
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		pkg.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AnonUser handles GET /api/v1/anon_user. It returns the session's anonymous
// user, creating one (and setting the session cookie) when the session has
// none.
func (h *UserHandler) AnonUser(c *gin.Context) {
	current := middleware.CurrentUser(c)

	user, err := h.svc.GetAnonUser(c.Request.Context(), current)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	if user.Username != current {
		token, err := h.tokens.IssueToken(user)
		if err != nil {
			pkg.Error(c, err)
			return
		}
		h.session.SetSessionCookie(c, token)
	}

	pkg.Success(c, gin.H{"anon_user": user.Username})
}

// UpdateDesc handles POST /api/v1/users/:username/desc. Legacy endpoint: the
// raw request body becomes the description text, no schema applied.
func (h *UserHandler) UpdateDesc(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "failed to read body", err))
		return
	}

	if err := h.svc.SetUserDesc(c.Request.Context(), c.Param("username"), string(body)); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, nil)
}

// detailView assembles the enriched account representation: user, quota
// triple, and the nested collections tree.
func (h *UserHandler) detailView(c *gin.Context, username string) (*UserDetailView, error) {
	ctx := c.Request.Context()

	user, err := h.svc.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	colls, err := h.collSvc.ListCollections(ctx, user.ID, true)
	if err != nil {
		return nil, err
	}

	return &UserDetailView{
		UserView:    newUserView(user, h.svc.SpaceUtilization(ctx, user)),
		Collections: normalizeCollections(colls),
	}, nil
}
