package support

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagevault/pagevault/internal/domain"
	"github.com/pagevault/pagevault/internal/middleware"
	"github.com/pagevault/pagevault/internal/pkg"
)

// AnonResolver returns the session's anonymous user, creating one if needed.
// Satisfied by the user service.
type AnonResolver interface {
	GetAnonUser(ctx context.Context, current string) (*domain.User, error)
}

// Handler serves the auxiliary endpoints: session-expiry notice, issue
// reporting, and skip-recording markers.
type Handler struct {
	svc  *Service
	anon AnonResolver
}

// NewHandler creates a support Handler.
func NewHandler(svc *Service, anon AnonResolver) *Handler {
	return &Handler{svc: svc, anon: anon}
}

// Expire tells the user their anonymous collection is gone and sends them
// home. Registered for both GET and POST: old clients used either.
func (h *Handler) Expire(c *gin.Context) {
	pkg.SetFlash(c, "Sorry, the anonymous collection has expired", "error")
	c.Redirect(http.StatusFound, "/")
}

// ReportIssues accepts a posted issue form and forwards the rendered report.
// POST /_reportissues
func (h *Handler) ReportIssues(c *gin.Context) {
	report := IssueReport{
		Email:   c.PostForm("email"),
		Desc:    c.PostForm("desc"),
		URL:     c.PostForm("url"),
		State:   c.PostForm("state"),
		Browser: BrowserString(c.GetHeader("User-Agent")),
	}

	if err := h.svc.ReportIssue(c.Request.Context(), report); err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeInternal, "failed to submit report", err))
		return
	}
	pkg.Success(c, nil)
}

// SkipReq marks ?url= as non-recordable for the current user. Requests
// without a session get an anonymous user assigned, so the marker always has
// an owner.
// GET /_skipreq
func (h *Handler) SkipReq(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "url parameter is required", nil))
		return
	}

	username := middleware.CurrentUser(c)
	if username == "" {
		anon, err := h.anon.GetAnonUser(c.Request.Context(), "")
		if err != nil {
			pkg.Error(c, err)
			return
		}
		username = anon.Username
	}

	if err := h.svc.MarkSkip(c.Request.Context(), username, url); err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeInternal, "failed to mark url", err))
		return
	}
	pkg.Success(c, nil)
}
