package user

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pagevault/pagevault/internal/domain"
	"github.com/pagevault/pagevault/internal/middleware"
	"github.com/pagevault/pagevault/internal/pkg"
)

// UserPageHandler renders the account HTML pages.
type UserPageHandler struct {
	svc          domain.UserService
	collSvc      domain.CollectionService
	session      SessionWriter
	descTemplate string
}

// NewUserPageHandler creates a new UserPageHandler.
func NewUserPageHandler(svc domain.UserService, collSvc domain.CollectionService, session SessionWriter, descTemplate string) *UserPageHandler {
	return &UserPageHandler{
		svc:          svc,
		collSvc:      collSvc,
		session:      session,
		descTemplate: descTemplate,
	}
}

// ProfilePage renders the public profile page.
// GET /:user
func (h *UserPageHandler) ProfilePage(c *gin.Context) {
	username := c.Param("user")

	// Anonymous accounts have no public profile; send them to their
	// temporary collection instead.
	if domain.IsAnonUsername(username) {
		c.Redirect(http.StatusFound, "/"+username+"/temp")
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), username)
	if err != nil {
		if domain.IsNotFound(err) {
			c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
			return
		}
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	desc := user.Desc
	if desc == "" && h.descTemplate != "" {
		desc = h.descTemplate
		if strings.Contains(desc, "%s") {
			desc = fmt.Sprintf(desc, user.Username)
		}
	}

	colls, err := h.collSvc.ListCollections(c.Request.Context(), user.ID, false)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "user/profile.html", gin.H{
		"User":        user,
		"Desc":        desc,
		"Collections": colls,
		"Space":       h.svc.SpaceUtilization(c.Request.Context(), user),
		"IsOwner":     middleware.IsOwnerOrAdmin(c, username),
		"Flash":       pkg.PopFlash(c),
		"CSRFToken":   middleware.GetCSRFToken(c),
	})
}

// SettingsPage renders the account settings page for the owner.
// GET /:user/_settings
func (h *UserPageHandler) SettingsPage(c *gin.Context) {
	username := c.Param("user")
	if !middleware.IsOwnerOrAdmin(c, username) {
		c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), username)
	if err != nil {
		if domain.IsNotFound(err) {
			c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
			return
		}
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	numColls, err := h.collSvc.NumCollections(c.Request.Context(), user.ID)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "user/settings.html", gin.H{
		"User":           user,
		"NumCollections": numColls,
		"Space":          h.svc.SpaceUtilization(c.Request.Context(), user),
		"Flash":          pkg.PopFlash(c),
		"CSRFToken":      middleware.GetCSRFToken(c),
	})
}

// DeleteSelf removes the account from its settings page, clears the session,
// and redirects home. On failure the user lands back on the profile with an
// error flash.
// POST /:user/$delete
func (h *UserPageHandler) DeleteSelf(c *gin.Context) {
	username := c.Param("user")
	if !middleware.IsOwnerOrAdmin(c, username) {
		c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), username); err != nil {
		pkg.SetFlash(c, "There was an error deleting "+username, "error")
		c.Redirect(http.StatusFound, "/"+username)
		return
	}

	if middleware.CurrentUser(c) == username {
		h.session.ClearSessionCookie(c)
	}

	pkg.SetFlash(c, "The user "+username+" has been permanently deleted", "success")
	c.Redirect(http.StatusFound, "/")
}
