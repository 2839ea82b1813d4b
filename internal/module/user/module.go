package user

import (
	"github.com/gin-gonic/gin"

	"github.com/pagevault/pagevault/internal/middleware"
)

// UserModule implements the app.Module interface for the user domain.
type UserModule struct {
	handler     *UserHandler
	pageHandler *UserPageHandler
}

// NewModule creates a new UserModule with the given handlers.
// Panics if h or ph is nil.
func NewModule(h *UserHandler, ph *UserPageHandler) *UserModule {
	if h == nil {
		panic("user.NewModule: handler must not be nil")
	}
	if ph == nil {
		panic("user.NewModule: pageHandler must not be nil")
	}
	return &UserModule{handler: h, pageHandler: ph}
}

// RegisterRoutes registers user API and page routes.
func (m *UserModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	// API routes. Admin-only endpoints are gated here; the per-user
	// owner-or-admin checks live in the handlers.
	admin := middleware.RequireAdmin()
	api.GET("/dashboard", admin, m.handler.Dashboard)
	api.GET("/users", admin, m.handler.List)
	api.POST("/users", admin, m.handler.Create)
	api.GET("/users/:username", admin, m.handler.Get)
	api.PUT("/users/:username", middleware.RequireAuth(), m.handler.Update)
	api.DELETE("/users/:username", admin, m.handler.Delete)
	api.GET("/anon_user", m.handler.AnonUser)

	// Legacy description endpoint kept verbatim for old clients.
	api.POST("/users/:username/desc", m.handler.UpdateDesc)

	// Page routes
	pages.GET("/:user", m.pageHandler.ProfilePage)
	pages.GET("/:user/_settings", m.pageHandler.SettingsPage)
	pages.POST("/:user/$delete", m.pageHandler.DeleteSelf)
}
