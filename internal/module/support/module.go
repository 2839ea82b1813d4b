package support

import "github.com/gin-gonic/gin"

// SupportModule implements the app.Module interface for the auxiliary
// endpoints.
type SupportModule struct {
	handler *Handler
}

// NewModule creates a new SupportModule with the given handler.
// Panics if h is nil.
func NewModule(h *Handler) *SupportModule {
	if h == nil {
		panic("support.NewModule: handler must not be nil")
	}
	return &SupportModule{handler: h}
}

// RegisterRoutes registers the support routes. They live at the site root
// next to the profile pages, not under the API prefix, because recorder
// frames and old bookmarks address them there.
func (m *SupportModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	pages.GET("/_expire", m.handler.Expire)
	pages.POST("/_expire", m.handler.Expire)
	pages.POST("/_reportissues", m.handler.ReportIssues)
	pages.GET("/_skipreq", m.handler.SkipReq)
}
