package pkg

import (
	"net/url"

	"github.com/gin-gonic/gin"
)

const flashCookieName = "_flash"

// Flash holds a one-shot message carried across a redirect.
type Flash struct {
	Message string
	Type    string // "success" or "error"
}

// SetFlash stores a flash message in a short-lived cookie. It survives
// exactly one redirect; PopFlash clears it on the next render.
func SetFlash(c *gin.Context, message, flashType string) {
	v := url.Values{}
	v.Set("m", message)
	v.Set("t", flashType)
	c.SetCookie(flashCookieName, url.QueryEscape(v.Encode()), 60, "/", "", false, true)
}

// PopFlash reads and clears the flash cookie. It returns nil when no flash
// message is pending.
func PopFlash(c *gin.Context) *Flash {
	raw, err := c.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	c.SetCookie(flashCookieName, "", -1, "/", "", false, true)

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	v, err := url.ParseQuery(decoded)
	if err != nil {
		return nil
	}

	f := &Flash{Message: v.Get("m"), Type: v.Get("t")}
	if f.Message == "" {
		return nil
	}
	if f.Type == "" {
		f.Type = "success"
	}
	return f
}
