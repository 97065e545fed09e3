package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects websocket upgrades from origins outside the allow list.
// An empty list accepts everything (local development).
func Origin(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && c.Request.URL.Path == "/ws" && len(allowed) > 0 {
			origin := c.GetHeader("Origin")
			ok := false
			for _, a := range allowed {
				if strings.EqualFold(origin, a) {
					ok = true
					break
				}
			}
			if !ok {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	}
}
