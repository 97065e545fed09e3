package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Origin(allowed...))
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, path, origin string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestOriginAllowsListedOrigin(t *testing.T) {
	r := newRouter("https://portal.example.com")
	require.Equal(t, http.StatusOK, get(r, "/ws", "https://portal.example.com"))
	require.Equal(t, http.StatusOK, get(r, "/ws", "HTTPS://PORTAL.EXAMPLE.COM"))
}

func TestOriginRejectsUnlistedOrigin(t *testing.T) {
	r := newRouter("https://portal.example.com")
	require.Equal(t, http.StatusForbidden, get(r, "/ws", "https://evil.example.com"))
	require.Equal(t, http.StatusForbidden, get(r, "/ws", ""))
}

func TestOriginEmptyListAllowsAll(t *testing.T) {
	r := newRouter()
	require.Equal(t, http.StatusOK, get(r, "/ws", "https://anywhere.example.com"))
}

func TestOriginOnlyGuardsUpgradePath(t *testing.T) {
	r := newRouter("https://portal.example.com")
	require.Equal(t, http.StatusOK, get(r, "/healthz", "https://evil.example.com"))
}
