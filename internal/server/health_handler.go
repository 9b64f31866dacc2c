package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const appVersion = "1.0.0"

// Root handles GET /.
func (d *deps) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "kiro-gateway is running",
		"version": appVersion,
	})
}

// Health handles GET /health: liveness plus credential validity and
// model-cache size, the two pieces of state an operator actually
// cares about when this process reports itself healthy.
func (d *deps) Health(c *gin.Context) {
	tokenValid := !d.authExpiringSoon()
	cacheSize := 0
	if d.modelCache != nil {
		cacheSize = d.modelCache.Size()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     appVersion,
		"token_valid": tokenValid,
		"cache_size":  cacheSize,
	})
}
