package taskserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tasksync/internal/logging"
)

// Auth enforces the configured bearer token. An empty configured token
// disables enforcement, which the dev server and tests rely on.
func Auth(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(cfg.AuthToken)
		if token == "" {
			c.Next()
			return
		}
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") || strings.TrimSpace(h[7:]) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	lg := logger.With("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lg.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
