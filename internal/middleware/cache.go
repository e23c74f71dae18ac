package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore keeps exam content and tokens out of browser and proxy caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, max-age=0")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
