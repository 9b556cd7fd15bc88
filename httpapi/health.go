package httpapi

import "github.com/gin-gonic/gin"

// Health reports liveness. Unauthenticated (spec.md §6).
func Health(c *gin.Context) {
	ok(c, 200, gin.H{"status": "ok"})
}
