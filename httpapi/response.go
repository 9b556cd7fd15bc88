// Package httpapi implements the REST surface from spec.md §4.6 and §6:
// session CRUD, auth lifecycle, config and directory browsing, and the
// audit-log read endpoint added in SPEC_FULL.md §5.11. Every response
// follows the {success, data?, error?} envelope spec.md §6 mandates,
// centralized here instead of copy-pasted per handler as the teacher's
// gin.H{"error": ...} calls are.
package httpapi

import "github.com/gin-gonic/gin"

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
