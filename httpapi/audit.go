package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clicast/audit"
)

// AuditHandler exposes the read-only lifecycle-event log from
// SPEC_FULL.md §5.11.
type AuditHandler struct {
	store *audit.Store
}

func NewAuditHandler(store *audit.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// List handles GET /api/audit?limit=.
func (h *AuditHandler) List(c *gin.Context) {
	if h.store == nil {
		ok(c, http.StatusOK, []audit.Event{})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	events, err := h.store.Recent(limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to read audit log")
		return
	}
	ok(c, http.StatusOK, events)
}
