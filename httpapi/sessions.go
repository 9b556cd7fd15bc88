package httpapi

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"clicast/audit"
	"clicast/config"
	"clicast/pathguard"
	"clicast/session"
)

// SessionsHandler implements the session CRUD surface of spec.md §4.6.
// Input validation lives here; all lifecycle semantics delegate to
// session.Registry (spec.md §4.4). The path guard and AI-command list are
// rebuilt from source.Current() on every request rather than captured once
// at startup, so a hot-reloaded allowedDirs/aiCommands edit (SPEC_FULL.md
// §5.9) takes effect on the very next session create.
type SessionsHandler struct {
	registry *session.Registry
	source   ConfigSource
	audit    *audit.Store
}

func NewSessionsHandler(registry *session.Registry, source ConfigSource, auditStore *audit.Store) *SessionsHandler {
	return &SessionsHandler{registry: registry, source: source, audit: auditStore}
}

type createSessionRequest struct {
	Path        string `json:"path" binding:"required"`
	AICommandID string `json:"aiCommandId"`
}

// Create handles POST /sessions (spec.md §4.6).
func (h *SessionsHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		fail(c, http.StatusBadRequest, "path is required")
		return
	}

	if _, err := os.Stat(req.Path); err != nil {
		fail(c, http.StatusBadRequest, "path does not exist")
		return
	}

	cfg := h.source.Current()
	guard := pathguard.New(cfg.AllowedDirs)
	if !guard.Allows(req.Path) {
		fail(c, http.StatusForbidden, "path is outside the allowed directories")
		return
	}

	aiCommand := h.resolveAICommand(cfg, req.AICommandID)
	rec := h.registry.Create(req.Path, aiCommand)
	h.recordAudit(audit.KindSessionCreated, rec.ID)

	snap, _ := h.registry.Snapshot(rec.ID)
	ok(c, http.StatusCreated, gin.H{
		"session": snap,
		"wsUrl":   wsURL(c, "/ws?sessionId="+rec.ID),
	})
}

func (h *SessionsHandler) resolveAICommand(cfg *config.Config, id string) string {
	for _, cmd := range cfg.AICommands {
		if cmd.Enabled && (id == "" || cmd.ID == id) {
			return cmd.Cmd
		}
	}
	return "claude"
}

func wsURL(c *gin.Context, path string) string {
	scheme := "ws"
	if c.Request.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + c.Request.Host + path
}

// List handles GET /sessions.
func (h *SessionsHandler) List(c *gin.Context) {
	ok(c, http.StatusOK, h.registry.List())
}

// Get handles GET /sessions/{id}.
func (h *SessionsHandler) Get(c *gin.Context) {
	snap, found := h.registry.Snapshot(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	ok(c, http.StatusOK, snap)
}

// Delete handles DELETE /sessions/{id}: terminate and remove the record.
func (h *SessionsHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Delete(id) {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	h.recordAudit(audit.KindSessionTerminated, id)
	ok(c, http.StatusOK, gin.H{"deleted": true})
}

// Stop handles POST /sessions/{id}/stop: terminate but keep the record.
func (h *SessionsHandler) Stop(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Exists(id) {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	h.registry.Terminate(id, session.StatusTerminated)
	h.recordAudit(audit.KindSessionTerminated, id)
	ok(c, http.StatusOK, gin.H{"stopped": true})
}

func (h *SessionsHandler) recordAudit(kind, sessionID string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(kind, sessionID, nil)
}
