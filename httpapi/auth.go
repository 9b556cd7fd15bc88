package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"clicast/audit"
	"clicast/ratelimit"
	"clicast/token"
)

// AuthHandler wires token.Store to the auth lifecycle endpoints of
// spec.md §6, gated behind the per-IP lockout added in SPEC_FULL.md §5.10.
type AuthHandler struct {
	tokens  *token.Store
	lockout ratelimit.Lockout
	audit   *audit.Store
}

func NewAuthHandler(tokens *token.Store, lockout ratelimit.Lockout, auditStore *audit.Store) *AuthHandler {
	return &AuthHandler{tokens: tokens, lockout: lockout, audit: auditStore}
}

// Status reports {hasToken}. Unauthenticated (spec.md §6).
func (h *AuthHandler) Status(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"hasToken": h.tokens.Status()})
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Init performs first-time token creation. Unauthenticated, single-shot
// (spec.md §6): a second call fails with ErrAlreadyExists regardless of
// who calls it.
func (h *AuthHandler) Init(c *gin.Context) {
	if h.rejectIfLocked(c) {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.tokens.Init(req.Token); err != nil {
		h.lockout.RecordFailure(c.Request.Context(), c.ClientIP())
		switch {
		case errors.Is(err, token.ErrAlreadyExists):
			fail(c, http.StatusConflict, "token already initialized")
		case errors.Is(err, token.ErrWeakToken):
			fail(c, http.StatusBadRequest, "token is too short")
		default:
			fail(c, http.StatusInternalServerError, "failed to initialize token")
		}
		return
	}

	h.lockout.RecordSuccess(c.Request.Context(), c.ClientIP())
	h.recordAudit(audit.KindAuthInit, "", nil)
	ok(c, http.StatusCreated, gin.H{"initialized": true})
}

// Verify checks a candidate token without mutating anything. Unauthenticated
// (spec.md §6) — this endpoint IS the login check.
func (h *AuthHandler) Verify(c *gin.Context) {
	if h.rejectIfLocked(c) {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token is required")
		return
	}

	if !h.tokens.Verify(req.Token) {
		h.lockout.RecordFailure(c.Request.Context(), c.ClientIP())
		h.recordAudit(audit.KindAuthVerifyFailed, "", nil)
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}

	h.lockout.RecordSuccess(c.Request.Context(), c.ClientIP())
	ok(c, http.StatusOK, gin.H{"valid": true})
}

type rotateRequest struct {
	Current string `json:"current" binding:"required"`
	Next    string `json:"next" binding:"required"`
}

// Rotate replaces the stored token. Unauthenticated but proves possession
// of the current token (spec.md §6).
func (h *AuthHandler) Rotate(c *gin.Context) {
	if h.rejectIfLocked(c) {
		return
	}
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "current and next are required")
		return
	}

	if err := h.tokens.Rotate(req.Current, req.Next); err != nil {
		h.lockout.RecordFailure(c.Request.Context(), c.ClientIP())
		switch {
		case errors.Is(err, token.ErrUnauthorized):
			fail(c, http.StatusUnauthorized, "current token is incorrect")
		case errors.Is(err, token.ErrWeakToken):
			fail(c, http.StatusBadRequest, "next token is too short")
		default:
			fail(c, http.StatusInternalServerError, "failed to rotate token")
		}
		return
	}

	h.lockout.RecordSuccess(c.Request.Context(), c.ClientIP())
	h.recordAudit(audit.KindAuthRotated, "", nil)
	ok(c, http.StatusOK, gin.H{"rotated": true})
}

// Clear removes the stored token. Token-gated (spec.md §6) — the caller
// already proved possession via the RequireToken middleware.
func (h *AuthHandler) Clear(c *gin.Context) {
	if err := h.tokens.Clear(); err != nil {
		fail(c, http.StatusInternalServerError, "failed to clear token")
		return
	}
	ok(c, http.StatusOK, gin.H{"cleared": true})
}

func (h *AuthHandler) rejectIfLocked(c *gin.Context) bool {
	locked, remaining := h.lockout.IsLocked(c.Request.Context(), c.ClientIP())
	if locked {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":             false,
			"error":               "too many failed attempts",
			"retry_after_seconds": remaining,
		})
	}
	return locked
}

func (h *AuthHandler) recordAudit(kind, sessionID string, payload datatypes.JSON) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(kind, sessionID, payload)
}
