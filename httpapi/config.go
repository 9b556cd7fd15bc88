package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clicast/config"
)

// ConfigHandler exposes the read/update surface for the JSON config file
// (spec.md §6 `GET/PUT /api/config`). Reads go through the hot-reload
// watcher (SPEC_FULL.md §5.9) so a GET always reflects the latest disk
// state; writes mutate the backing config.Config and save, which in turn
// the watcher observes and folds back in on its own reload pass.
type ConfigHandler struct {
	cfg     *config.Config
	watcher *config.Watcher
}

func NewConfigHandler(cfg *config.Config, watcher *config.Watcher) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, watcher: watcher}
}

// configView omits auth.tokenHash — the config endpoints never expose the
// credential, only the directories/commands an operator edits.
type configView struct {
	Version     string             `json:"version"`
	Port        int                `json:"port"`
	AllowedDirs []string           `json:"allowedDirs"`
	AICommands  []config.AICommand `json:"aiCommands"`
}

func (h *ConfigHandler) snapshot() configView {
	current := h.cfg
	if h.watcher != nil {
		current = h.watcher.Current()
	}
	return configView{
		Version:     current.Version,
		Port:        current.Port,
		AllowedDirs: current.AllowedDirs,
		AICommands:  current.AICommands,
	}
}

// Get handles GET /api/config.
func (h *ConfigHandler) Get(c *gin.Context) {
	ok(c, http.StatusOK, h.snapshot())
}

type updateConfigRequest struct {
	AllowedDirs []string           `json:"allowedDirs"`
	AICommands  []config.AICommand `json:"aiCommands"`
}

// Update handles PUT /api/config. Port and auth.tokenHash are not
// writable here — port needs a listener restart, and the token has its
// own dedicated rotate/clear endpoints (spec.md §6).
func (h *ConfigHandler) Update(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid config body")
		return
	}

	if req.AllowedDirs != nil {
		h.cfg.AllowedDirs = req.AllowedDirs
	}
	if req.AICommands != nil {
		h.cfg.AICommands = req.AICommands
	}
	if err := h.cfg.Save(); err != nil {
		fail(c, http.StatusInternalServerError, "failed to save config")
		return
	}
	ok(c, http.StatusOK, h.snapshot())
}
