package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"clicast/pathguard"
)

// DirsHandler implements the directory-browsing endpoints of spec.md §6,
// generalized from the teacher's handlers/files.go List/safePath (a single
// fixed base directory) to the multi-root pathguard.Guard. The guard is
// rebuilt from source.Current() on every request so a hot-reloaded
// allowedDirs edit (SPEC_FULL.md §5.9) is enforced immediately, not just
// reflected in GET /api/config.
type DirsHandler struct {
	source ConfigSource
}

func NewDirsHandler(source ConfigSource) *DirsHandler {
	return &DirsHandler{source: source}
}

type dirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

// List handles GET /api/dirs?path=….
func (h *DirsHandler) List(c *gin.Context) {
	requested := c.Query("path")
	if requested == "" {
		fail(c, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(requested)
	guard := pathguard.New(h.source.Current().AllowedDirs)
	if err != nil || !guard.Allows(abs) {
		fail(c, http.StatusForbidden, "path is outside the allowed directories")
		return
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		fail(c, http.StatusNotFound, "directory not found")
		return
	}

	out := make([]dirEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		out = append(out, dirEntry{
			Name:  entry.Name(),
			Path:  filepath.Join(abs, entry.Name()),
			IsDir: entry.IsDir(),
		})
	}
	ok(c, http.StatusOK, gin.H{"path": abs, "entries": out})
}

type breadcrumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Breadcrumbs handles GET /api/dirs/breadcrumbs?path=….
func (h *DirsHandler) Breadcrumbs(c *gin.Context) {
	requested := c.Query("path")
	if requested == "" {
		fail(c, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(requested)
	guard := pathguard.New(h.source.Current().AllowedDirs)
	if err != nil || !guard.Allows(abs) {
		fail(c, http.StatusForbidden, "path is outside the allowed directories")
		return
	}

	segments := strings.Split(strings.Trim(abs, string(filepath.Separator)), string(filepath.Separator))
	crumbs := make([]breadcrumb, 0, len(segments))
	cur := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		cur += string(filepath.Separator) + seg
		crumbs = append(crumbs, breadcrumb{Name: seg, Path: cur})
	}
	ok(c, http.StatusOK, crumbs)
}
