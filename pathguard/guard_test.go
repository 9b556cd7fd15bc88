package pathguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyAllowListAllowsEverything(t *testing.T) {
	g := New(nil)
	assert.True(t, g.Allows("/etc"))
	assert.True(t, g.Allows("/srv/a"))
}

func TestExactMatch(t *testing.T) {
	g := New([]string{"/srv/a"})
	assert.True(t, g.Allows("/srv/a"))
}

func TestChildMatch(t *testing.T) {
	g := New([]string{"/srv/a"})
	assert.True(t, g.Allows("/srv/a/sub/dir"))
}

func TestRejectsOutsideAllowList(t *testing.T) {
	g := New([]string{"/srv/a"})
	assert.False(t, g.Allows("/etc"))
	assert.False(t, g.Allows("/srv/ab"))
}

func TestRejectsEmptyPath(t *testing.T) {
	g := New([]string{"/srv/a"})
	assert.False(t, g.Allows(""))
}

func TestDotDotIsResolvedBeforeComparison(t *testing.T) {
	g := New([]string{"/srv/a"})
	assert.False(t, g.Allows("/srv/a/../b"))
	assert.True(t, g.Allows("/srv/a/sub/../child"))
}

func TestMultipleRoots(t *testing.T) {
	g := New([]string{"/srv/a", "/srv/b"})
	assert.True(t, g.Allows("/srv/b/x"))
	assert.False(t, g.Allows("/srv/c"))
}
