//go:build windows

package ptyadapter

import "os/exec"

// exitSignal is always empty on Windows, which has no POSIX signal concept.
func exitSignal(err *exec.ExitError) (int, bool) {
	return 0, false
}
