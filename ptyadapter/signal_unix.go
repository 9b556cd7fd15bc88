//go:build !windows

package ptyadapter

import (
	"os/exec"
	"syscall"
)

// exitSignal extracts the terminating signal number from an ExitError, if
// the child was killed by a signal rather than exiting normally.
func exitSignal(err *exec.ExitError) (int, bool) {
	ws, ok := err.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}
