//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

const stillActive = 259

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(h)

	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// stopProcess terminates the agent outright. Windows has no SIGTERM, so a
// file in flight is left untouched and picked up again on the next start.
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find agent %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("terminate agent %d: %w", pid, err)
	}
	return nil
}
