package helpers

import (
	"os/exec"
)

// IsFFprobeInstalled checks if ffprobe is installed and available in the system's PATH.
// Course duration probing is skipped when it is missing.
func IsFFprobeInstalled() bool {
	cmd := exec.Command("ffprobe", "-version")
	if err := cmd.Run(); err != nil {
		return false
	}
	return true
}
