//go:build !windows

package filesystem

import (
	"os"
	"syscall"
)

// isCrossDeviceError checks whether an error returned by os.Rename is due to
// an attempted rename across devices.
func isCrossDeviceError(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return linkErr.Err == syscall.EXDEV
}
