//go:build windows

package filesystem

import (
	"os"

	"golang.org/x/sys/windows"
)

// isCrossDeviceError checks whether an error returned by os.Rename is due to
// an attempted rename across devices.
func isCrossDeviceError(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return linkErr.Err == windows.ERROR_NOT_SAME_DEVICE
}
