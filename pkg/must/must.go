// Package must provides helpers for operations that should succeed but whose
// failure isn't worth aborting a larger operation over — it logs instead of
// propagating the error.
package must

import (
	"io"
	"os"

	"github.com/merlink01/psync/pkg/logging"
)

// Close closes c, logging (rather than returning) any error.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("unable to close: %v", err)
	}
}

// OSRemove removes the file at path, logging (rather than returning) any
// error. It is used for best-effort cleanup of temporary files.
func OSRemove(path string, logger *logging.Logger) {
	if err := os.Remove(path); err != nil {
		logger.Warnf("unable to remove %q: %v", path, err)
	}
}
