package logging

import (
	"log"
	"os"
)

func init() {
	// Set the global logger to use standard error, since standard output may
	// be used to report sync summaries.
	log.SetOutput(os.Stderr)
}
