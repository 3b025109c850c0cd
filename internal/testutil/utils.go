package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger for use in tests. Output goes to stdout so it
// interleaves with the test runner's own output.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[multilingo-test] ", log.LstdFlags|log.Lmsgprefix)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
