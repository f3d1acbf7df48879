package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.secondbrain/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".secondbrain", "logs")
	}
	return filepath.Join(home, ".secondbrain", "logs")
}

// DefaultLogPath returns the default retrieval log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "retrieval.log")
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
