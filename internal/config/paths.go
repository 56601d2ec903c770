package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading "~" against the user's home directory.
// Model and skill directories in config files routinely use it. A
// "~user" form is not supported and is returned unchanged.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
