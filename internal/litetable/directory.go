package litetable

import (
	"fmt"
	"os"
	"path/filepath"
)

const homeDirName = ".litetable"

// Dir returns the LiteTable home directory in the user's home. The scan
// server shares it with the database install, so its config, seed data and
// checkpoint journal sit next to the data they belong to.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, homeDirName), nil
}
