package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/tubesum/prompts"

// LoadPromptContent resolves the path for a prompt file and reads its content.
// An absolute configuredPath is used directly; a relative one is treated as a
// filename within ~/.config/tubesum/prompts/. An empty configuredPath returns
// ("", nil) so callers fall back to their built-in prompt.
func LoadPromptContent(configuredPath string) (string, error) {
	if configuredPath == "" {
		return "", nil
	}
	finalPath := configuredPath

	if !filepath.IsAbs(configuredPath) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, configuredPath)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if os.IsNotExist(err) && !filepath.IsAbs(configuredPath) {
			return "", fmt.Errorf("prompt file not found at default location '%s'. Please create it or specify an absolute path in config.yaml: %w", finalPath, err)
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}

	return string(promptBytes), nil
}
