package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "PLUGKIT_CONFIG"

// Discover finds the config file by checking standard locations.
// Priority order: $PLUGKIT_CONFIG, ~/.config/plugkit/config.yaml,
// /etc/plugkit/config.yaml, ./plugkit.yaml.
func Discover() (string, error) {
	for _, candidate := range candidatePaths() {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/plugkit/config.yaml, /etc/plugkit/config.yaml, ./plugkit.yaml)", EnvConfigPath)
}

func candidatePaths() []string {
	var out []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		out = append(out, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(homeDir, ".config", "plugkit", "config.yaml"))
	}
	return append(out, "/etc/plugkit/config.yaml", "./plugkit.yaml")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
