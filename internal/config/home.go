// Package config holds process-wide configuration for the agentmux
// supervisor: the agentmux home directory, timing profiles, role budgets,
// and the built-in skill table consumed by runtime flag resolution.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvHome overrides the agentmux home directory (default ~/.agentmux).
const EnvHome = "AGENTMUX_HOME"

// EnvAPIPort overrides the backend API port exported into agent sessions.
const EnvAPIPort = "AGENTMUX_API_PORT"

// DefaultAPIPort is the backend port used when EnvAPIPort is unset.
const DefaultAPIPort = "8788"

// Home returns the agentmux home directory, creating it if needed.
// Resolution order: $AGENTMUX_HOME, then ~/.agentmux, then a temp fallback.
func Home() string {
	if h := strings.TrimSpace(os.Getenv(EnvHome)); h != "" {
		os.MkdirAll(h, 0755)
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".agentmux")
	os.MkdirAll(dir, 0755)
	return dir
}

// APIURL returns the backend API URL exported to agent sessions as
// AGENTMUX_API_URL.
func APIURL() string {
	port := strings.TrimSpace(os.Getenv(EnvAPIPort))
	if port == "" {
		port = DefaultAPIPort
	}
	return "http://localhost:" + port
}
