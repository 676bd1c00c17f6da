package config

import (
	"os"
	"strings"
)

// Pushover credential env names. Owner notifications are disabled when either
// is unset.
const (
	EnvPushoverUserKey  = "AGENTMUX_PUSHOVER_USER_KEY"
	EnvPushoverAppToken = "AGENTMUX_PUSHOVER_APP_TOKEN"
)

// PushoverConfig holds the Pushover API credentials for owner notifications.
type PushoverConfig struct {
	UserKey  string
	AppToken string
}

// PushoverFromEnv reads the Pushover credentials from the environment.
func PushoverFromEnv() PushoverConfig {
	return PushoverConfig{
		UserKey:  strings.TrimSpace(os.Getenv(EnvPushoverUserKey)),
		AppToken: strings.TrimSpace(os.Getenv(EnvPushoverAppToken)),
	}
}
