package config

import "time"

type OAuthConfig interface {
	GetOAuthEntryPath() string
	GetPopupPollInterval() time.Duration
	GetPopupWidth() int
	GetPopupHeight() int
	GetOAuthTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetOAuthEntryPath() string {
	return GetEnv("OAUTH_ENTRY_PATH", "/google")
}

// GetPopupPollInterval is how often a popup is checked for manual closure.
func (OAuth) GetPopupPollInterval() time.Duration {
	return GetEnvDuration("OAUTH_POPUP_POLL", time.Second)
}

func (OAuth) GetPopupWidth() int {
	return 500
}

func (OAuth) GetPopupHeight() int {
	return 600
}

// GetOAuthTimeout bounds how long the CLI waits for a browser handshake to complete.
func (OAuth) GetOAuthTimeout() time.Duration {
	return GetEnvDuration("OAUTH_TIMEOUT", 5*time.Minute)
}
