package config

import (
	"net"
	"net/url"
	"strings"
)

const (
	envTypeVar        = "ENV_TYPE"
	backendURLDevVar  = "BACKEND_URL_DEV"
	backendURLDepVar  = "BACKEND_URL_DEP"
	frontendURLVar    = "FRONTEND_URL"
	defaultBackendURL = "http://localhost:8080/api/v1"
)

type BackendConfig interface {
	GetBackendURL() string
	GetFrontendURL() string
	GetFrontendOrigin() string
	GetListenAddr() string
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetBackendURL selects the analysis API by ENV_TYPE ("dev" or "dep"); unknown types fall back to dev.
func (Backend) GetBackendURL() string {
	var backendURL string
	switch GetEnv(envTypeVar, "dev") {
	case "dep":
		backendURL = GetEnv(backendURLDepVar, defaultBackendURL)
	default:
		backendURL = GetEnv(backendURLDevVar, defaultBackendURL)
	}
	return strings.TrimRight(backendURL, "/")
}

// GetFrontendURL is where the desk host is reachable; the backend redirects OAuth callbacks here.
func (Backend) GetFrontendURL() string {
	return strings.TrimRight(GetEnv(frontendURLVar, "http://localhost:3000"), "/")
}

// GetFrontendOrigin is scheme://host[:port] of the frontend URL, used for same-origin message checks.
func (b Backend) GetFrontendOrigin() string {
	return Origin(b.GetFrontendURL())
}

// GetListenAddr derives the desk host listen address from the frontend URL.
func (b Backend) GetListenAddr() string {
	u, err := url.Parse(b.GetFrontendURL())
	if err != nil || u.Host == "" {
		return ":3000"
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Origin reduces a URL to its origin. Invalid URLs are returned unchanged.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
