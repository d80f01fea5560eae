package models

import (
	"errors"
	"net/url"
	"strings"
)

// Settings holds the per-instance datasource configuration. ClientID and
// ClientSecret are forwarded to the host-side relay which performs the
// actual credential exchange; the gateway itself never sends them.
type Settings struct {
	CriblOrgBaseURL string   `json:"criblOrgBaseUrl" mapstructure:"org_base_url"`
	ClientID        string   `json:"clientId" mapstructure:"client_id"`
	ClientSecret    string   `json:"-" mapstructure:"client_secret"`
	QueryTimeoutSec *float64 `json:"queryTimeoutSec,omitempty" mapstructure:"query_timeout_sec"`
}

var errInvalidBaseURL = errors.New("a valid Cribl organization URL must be supplied")

// Validate ensures the organization base URL is well-formed, i.e. an
// http(s) URL including a host.
func (s *Settings) Validate() error {
	if !isValidURL(s.CriblOrgBaseURL) {
		return errInvalidBaseURL
	}
	return nil
}

// isValidURL reports whether rawURL parses with an http(s) scheme and a host.
func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// cloudSuffixes mark organization URLs hosted in the cloud environments.
// Anything else is treated as a local deployment.
const (
	stagingCloudSuffix    = "cribl-staging.cloud"
	productionCloudSuffix = "cribl.cloud"
)

// AuthEnv values name the credential exchange route the relay exposes.
const (
	AuthEnvProduction = "production"
	AuthEnvStaging    = "staging"
	AuthEnvLocal      = "local"
)

// AuthEnv inspects the organization base URL and picks the auth environment:
// cloud-hosted suffixes use the OAuth client-credentials routes, anything
// else the local login route.
func (s *Settings) AuthEnv() string {
	host := s.CriblOrgBaseURL
	if u, err := url.Parse(s.CriblOrgBaseURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	switch {
	case strings.HasSuffix(host, stagingCloudSuffix):
		return AuthEnvStaging
	case strings.HasSuffix(host, productionCloudSuffix):
		return AuthEnvProduction
	default:
		return AuthEnvLocal
	}
}
