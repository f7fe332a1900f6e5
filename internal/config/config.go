// Package config resolves metastage configuration from Viper and the
// process environment. Flags bound through Viper win, then environment
// variables, then defaults.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/agentstation/metastage/pkg/errors"
)

// Environment variable names.
const (
	EnvUpstreamEndpoint = "METASTAGE_UPSTREAM_ENDPOINT"
	EnvUpstreamToken    = "METASTAGE_UPSTREAM_TOKEN"
	EnvAPIKey           = "METASTAGE_API_KEY"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// GetDuration returns a duration from Viper, falling back to def when unset
// or unparseable.
func GetDuration(key string, def time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// Upstream holds the connection settings for the metadata service.
type Upstream struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// ResolveUpstream reads the upstream settings, requiring an endpoint.
func ResolveUpstream() (Upstream, error) {
	endpoint := GetString(EnvUpstreamEndpoint)
	if endpoint == "" {
		endpoint = GetString("upstream-endpoint")
	}
	if endpoint == "" {
		return Upstream{}, errors.NewConfigError(
			"upstream",
			"no endpoint configured; set "+EnvUpstreamEndpoint+" or --upstream-endpoint",
			nil,
		)
	}

	token := GetString(EnvUpstreamToken)
	if token == "" {
		token = GetString("upstream-token")
	}

	return Upstream{
		Endpoint: endpoint,
		Token:    token,
		Timeout:  GetDuration("upstream-timeout", 30*time.Second),
	}, nil
}
