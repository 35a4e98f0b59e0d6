package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIURL() string
	GetRequestTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// GetAPIURL returns the backend REST API base URL. NEXT_PUBLIC_API_URL is accepted so an
// existing frontend .env can be reused unchanged.
func (API) GetAPIURL() string {
	return strings.TrimRight(GetEnvFirst("http://localhost:4000", "API_URL", "NEXT_PUBLIC_API_URL"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvDuration("API_TIMEOUT", 15*time.Second)
}
