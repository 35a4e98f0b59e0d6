package config

import "time"

// Token storage backends
const (
	TokenStorageMemory = "memory"
	TokenStorageFile   = "file"
	TokenStorageRedis  = "redis"
)

type SessionConfig interface {
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetTokenStorage() string
	GetTokenFile() string
	GetRedisURL() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionSecret returns the key used to sign session cookies and seal stored tokens
func (Session) GetSessionSecret() string {
	return GetEnvFirst("", "SESSION_SECRET", "NEXTAUTH_SECRET")
}

func (Session) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour)
}

func (Session) GetTokenStorage() string {
	return GetEnv("TOKEN_STORAGE", TokenStorageFile)
}

func (Session) GetTokenFile() string {
	return GetEnv("TOKEN_FILE", "./data/sessions.json")
}

func (Session) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}
