package config

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetGoogleRedirectURL() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (OAuth) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

// GetGoogleRedirectURL defaults to the callback route on BASE_URL
func (OAuth) GetGoogleRedirectURL() string {
	return GetEnv("GOOGLE_REDIRECT_URL", EnvVars{}.GetBaseURL()+"/auth/callback/google")
}
