package config

import "time"

const (
	ProviderLocal = "local"
	ProviderOIDC  = "oidc"
)

type IdentityConfig interface {
	GetIdentityProvider() string
	GetTokenSecret() string
	GetTokenIssuer() string
	GetTokenExpiry() time.Duration
	GetMaxFailedAttempts() int
	GetFailedAttemptWindow() time.Duration
	GetOIDCIssuerURL() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
}

type Identity struct {
	Provider            string        `env:"IDENTITY_PROVIDER"     envDefault:"local"`
	TokenSecret         string        `env:"TOKEN_SECRET"          envDefault:"dev-secret-change-me"`
	TokenIssuer         string        `env:"TOKEN_ISSUER"          envDefault:"crm-session"`
	TokenExpiry         time.Duration `env:"TOKEN_EXPIRY"          envDefault:"1h"`
	MaxFailedAttempts   int           `env:"MAX_FAILED_ATTEMPTS"   envDefault:"5"`
	FailedAttemptWindow time.Duration `env:"FAILED_ATTEMPT_WINDOW" envDefault:"15m"`
	OIDCIssuerURL       string        `env:"OIDC_ISSUER_URL"`
	OIDCClientID        string        `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret    string        `env:"OIDC_CLIENT_SECRET"`
}

var _ IdentityConfig = Identity{}

func (i Identity) GetIdentityProvider() string {
	return i.Provider
}

func (i Identity) GetTokenSecret() string {
	return i.TokenSecret
}

func (i Identity) GetTokenIssuer() string {
	return i.TokenIssuer
}

func (i Identity) GetTokenExpiry() time.Duration {
	return i.TokenExpiry
}

func (i Identity) GetMaxFailedAttempts() int {
	return i.MaxFailedAttempts
}

func (i Identity) GetFailedAttemptWindow() time.Duration {
	return i.FailedAttemptWindow
}

func (i Identity) GetOIDCIssuerURL() string {
	return i.OIDCIssuerURL
}

func (i Identity) GetOIDCClientID() string {
	return i.OIDCClientID
}

func (i Identity) GetOIDCClientSecret() string {
	return i.OIDCClientSecret
}
