package auth

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod is one of the supported HMAC algorithms.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
)

// MinSecretLen is the shortest accepted signing secret.
const MinSecretLen = 16

// Config configures a token Service.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string `yaml:"secret" mapstructure:"secret"`

	// Method is the signing algorithm (default: HS256).
	Method SigningMethod `yaml:"method" mapstructure:"method"`

	// Issuer is the "iss" claim; when set, parsed tokens must carry it.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// TokenTTL is the lifetime used when Generate is given ttl <= 0 (default: 1h).
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// ApplyDefaults fills zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.Issuer == "" {
		c.Issuer = "vaultflow"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
}

// Validate checks the secret and the signing method.
func (c *Config) Validate() error {
	if len(c.Secret) < MinSecretLen {
		return errors.New("auth: secret must be at least 16 characters")
	}
	switch c.Method {
	case HS256, HS384, HS512:
	default:
		return errors.New("auth: unsupported signing method: " + string(c.Method))
	}
	if c.TokenTTL < 0 {
		return errors.New("auth: token_ttl must not be negative")
	}
	return nil
}

func (c *Config) signingMethod() gojwt.SigningMethod {
	switch c.Method {
	case HS384:
		return gojwt.SigningMethodHS384
	case HS512:
		return gojwt.SigningMethodHS512
	default:
		return gojwt.SigningMethodHS256
	}
}
