package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/vaultflow/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds a single attempt. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Auth is applied to every request unless the request sets its own.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Retry, CircuitBreaker and RateLimiter are disabled when nil.
	Retry          *resilience.RetryConfig          `yaml:"-" mapstructure:"-"`
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"-" mapstructure:"-"`
	RateLimiter    *resilience.RateLimiterConfig    `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.RateLimiter != nil && c.RateLimiter.Rate < 0 {
		return fmt.Errorf("httpclient: rate limit must not be negative")
	}
	return nil
}

// DefaultRetryConfig retries classified retryable errors (timeouts,
// connection failures, 429 and 5xx).
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	return &cfg
}

// DefaultCircuitBreakerConfig returns the resilience defaults for name.
func DefaultCircuitBreakerConfig(name string) *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(name)
	return &cfg
}

// RateLimit returns a limiter config allowing perSecond requests with a
// burst of one.
func RateLimit(name string, perSecond float64) *resilience.RateLimiterConfig {
	return &resilience.RateLimiterConfig{Name: name, Rate: perSecond, Burst: 1}
}
