package authkit

import (
	"errors"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/authkit-dev/authkit/password"
	"github.com/authkit-dev/authkit/token"
)

// Config aggregates the configuration for all core components. Build it
// with [DefaultConfig] and override, or load it from the process
// environment with [FromEnv].
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Password password.Config
}

// TokenConfig configures signing. When KeyEnvVar is set the signing
// secret is read from that environment variable on every sign/verify
// call, so a rotated secret takes effect without restart; otherwise the
// static Secret is used.
type TokenConfig struct {
	Secret     []byte
	KeyEnvVar  string
	Algorithm  token.Algorithm
	Issuer     string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionConfig configures the session store adapter. Retention of zero
// keeps session records until an external sweep; a positive value lets
// Redis garbage-collect abandoned records.
type SessionConfig struct {
	KeyPrefix string
	Retention time.Duration
}

// DefaultConfig returns production-shaped defaults: HS256, one-hour
// access tokens, seven-day refresh tokens, and argon2id parameters
// sized for interactive login latency. The signing secret has no
// default; deployments must supply one.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Algorithm:  token.AlgHS256,
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			KeyPrefix: "ak",
		},
		Password: password.Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

type envSettings struct {
	Algorithm  string        `env:"AUTHKIT_JWT_ALGORITHM,default=HS256"`
	Issuer     string        `env:"AUTHKIT_JWT_ISSUER"`
	AccessTTL  time.Duration `env:"AUTHKIT_ACCESS_TTL,default=1h"`
	RefreshTTL time.Duration `env:"AUTHKIT_REFRESH_TTL,default=168h"`
	KeyPrefix  string        `env:"AUTHKIT_SESSION_PREFIX,default=ak"`
	Retention  time.Duration `env:"AUTHKIT_SESSION_RETENTION,default=0"`
}

// SigningKeyEnvVar is the environment variable [FromEnv] binds as the
// signing-key source.
const SigningKeyEnvVar = "AUTHKIT_JWT_SECRET"

// FromEnv builds a [Config] from the process environment on top of
// [DefaultConfig]. The signing secret is deliberately not copied out of
// the environment: the config points at [SigningKeyEnvVar] so the codec
// re-reads it per call. An unset secret therefore surfaces as the
// codec's configuration fault at use time, not here.
func FromEnv() (Config, error) {
	var env envSettings
	if err := envdecode.Decode(&env); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Token.KeyEnvVar = SigningKeyEnvVar
	cfg.Token.Algorithm = token.Algorithm(env.Algorithm)
	cfg.Token.Issuer = env.Issuer
	cfg.Token.AccessTTL = env.AccessTTL
	cfg.Token.RefreshTTL = env.RefreshTTL
	cfg.Session.KeyPrefix = env.KeyPrefix
	cfg.Session.Retention = env.Retention

	return cfg, nil
}

// Validate checks the invariants the [Manager] relies on.
func (c Config) Validate() error {
	if len(c.Token.Secret) == 0 && c.Token.KeyEnvVar == "" {
		return errors.New("token signing secret or key env var required")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("access TTL must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	switch c.Token.Algorithm {
	case token.AlgHS256, token.AlgHS384, token.AlgHS512:
	default:
		return errors.New("unsupported signing algorithm")
	}
	if c.Session.KeyPrefix == "" {
		return errors.New("session key prefix required")
	}
	if c.Session.Retention < 0 {
		return errors.New("session retention must not be negative")
	}

	return nil
}

func (c TokenConfig) keySource() token.KeySource {
	if c.KeyEnvVar != "" {
		return token.EnvKey(c.KeyEnvVar)
	}
	return token.StaticKey(c.Secret)
}
