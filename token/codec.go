package token

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm selects the HMAC signing algorithm for issued tokens.
type Algorithm string

const (
	// AlgHS256 is the default signing algorithm.
	AlgHS256 Algorithm = "HS256"
	// AlgHS384 signs with HMAC-SHA384.
	AlgHS384 Algorithm = "HS384"
	// AlgHS512 signs with HMAC-SHA512.
	AlgHS512 Algorithm = "HS512"
)

var (
	// ErrKeyUnavailable reports that no signing key could be obtained from
	// the configured [KeySource]. It is a server configuration fault, not a
	// property of the token being processed.
	ErrKeyUnavailable = errors.New("signing key unavailable")
	// ErrAlgorithmUnsupported reports a signing algorithm outside the HMAC
	// family supported by this codec.
	ErrAlgorithmUnsupported = errors.New("unsupported signing algorithm")
)

// TokenType values carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// KeySource supplies the shared signing secret. Implementations are
// consulted on every sign and verify call so a rotated key takes effect
// without restarting the process. Returning an empty slice means the key
// is unavailable.
type KeySource interface {
	SigningKey() []byte
}

// StaticKey is a fixed in-memory signing key.
type StaticKey []byte

// SigningKey returns the key bytes.
func (k StaticKey) SigningKey() []byte { return k }

type envKey struct {
	name string
}

func (k envKey) SigningKey() []byte {
	v := os.Getenv(k.name)
	if v == "" {
		return nil
	}
	return []byte(v)
}

// EnvKey returns a [KeySource] that reads the named environment variable
// on every call.
func EnvKey(name string) KeySource { return envKey{name: name} }

// Config holds the codec's signing configuration. TTLs are supplied per
// sign call by the session manager, not here.
type Config struct {
	Algorithm Algorithm
	Key       KeySource
	Issuer    string
	Leeway    time.Duration
}

// Codec signs and verifies compact tamper-evident tokens. It is
// stateless apart from its configuration and safe for concurrent use.
type Codec struct {
	config Config
}

// Claims is the closed payload shape embedded in every issued token: an
// identity snapshot, the originating session id, and the token kind.
// Payloads missing UserID, SessionID, or TokenType are rejected on
// decode.
type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"given_name,omitempty"`
	LastName  string `json:"family_name,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) complete() bool {
	return c.UserID != "" && c.SessionID != "" && c.TokenType != ""
}

// State is the three-way verification outcome.
type State uint8

const (
	// StateInvalid covers signature failures, malformed tokens, and
	// structurally incomplete claim payloads. No claims are exposed.
	StateInvalid State = iota
	// StateExpired means the signature checked out but the TTL elapsed.
	// Claims are still decoded so callers can locate the session.
	StateExpired
	// StateValid means signature and expiry both check out.
	StateValid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Result pairs the verification state with the decoded claims. Claims is
// nil unless State is StateValid or StateExpired.
type Result struct {
	State  State
	Claims *Claims
}

// NewCodec validates cfg and returns a [Codec]. An empty Algorithm
// defaults to HS256. The signing key itself is not checked here; key
// availability is a per-call concern.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Key == nil {
		return nil, errors.New("token codec requires a key source")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgHS256
	}
	if _, err := signingMethod(cfg.Algorithm); err != nil {
		return nil, err
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Codec{config: cfg}, nil
}

// Sign issues a token carrying claims with the given TTL. A ttl <= 0
// produces an already-expired token, which is occasionally useful in
// tests and never useful in production.
//
// Errors are server faults: [ErrKeyUnavailable] when the key source
// yields nothing, [ErrAlgorithmUnsupported] for an unknown algorithm.
// Callers must surface them as server-side failures, not as a problem
// with the submitted credentials.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, error) {
	method, err := signingMethod(c.config.Algorithm)
	if err != nil {
		return "", err
	}

	key := c.config.Key.SigningKey()
	if len(key) == 0 {
		return "", ErrKeyUnavailable
	}

	now := time.Now()
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.IssuedAt = jwt.NewNumericDate(now)
	if c.config.Issuer != "" {
		claims.Issuer = c.config.Issuer
	}

	return jwt.NewWithClaims(method, claims).SignedString(key)
}

// Verify checks tokenStr and reports one of three states.
//
// The only non-nil error is a configuration fault ([ErrKeyUnavailable]
// or [ErrAlgorithmUnsupported]): the server, not the caller, is broken,
// and the outcome must never degrade to "invalid token".
func (c *Codec) Verify(tokenStr string) (Result, error) {
	method, err := signingMethod(c.config.Algorithm)
	if err != nil {
		return Result{State: StateInvalid}, err
	}

	key := c.config.Key.SigningKey()
	if len(key) == 0 {
		return Result{State: StateInvalid}, ErrKeyUnavailable
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	claims := &Claims{}
	parser := jwt.NewParser(options...)
	_, parseErr := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})

	switch {
	case parseErr == nil:
		if !claims.complete() {
			return Result{State: StateInvalid}, nil
		}
		return Result{State: StateValid, Claims: claims}, nil

	case errors.Is(parseErr, jwt.ErrTokenExpired):
		// Signature already checked before claim validation, so the
		// decoded claims are trustworthy even though the token lapsed.
		if errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) || !claims.complete() {
			return Result{State: StateInvalid}, nil
		}
		return Result{State: StateExpired, Claims: claims}, nil

	default:
		return Result{State: StateInvalid}, nil
	}
}

func signingMethod(alg Algorithm) (jwt.SigningMethod, error) {
	switch alg {
	case AlgHS256:
		return jwt.SigningMethodHS256, nil
	case AlgHS384:
		return jwt.SigningMethodHS384, nil
	case AlgHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, ErrAlgorithmUnsupported
	}
}
