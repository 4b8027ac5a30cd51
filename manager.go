package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/authkit-dev/authkit/password"
	"github.com/authkit-dev/authkit/session"
	"github.com/authkit-dev/authkit/token"
)

// Manager orchestrates the session/token lifecycle: credential
// validation, session creation, token issuance, and transparent
// access-token renewal. It holds no mutable state of its own (the
// session store is the only durable state), so all methods are safe for
// concurrent use.
type Manager struct {
	config    Config
	directory UserDirectory
	sessions  *session.Store
	hasher    *password.Hasher
	codec     *token.Codec
	metrics   *Metrics
	logger    *slog.Logger
}

// Option customizes a [Manager].
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the counter sink, for deployments that share one set
// of counters across components.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// New validates cfg and assembles a [Manager] on top of the external
// collaborators: the user directory and the durable session store.
func New(cfg Config, directory UserDirectory, sessions *session.Store, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if directory == nil {
		return nil, errors.New("user directory required")
	}
	if sessions == nil {
		return nil, errors.New("session store required")
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Algorithm: cfg.Token.Algorithm,
		Key:       cfg.Token.keySource(),
		Issuer:    cfg.Token.Issuer,
		Leeway:    cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		config:    cfg,
		directory: directory,
		sessions:  sessions,
		hasher:    hasher,
		codec:     codec,
		metrics:   NewMetrics(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Login validates the submitted credentials, creates a session, and
// issues an access/refresh token pair.
//
// [ErrInvalidCredentials] is the expected no-match outcome and carries
// no detail about why. Any error after the credentials verified, be it
// session creation or token signing, is a server fault and is never
// reported as a credential problem.
func (m *Manager) Login(ctx context.Context, input LoginInput) (*TokenPair, error) {
	identifier := canonicalIdentifier(input)
	if identifier == "" || input.Password == "" {
		m.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	candidates, err := m.directory.FindByIdentifier(ctx, identifier)
	if err != nil {
		m.logger.ErrorContext(ctx, "user directory lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	// The directory may return several candidates under relaxed
	// uniqueness; the first verifying secret wins.
	var user *UserRecord
	for i := range candidates {
		if m.hasher.Verify(input.Password, candidates[i].PasswordHash) {
			user = &candidates[i]
			break
		}
	}
	if user == nil {
		m.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	sess, err := m.sessions.Create(ctx, user.ID, input.ClientLabel)
	if err != nil {
		m.logger.ErrorContext(ctx, "session creation failed", "user_id", user.ID, "error", err)
		return nil, err
	}
	m.metrics.Inc(MetricSessionCreated)

	access, err := m.codec.Sign(m.claimsFor(user, sess.ID, token.TypeAccess), m.config.Token.AccessTTL)
	if err != nil {
		return nil, m.issuanceFault(ctx, sess.ID, err)
	}

	refresh, err := m.codec.Sign(m.claimsFor(user, sess.ID, token.TypeRefresh), m.config.Token.RefreshTTL)
	if err != nil {
		return nil, m.issuanceFault(ctx, sess.ID, err)
	}

	m.metrics.Inc(MetricLoginSuccess)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Renew exchanges a refresh token for a fresh access token. Every
// denial folds into [ErrRenewalFailed]: an invalid or expired refresh
// token, a session that was revoked or never existed, a user no longer
// in the directory, and even a signing-key fault. Only infrastructure
// outages (store, directory) surface as distinct errors.
//
// An expired refresh token always fails here: access-token expiry is
// the trigger for renewal, refresh-token expiry forces a full re-login.
func (m *Manager) Renew(ctx context.Context, refreshToken string) (string, error) {
	res, err := m.codec.Verify(refreshToken)
	if err != nil {
		m.metrics.Inc(MetricConfigFault)
		m.logger.ErrorContext(ctx, "renewal aborted by signing configuration fault", "error", err)
		return "", ErrRenewalFailed
	}
	if res.State != token.StateValid {
		return "", m.renewalDenied()
	}

	claims := res.Claims
	if claims.TokenType != token.TypeRefresh {
		return "", m.renewalDenied()
	}
	if uuid.Validate(claims.SessionID) != nil {
		return "", m.renewalDenied()
	}

	sess, err := m.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return "", m.renewalDenied()
		}
		return "", err
	}
	if !sess.Valid {
		// Revocation enforcement: the signature may be intact and
		// unexpired, but trust ends with the session.
		m.logger.WarnContext(ctx, "renewal denied for revoked session", "session_id", sess.ID)
		return "", m.renewalDenied()
	}

	user, err := m.directory.FindByID(ctx, sess.UserID)
	if err != nil {
		m.logger.ErrorContext(ctx, "user directory lookup failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return "", m.renewalDenied()
	}

	access, err := m.codec.Sign(m.claimsFor(user, sess.ID, token.TypeAccess), m.config.Token.AccessTTL)
	if err != nil {
		m.metrics.Inc(MetricIssuanceFault)
		m.logger.ErrorContext(ctx, "access token reissue failed", "session_id", sess.ID, "error", err)
		return "", ErrRenewalFailed
	}

	m.metrics.Inc(MetricRenewSuccess)
	return access, nil
}

// VerifyAccess verifies a bearer access token for the request
// authenticator. A structurally valid token of the wrong kind (a
// refresh token presented as a bearer credential) reads as invalid.
// The returned error is the codec's configuration fault, nothing else.
func (m *Manager) VerifyAccess(accessToken string) (token.Result, error) {
	res, err := m.codec.Verify(accessToken)
	if err != nil {
		m.metrics.Inc(MetricConfigFault)
		return res, err
	}
	if res.Claims != nil && res.Claims.TokenType != token.TypeAccess {
		return token.Result{State: token.StateInvalid}, nil
	}
	return res, nil
}

// Logout invalidates the session referenced by an access token. An
// expired token is still accepted (a stale tab must be able to log
// out), but the signature has to check out.
func (m *Manager) Logout(ctx context.Context, accessToken string) error {
	res, err := m.codec.Verify(accessToken)
	if err != nil {
		return err
	}
	if res.Claims == nil {
		return ErrTokenInvalid
	}

	if err := m.sessions.Invalidate(ctx, res.Claims.SessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	m.metrics.Inc(MetricSessionInvalidated)
	return nil
}

// LogoutAll revokes every tracked session for a user.
func (m *Manager) LogoutAll(ctx context.Context, userID string) error {
	if err := m.sessions.InvalidateAllForUser(ctx, userID); err != nil {
		return err
	}
	m.metrics.Inc(MetricSessionInvalidated)
	return nil
}

// Hasher exposes the credential hasher so account-provisioning code can
// produce hashes the login path will verify.
func (m *Manager) Hasher() *password.Hasher { return m.hasher }

// Directory returns the user-directory collaborator, used by the
// downstream authorization gate.
func (m *Manager) Directory() UserDirectory { return m.directory }

// Metrics returns the counter sink for exporters.
func (m *Manager) Metrics() *Metrics { return m.metrics }

func (m *Manager) renewalDenied() error {
	m.metrics.Inc(MetricRenewFailure)
	return ErrRenewalFailed
}

func (m *Manager) issuanceFault(ctx context.Context, sessionID string, err error) error {
	m.metrics.Inc(MetricIssuanceFault)
	m.logger.ErrorContext(ctx, "token issuance failed after successful authentication",
		"session_id", sessionID, "error", err)
	return fmt.Errorf("%w: %v", ErrTokenIssuance, err)
}

// claimsFor builds the identity snapshot embedded in every token: the
// user record minus secret material, plus the originating session id.
// Login and renewal must produce the same shape.
func (m *Manager) claimsFor(user *UserRecord, sessionID, tokenType string) token.Claims {
	return token.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Phone:     user.Phone,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		SessionID: sessionID,
		TokenType: tokenType,
	}
}

// canonicalIdentifier reduces the submitted login input to exactly one
// identifier. Email wins over phone when both are present; email is
// lowercased, phone is stripped of common separators.
func canonicalIdentifier(input LoginInput) string {
	if email := strings.TrimSpace(input.Email); email != "" {
		return strings.ToLower(email)
	}

	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range phone {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
