package authkit

import (
	"context"
	"time"

	"github.com/authkit-dev/authkit/token"
)

// UserRecord is the account record returned by [UserDirectory]. The
// directory owns identity; this core only reads it.
type UserRecord struct {
	ID           string
	Email        string
	Phone        string
	FirstName    string
	LastName     string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserDirectory is the external user-directory collaborator. Identifier
// matching semantics (exact email, normalized phone) are the directory's
// responsibility; the [Manager] only canonicalizes the submitted
// identifier before lookup.
//
// FindByIdentifier may return more than one candidate under relaxed
// uniqueness; the login flow tries each in order. FindByID returns
// (nil, nil) when no user exists; absence is an outcome, not an error.
type UserDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) ([]UserRecord, error)
	FindByID(ctx context.Context, userID string) (*UserRecord, error)
}

// LoginInput carries submitted credentials. Exactly one of Email or
// Phone is used; when both are present Email wins. ClientLabel is an
// optional origin tag (typically the User-Agent string) recorded on the
// session.
type LoginInput struct {
	Email       string
	Phone       string
	Password    string
	ClientLabel string
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the authenticated-identity snapshot attached to a request
// after token verification: the decoded claims minus token plumbing.
type Identity struct {
	UserID    string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Role      string
	SessionID string
}

// IdentityFromClaims projects verified token claims onto an [Identity].
func IdentityFromClaims(c *token.Claims) *Identity {
	if c == nil {
		return nil
	}
	return &Identity{
		UserID:    c.UserID,
		Email:     c.Email,
		Phone:     c.Phone,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Role:      c.Role,
		SessionID: c.SessionID,
	}
}
