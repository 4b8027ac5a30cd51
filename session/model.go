package session

import "time"

// Session is the durable server-side record anchoring trust for the
// tokens issued against it. Tokens embed the session id; revoking the
// session cuts off renewal for every token in the family regardless of
// their own expiry.
type Session struct {
	ID          string
	UserID      string
	ClientLabel string
	Valid       bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
