// Package session provides Redis-backed persistence for login sessions.
//
// # Record layout
//
// Each session is one Redis hash (user id, client label, valid flag,
// timestamps) plus a per-user index set of session ids. Invalidation is
// a field write, never a delete: a revoked session stays readable so
// renewal attempts against it can be denied rather than mistaken for an
// unknown id.
//
// # Architecture boundaries
//
// This package owns storage mechanics only. It does not interpret
// tokens, verify credentials, or decide who may invalidate a session;
// the session manager in the root package drives all of that.
package session
