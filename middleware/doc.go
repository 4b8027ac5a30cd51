// Package middleware adapts HTTP request semantics onto the authkit
// session manager.
//
// [Authenticate] is the per-request authenticator: bearer-token
// extraction, verification, transparent renewal, and identity injection
// into the request context. [RequireUser] is the downstream gate that
// turns a missing or unresolvable identity into a 401.
//
// # Architecture boundaries
//
// This package translates headers and status codes; every
// authentication decision is delegated to [authkit.Manager]. It never
// parses tokens or touches Redis itself.
package middleware
