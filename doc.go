// Package authkit implements the session/token lifecycle for a
// multi-client API: credential validation, session creation, signed
// access/refresh token issuance, and transparent access-token renewal.
//
// The [Manager] is the orchestrator. It composes four collaborators:
//
//   - password: salted argon2id credential verification
//   - token: signing and three-way verification of compact tokens
//   - session: the durable Redis-backed session store
//   - a caller-supplied [UserDirectory] owning user identity
//
// Tokens are self-contained but their trust is bounded by session
// validity: every token embeds the id of the session it was issued
// against, and renewal is denied once that session is invalidated,
// giving server-side revocation over otherwise stateless tokens.
//
// HTTP integration lives in the middleware subpackage; a runnable
// end-to-end wiring is under examples/http-minimal.
package authkit
