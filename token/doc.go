// Package token signs and verifies the compact tokens that carry an
// authenticated identity between requests.
//
// Verification is a three-way outcome ([StateValid], [StateExpired],
// [StateInvalid]) rather than a boolean: an expired token still yields
// its decoded claims so the session manager can attempt renewal, while
// a missing signing key is reported as a distinct configuration fault
// instead of being folded into "invalid".
//
// The signing key is fetched from the configured [KeySource] on every
// call, so key rotation takes effect without a process restart.
package token
