// Package password implements salted one-way credential hashing and
// verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The embedded parameters and salt make every hash self-describing, so
// [Hasher.Verify] can check a secret against hashes produced under older
// cost settings.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. It performs no I/O,
// holds no state beyond its cost configuration, and never reports why a
// verification failed: a malformed stored hash and a wrong secret are
// indistinguishable to callers.
package password
