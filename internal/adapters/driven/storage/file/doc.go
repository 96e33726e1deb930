// Package file stores reference table artifacts as one file per session.
//
// The artifact is the only place the placeholder-to-PHI mapping exists
// outside process memory, so it is encrypted at rest by default:
// ChaCha20-Poly1305 with a key derived from the operator passphrase via
// HKDF-SHA256 and a fresh per-artifact salt. A wrong passphrase or a
// tampered artifact fails authentication and surfaces as a persistence
// error; there is no plaintext fallback on decryption failure.
package file
