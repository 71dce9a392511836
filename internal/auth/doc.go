// Package auth decides whether a request may proceed.
//
// Three mechanisms are supported: HTTP Basic against a configured login list
// (plain or Argon2id-hashed passwords), HTTP Basic delegated to PAM, and the
// subject DN of a verified TLS client certificate. When nothing is configured
// every request is granted; otherwise at least one configured mechanism must
// succeed.
//
// PAM needs cgo and libpam and is only compiled with the pam build tag.
package auth
