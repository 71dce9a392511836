// Package session implements the server-side session table.
//
// A Manager maps 128-character random identifiers to a set of named
// attributes. Every session carries an explicit expiry that slides forward
// on each successful Find. Expired sessions are swept at most once a minute
// from Create, and periodically by Run when the server starts a janitor.
//
// The manager is created by the embedding application (or the server) and
// handed to requests explicitly; there is no package-level table.
package session
