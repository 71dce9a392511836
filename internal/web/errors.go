package web

import "errors"

var (
	// ErrBadRequest reports a request that could not be parsed.
	ErrBadRequest = errors.New("bad request")
	// ErrNotImplemented reports a request method the engine does not serve.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrResponseFailed reports a response that could not be built. A 500
	// page has been sent in its place and the connection must be closed.
	ErrResponseFailed = errors.New("response could not be built")
	// ErrNoSessions is returned by session accessors on a request that is
	// not bound to a session table.
	ErrNoSessions = errors.New("no session manager")
)
