// Package web holds the HTTP/1.1 request and response model of the engine.
//
// A Reader parses successive requests from one connection, decoding query and
// form parameters with DecodeParams and cookies with DecodeCookies. Requests
// are bound to a session.Manager so handlers can read and write session
// attributes; a session is only created when a handler stores something.
//
// Providers answer requests with a Response. The Writer turns a Response into
// the status line, headers and body on the wire, applying the connection's
// negotiated compression, the session cookie, CORS headers and redirects.
//
// Example:
//
//	rd := web.NewReader(conn, 0, 0)
//	req, err := rd.ReadRequest()
//	if errors.Is(err, web.ErrBadRequest) {
//	    _ = w.Write(conn, nil, web.ErrorResponse(web.StatusBadRequest), false)
//	}
package web
