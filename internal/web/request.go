package web

import (
	"net/http"
	"strings"

	"github.com/mingodad/libnavajo/internal/session"
)

// SessionCookie is the name of the cookie carrying the session ID.
const SessionCookie = "SID"

// Request is a parsed HTTP request. Only the session accessors mutate it
// after parsing.
type Request struct {
	Method     Method
	MethodName string
	RawURL     string
	// Path is the decoded URL path without the query string.
	Path       string
	RawQuery   string
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Header     http.Header
	Body       []byte
	KeepAlive  bool

	// Username is set once Basic or PAM authentication succeeded.
	Username string
	Conn     *Conn

	params    map[string]string
	cookies   map[string]string
	sessions  *session.Manager
	sessionID string
}

// Param returns a query or form parameter.
func (r *Request) Param(name string) (string, bool) {
	v, ok := r.params[name]
	return v, ok
}

// Params returns a copy of every parameter.
func (r *Request) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// Cookie returns a request cookie.
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

// Origin returns the Origin header.
func (r *Request) Origin() string { return r.Header.Get("Origin") }

// IsUpgrade reports whether the client asked to switch to WebSocket.
func (r *Request) IsUpgrade() bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		headerHasToken(r.Header, "Connection", "upgrade")
}

// headerHasToken reports whether a comma-separated header contains token.
func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// AttachSessions binds the request to a session table and resolves the SID
// cookie. An unknown or expired SID leaves the request without a session.
func (r *Request) AttachSessions(m *session.Manager) {
	r.sessions = m
	r.sessionID = ""
	if m == nil {
		return
	}
	if sid, ok := r.cookies[SessionCookie]; ok && m.Find(sid) {
		r.sessionID = sid
	}
}

// Sessions returns the session table bound to the request, if any.
func (r *Request) Sessions() *session.Manager { return r.sessions }

// SessionID returns the resolved session ID, or "" when the request has none.
func (r *Request) SessionID() string { return r.sessionID }

// Session returns the request's session ID, creating a session if needed.
func (r *Request) Session() (string, error) {
	if r.sessionID != "" {
		return r.sessionID, nil
	}
	if r.sessions == nil {
		return "", ErrNoSessions
	}
	id, err := r.sessions.Create()
	if err != nil {
		return "", err
	}
	r.sessionID = id
	return id, nil
}

// SetSessionAttribute stores a value in the session, creating it if needed.
func (r *Request) SetSessionAttribute(name string, v session.Value) error {
	id, err := r.Session()
	if err != nil {
		return err
	}
	r.sessions.SetAttribute(id, name, v)
	return nil
}

// SessionAttribute reads a session value. It never creates a session.
func (r *Request) SessionAttribute(name string) (session.Value, bool) {
	if r.sessionID == "" || r.sessions == nil {
		return session.Value{}, false
	}
	return r.sessions.Attribute(r.sessionID, name)
}

// SessionAttributeNames lists the session's attribute names.
func (r *Request) SessionAttributeNames() []string {
	if r.sessionID == "" || r.sessions == nil {
		return nil
	}
	return r.sessions.AttributeNames(r.sessionID)
}

// RemoveSessionAttribute deletes one session value.
func (r *Request) RemoveSessionAttribute(name string) {
	if r.sessionID == "" || r.sessions == nil {
		return
	}
	r.sessions.RemoveAttribute(r.sessionID, name)
}

// RemoveSession drops the session entirely.
func (r *Request) RemoveSession() {
	if r.sessionID == "" || r.sessions == nil {
		return
	}
	r.sessions.Remove(r.sessionID)
	r.sessionID = ""
}
