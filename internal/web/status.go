package web

import "strconv"

// Method is the request method.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
)

// ParseMethod maps a request-line token to a Method. Tokens are case-sensitive.
func ParseMethod(token string) Method {
	switch token {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Status is an HTTP response status code.
type Status int

const (
	StatusSwitchingProtocols  Status = 101
	StatusOK                  Status = 200
	StatusNoContent           Status = 204
	StatusFound               Status = 302
	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusNotFound            Status = 404
	StatusTooManyRequests     Status = 429
	StatusInternalServerError Status = 500
	StatusNotImplemented      Status = 501
)

var reasons = map[Status]string{
	StatusSwitchingProtocols:  "Switching Protocols",
	StatusOK:                  "OK",
	StatusNoContent:           "No Content",
	StatusFound:               "Found",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusNotFound:            "Not Found",
	StatusTooManyRequests:     "Too Many Requests",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
}

// Reason returns the reason phrase for the status line.
func (s Status) Reason() string {
	if r, ok := reasons[s]; ok {
		return r
	}
	return "Status " + strconv.Itoa(int(s))
}

// IsError reports whether s is a 4xx or 5xx status.
func (s Status) IsError() bool { return s >= 400 }

func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}

// cannedBody is the small HTML page sent with error statuses.
func (s Status) cannedBody() []byte {
	if !s.IsError() {
		return nil
	}
	text := s.String()
	return []byte("<!DOCTYPE html><html><head><title>" + text +
		"</title></head><body><h1>" + text + "</h1></body></html>")
}
