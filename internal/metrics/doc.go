// Package metrics holds the server's Prometheus collectors and serves them
// in the text exposition format through a web.Provider.
//
// A nil *Metrics is valid: every method is then a no-op, so the server
// runs the same code path with metrics disabled.
package metrics
