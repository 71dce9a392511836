// Package server implements the connection engine: listeners, the worker
// pool, TLS termination, authentication, sessions and dispatch to content
// providers and WebSocket endpoints.
//
// # Connection Lifecycle
//
// Each listener runs an accept loop that:
//  1. Rejects peers outside the allowed networks
//  2. Applies the per-address connection rate limit
//  3. Records the peer address and queues the connection for a worker
//
// A worker then performs the TLS handshake (when enabled), records the
// client certificate subject and serves requests until the client closes,
// the receive timeout expires or keep-alive ends:
//   - unparseable request: 400, then close
//   - authentication failure: 401 with a Basic challenge, connection kept
//   - unknown method: 501
//   - upgrade request on a WebSocket endpoint: handed to the WebSocket
//     engine on its own goroutine, the worker moves on
//   - otherwise the first provider that finds the path answers, or 404
//
// # Usage Example
//
//	srv, err := server.New(server.Config{Port: 8080})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pages := repository.NewDynamic()
//	pages.AddFunc("/hello", func(*web.Request) (*web.Response, bool) {
//	    return repository.FromString("hello")
//	})
//	srv.AddRepository(pages)
//	srv.AddWebSocket("/echo", websocket.Echo())
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Shutdown stops the listeners, wakes idle keep-alive connections, sends
// 1001 Going Away to WebSocket peers and waits for the workers. Connections
// still queued are closed without being served. If the context expires
// first, remaining sockets are closed forcibly.
package server
