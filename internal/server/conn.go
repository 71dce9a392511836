package server

import (
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/auth"
	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/tlsconf"
	"github.com/mingodad/libnavajo/internal/web"
	"github.com/mingodad/libnavajo/internal/websocket"
)

// handleConnection runs on a pool worker. It owns conn until it returns,
// unless the connection was upgraded to WebSocket.
func (s *Server) handleConnection(conn *web.Conn) {
	s.track(conn)
	upgraded := false
	defer func() {
		s.untrack(conn)
		if !upgraded {
			_ = conn.Release()
			logging.LogConnection(conn.ID, conn.Peer.String(), "connection_closed")
		}
	}()

	if s.tlsConfig != nil {
		tc, info, err := tlsconf.Handshake(conn.Conn, s.tlsConfig, s.cfg.HandshakeTimeout)
		if err != nil {
			s.metrics.HandshakeFailed()
			logging.Error("TLS handshake failed",
				zap.String("conn_id", conn.ID),
				zap.String("remote_addr", conn.Peer.String()),
				zap.Error(err),
			)
			return
		}
		conn.SetTLS(tc, info.DN, info.Verified)
		if info.DN != "" {
			s.peerDNs.Touch(info.DN)
		}
	}

	reader := web.NewReader(conn.Conn, s.cfg.MaxHeaderBytes, s.cfg.MaxBodyBytes)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout))
		if s.exiting.Load() {
			return
		}

		req, err := reader.ReadRequest()
		if err != nil {
			s.readFailed(conn, reader, err)
			return
		}
		_ = conn.SetReadDeadline(time.Time{})
		start := time.Now()
		req.Conn = conn

		resp, ws, err := s.serveRequest(conn, reader, req)
		if err != nil {
			logging.Warn("Dropping connection",
				zap.String("conn_id", conn.ID),
				zap.Error(err),
			)
			return
		}
		if ws != nil {
			upgraded = true
			s.serveWebSocket(ws)
			return
		}

		s.metrics.ObserveRequest(resp.StatusCode(), time.Since(start))
		keepAlive := req.KeepAlive && !s.exiting.Load()
		if err := s.writer.Write(conn, req, resp, keepAlive); err != nil {
			if errors.Is(err, web.ErrResponseFailed) {
				s.metrics.ObserveRequest(web.StatusInternalServerError, time.Since(start))
				logging.Error("Failed to build response",
					zap.String("conn_id", conn.ID),
					zap.String("path", req.Path),
					zap.Error(err),
				)
				return
			}
			logging.Warn("Failed to write response",
				zap.String("conn_id", conn.ID),
				zap.Error(err),
			)
			return
		}
		if !keepAlive {
			return
		}
	}
}

// readFailed answers a malformed request with 400. Idle timeouts and
// closed connections end silently.
func (s *Server) readFailed(conn *web.Conn, reader *web.Reader, err error) {
	if errors.Is(err, web.ErrBadRequest) {
		logging.Warn("Bad request",
			zap.String("conn_id", conn.ID),
			zap.String("remote_addr", conn.Peer.String()),
			zap.Error(err),
		)
		if br := reader.Buffered(); br.Buffered() > 0 {
			rest, _ := br.Peek(br.Buffered())
			logging.LogRawBytes("Unparsed request bytes", rest)
		}
		s.metrics.ObserveRequest(web.StatusBadRequest, 0)
		_ = s.writer.Write(conn, nil, web.ErrorResponse(web.StatusBadRequest), false)
		return
	}

	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	case errors.As(err, &netErr) && netErr.Timeout():
		logging.Debug("Connection idle timeout", zap.String("conn_id", conn.ID))
	default:
		logging.Debug("Failed to read request", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}

// serveRequest produces the response for req, or the upgraded WebSocket
// connection. An error means the connection must be dropped without a
// response.
func (s *Server) serveRequest(conn *web.Conn, reader *web.Reader, req *web.Request) (*web.Response, *websocket.Conn, error) {
	conn.Compression = web.NegotiateCompression(req.Header.Get("Accept-Encoding"))
	req.AttachSessions(s.sessions)

	result := s.auth.Check(req.Header.Get("Authorization"), auth.Peer{DN: conn.PeerDN, Verified: conn.Verified})
	logging.LogHTTPRequest(conn.Peer.String(), req.MethodName, req.RawURL, result.Username)
	if !result.Granted {
		logging.Info("Authentication required",
			zap.String("conn_id", conn.ID),
			zap.String("path", req.Path),
		)
		return web.ErrorResponse(web.StatusUnauthorized), nil, nil
	}
	req.Username = result.Username

	if req.Method == web.MethodUnknown {
		logging.Debug("Method not implemented",
			zap.String("conn_id", conn.ID),
			zap.String("method", req.MethodName),
		)
		return web.ErrorResponse(web.StatusNotImplemented), nil, nil
	}

	if ep, ok := s.endpoint(req.Path); ok && websocket.IsUpgradeRequest(req) {
		ws, err := websocket.Accept(conn, reader.Buffered(), req, ep.handler, ep.opts...)
		if errors.Is(err, websocket.ErrBadHandshake) {
			logging.Warn("WebSocket handshake rejected",
				zap.String("conn_id", conn.ID),
				zap.Error(err),
			)
			return web.ErrorResponse(web.StatusBadRequest), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		return nil, ws, nil
	}

	resp, found := web.Dispatch(s.snapshotProviders(), req)
	if !found {
		return web.ErrorResponse(web.StatusNotFound), nil, nil
	}
	return resp, nil, nil
}

// serveWebSocket runs an upgraded connection on its own goroutine.
func (s *Server) serveWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.activeWS[ws.ID()] = ws
	stopping := !s.running
	s.wsWG.Add(1)
	s.mu.Unlock()

	s.metrics.ObserveRequest(web.StatusSwitchingProtocols, 0)
	s.metrics.WebSocketOpened()
	go func() {
		defer s.wsWG.Done()
		ws.Serve()
		s.mu.Lock()
		delete(s.activeWS, ws.ID())
		s.mu.Unlock()
		s.metrics.WebSocketClosed()
	}()
	if stopping {
		_ = ws.Close()
	}
}

func (s *Server) endpoint(path string) (wsEndpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[path]
	return ep, ok
}

func (s *Server) snapshotProviders() []web.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]web.Provider(nil), s.providers...)
}

// track records the raw socket: deadlines set on it also reach a TLS
// connection layered on top.
func (s *Server) track(conn *web.Conn) {
	s.mu.Lock()
	s.activeConns[conn.ID] = conn.Conn
	s.mu.Unlock()
}

func (s *Server) untrack(conn *web.Conn) {
	s.mu.Lock()
	delete(s.activeConns, conn.ID)
	s.mu.Unlock()
}
