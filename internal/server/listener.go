package server

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

// listen binds the configured listeners. With no host and no family
// restriction one listener per family is opened; a family that cannot be
// bound is skipped as long as the other one succeeds.
func (s *Server) listen() ([]net.Listener, error) {
	lc := net.ListenConfig{}
	if s.cfg.Device != "" {
		control, err := bindDevice(s.cfg.Device)
		if err != nil {
			return nil, &ConfigError{Field: "network.device", Reason: s.cfg.Device, Err: err}
		}
		lc.Control = control
	}

	type target struct{ network, host string }
	var targets []target
	switch {
	case s.cfg.Host != "" && s.cfg.IPv4Only:
		targets = []target{{"tcp4", s.cfg.Host}}
	case s.cfg.Host != "" && s.cfg.IPv6Only:
		targets = []target{{"tcp6", s.cfg.Host}}
	case s.cfg.Host != "":
		targets = []target{{"tcp", s.cfg.Host}}
	case s.cfg.IPv4Only:
		targets = []target{{"tcp4", "0.0.0.0"}}
	case s.cfg.IPv6Only:
		targets = []target{{"tcp6", "::"}}
	default:
		targets = []target{{"tcp4", "0.0.0.0"}, {"tcp6", "::"}}
	}

	port := s.cfg.Port
	var listeners []net.Listener
	var firstErr error
	for _, t := range targets {
		addr := net.JoinHostPort(t.host, strconv.Itoa(port))
		ln, err := lc.Listen(context.Background(), t.network, addr)
		if err != nil {
			err = fmt.Errorf("failed to listen on %s (%s): %w", addr, t.network, err)
			if len(targets) == 1 {
				return nil, err
			}
			logging.Warn("Listener not available", zap.String("network", t.network), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		// A port picked by the kernel is reused for the other family.
		if port == 0 {
			port = ln.Addr().(*net.TCPAddr).Port
		}
		listeners = append(listeners, ln)
	}
	if len(listeners) == 0 {
		return nil, firstErr
	}
	return listeners, nil
}
