package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/compress"
	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/web"
)

const (
	// DefaultMaxMessageSize bounds a reassembled (and inflated) message.
	DefaultMaxMessageSize = 16 << 20
	// DefaultWriteTimeout is the time allowed to write one frame.
	DefaultWriteTimeout = 10 * time.Second

	// closeTimeout is how long to wait for the peer's close reply.
	closeTimeout = 5 * time.Second
	// maxCloseReason keeps the close payload within a control frame.
	maxCloseReason = maxControlPayload - 2
)

// Handler receives the events of a WebSocket endpoint. Callbacks run on the
// connection's read goroutine, one at a time.
type Handler interface {
	// OnOpen is called once after the handshake. Returning false closes the
	// connection with status 1008.
	OnOpen(c *Conn, req *web.Request) bool
	OnText(c *Conn, msg string)
	OnBinary(c *Conn, msg []byte)
	// OnClose is called once when the connection ends. err is a *CloseError
	// for a close handshake or protocol failure, otherwise the I/O error
	// that ended the connection.
	OnClose(c *Conn, err error)
}

// PongHandler is implemented by handlers that want pong frames.
type PongHandler interface {
	OnPong(c *Conn, data []byte)
}

// Funcs adapts plain functions to Handler and PongHandler. Nil fields are
// ignored; a nil Open accepts every connection.
type Funcs struct {
	Open   func(c *Conn, req *web.Request) bool
	Text   func(c *Conn, msg string)
	Binary func(c *Conn, msg []byte)
	Close  func(c *Conn, err error)
	Pong   func(c *Conn, data []byte)
}

func (f Funcs) OnOpen(c *Conn, req *web.Request) bool {
	if f.Open == nil {
		return true
	}
	return f.Open(c, req)
}

func (f Funcs) OnText(c *Conn, msg string) {
	if f.Text != nil {
		f.Text(c, msg)
	}
}

func (f Funcs) OnBinary(c *Conn, msg []byte) {
	if f.Binary != nil {
		f.Binary(c, msg)
	}
}

func (f Funcs) OnClose(c *Conn, err error) {
	if f.Close != nil {
		f.Close(c, err)
	}
}

func (f Funcs) OnPong(c *Conn, data []byte) {
	if f.Pong != nil {
		f.Pong(c, data)
	}
}

// Echo returns a handler that sends every message back unchanged.
func Echo() Handler {
	return Funcs{
		Text:   func(c *Conn, msg string) { _ = c.SendText(msg) },
		Binary: func(c *Conn, msg []byte) { _ = c.SendBinary(msg) },
	}
}

// Options configures an endpoint.
type Options struct {
	// Deflate accepts permessage-deflate when the client offers it.
	Deflate bool
	// MaxMessageSize bounds incoming messages after reassembly.
	MaxMessageSize int64
	// PingInterval sends a ping at this period when > 0.
	PingInterval time.Duration
	// ReadTimeout closes the connection after this long without a frame
	// when > 0.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Option modifies Options.
type Option func(*Options)

// WithDeflate enables or disables permessage-deflate.
func WithDeflate(enabled bool) Option {
	return func(o *Options) { o.Deflate = enabled }
}

// WithMaxMessageSize sets the incoming message limit.
func WithMaxMessageSize(n int64) Option {
	return func(o *Options) { o.MaxMessageSize = n }
}

// WithPingInterval enables keepalive pings.
func WithPingInterval(d time.Duration) Option {
	return func(o *Options) { o.PingInterval = d }
}

// WithReadTimeout sets the idle read limit.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		MaxMessageSize: DefaultMaxMessageSize,
		WriteTimeout:   DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}

// Conn is an upgraded connection. The Send methods are safe for concurrent
// use; everything else runs on the goroutine calling Serve.
type Conn struct {
	conn    *web.Conn
	r       io.Reader
	req     *web.Request
	handler Handler
	opts    Options
	deflate bool

	wmu         sync.Mutex
	closeSent   bool
	fragmenting bool
	fragOp      Opcode

	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Accept validates the upgrade request and writes the 101 response. r is
// the buffered reader the request was parsed from, so bytes the client sent
// right after the handshake are not lost; nil reads from conn directly.
// Nothing is written when validation fails.
func Accept(conn *web.Conn, r io.Reader, req *web.Request, h Handler, opts ...Option) (*Conn, error) {
	if err := ValidateUpgrade(req); err != nil {
		return nil, err
	}
	o := NewOptions(opts...)
	deflate := o.Deflate && OffersDeflate(req)

	if err := conn.SetWriteDeadline(time.Now().Add(o.WriteTimeout)); err != nil {
		return nil, err
	}
	if err := WriteHandshake(conn, req, deflate); err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	if r == nil {
		r = conn
	}
	return &Conn{
		conn:    conn,
		r:       r,
		req:     req,
		handler: h,
		opts:    o,
		deflate: deflate,
		done:    make(chan struct{}),
	}, nil
}

// ID returns the connection ID used in logs.
func (c *Conn) ID() string { return c.conn.ID }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.conn.Peer.String() }

// Request returns the upgrade request.
func (c *Conn) Request() *web.Request { return c.req }

// Deflate reports whether permessage-deflate was negotiated.
func (c *Conn) Deflate() bool { return c.deflate }

// Done is closed once the connection has been released.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Serve runs the read loop until the connection closes, then releases it.
func (c *Conn) Serve() {
	logging.LogConnection(c.conn.ID, c.RemoteAddr(), "websocket_upgraded")
	defer c.release()

	if !c.handler.OnOpen(c, c.req) {
		_ = c.sendClose(ClosePolicyViolation, "")
		logging.Info("WebSocket connection refused by handler",
			zap.String("conn_id", c.conn.ID),
			zap.String("path", c.req.Path),
		)
		return
	}

	if c.opts.PingInterval > 0 {
		go c.pingLoop()
	}

	err := c.readLoop()
	var ce *CloseError
	if errors.As(err, &ce) {
		logging.Info("WebSocket connection closed",
			zap.String("conn_id", c.conn.ID),
			zap.Int("code", ce.Code),
			zap.String("reason", ce.Reason),
		)
	} else {
		logging.Info("WebSocket connection ended",
			zap.String("conn_id", c.conn.ID),
			zap.Error(err),
		)
	}
	c.handler.OnClose(c, err)
}

func (c *Conn) readLoop() error {
	var (
		msgOp      Opcode
		msg        []byte
		compressed bool
		inMessage  bool
	)
	for {
		if c.opts.ReadTimeout > 0 && !c.closing.Load() {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		}
		f, err := ReadFrame(c.r, c.opts.MaxMessageSize)
		if err != nil {
			if errors.Is(err, ErrProtocol) || errors.Is(err, ErrMessageTooBig) {
				return c.fail(err)
			}
			// I/O failure: tell the peer if it can still hear us.
			_ = c.sendClose(CloseGoingAway, "")
			return err
		}

		if !f.Masked {
			return c.fail(fmt.Errorf("%w: unmasked client frame", ErrProtocol))
		}
		if f.RSV2 || f.RSV3 {
			return c.fail(fmt.Errorf("%w: reserved bits set", ErrProtocol))
		}
		if f.RSV1 && (!c.deflate || (f.Opcode != OpText && f.Opcode != OpBinary)) {
			return c.fail(fmt.Errorf("%w: unexpected RSV1 on %s frame", ErrProtocol, f.Opcode))
		}

		switch f.Opcode {
		case OpPing:
			if !c.closing.Load() {
				_ = c.SendPong(f.Payload)
			}
			continue
		case OpPong:
			if ph, ok := c.handler.(PongHandler); ok && !c.closing.Load() {
				ph.OnPong(c, f.Payload)
			}
			continue
		case OpClose:
			return c.peerClosed(f.Payload)
		case OpText, OpBinary:
			if inMessage {
				return c.fail(fmt.Errorf("%w: %s frame inside a fragmented message", ErrProtocol, f.Opcode))
			}
			inMessage, msgOp, compressed, msg = true, f.Opcode, f.RSV1, nil
		case OpContinuation:
			if !inMessage {
				return c.fail(fmt.Errorf("%w: continuation without a message", ErrProtocol))
			}
		default:
			return c.fail(fmt.Errorf("%w: reserved opcode %s", ErrProtocol, f.Opcode))
		}

		if int64(len(msg)+len(f.Payload)) > c.opts.MaxMessageSize {
			return c.fail(fmt.Errorf("%w: message exceeds %d bytes", ErrMessageTooBig, c.opts.MaxMessageSize))
		}
		msg = append(msg, f.Payload...)
		if !f.Fin {
			continue
		}

		inMessage = false
		if err := c.deliver(msgOp, msg, compressed); err != nil {
			return c.fail(err)
		}
		msg = nil
	}
}

func (c *Conn) deliver(op Opcode, data []byte, compressed bool) error {
	if compressed {
		inflated, err := compress.InflateMessage(data, c.opts.MaxMessageSize)
		if errors.Is(err, compress.ErrTooLarge) {
			return fmt.Errorf("%w: inflated message exceeds %d bytes", ErrMessageTooBig, c.opts.MaxMessageSize)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		data = inflated
	}
	if op == OpText && !utf8.Valid(data) {
		return fmt.Errorf("%w: text message is not valid UTF-8", ErrInvalidPayload)
	}
	// Nothing reaches the application once a close is under way.
	if c.closing.Load() {
		return nil
	}

	logging.LogWebSocketMessage(c.RemoteAddr(), "received", byte(op), data)
	if op == OpText {
		c.handler.OnText(c, string(data))
	} else {
		c.handler.OnBinary(c, data)
	}
	return nil
}

// peerClosed answers a close frame and reports the peer's status.
func (c *Conn) peerClosed(payload []byte) error {
	code, reason := CloseNoStatus, ""
	switch {
	case len(payload) == 1:
		return c.fail(fmt.Errorf("%w: one-byte close payload", ErrProtocol))
	case len(payload) >= 2:
		code = int(binary.BigEndian.Uint16(payload))
		if !validCloseCode(code) {
			return c.fail(fmt.Errorf("%w: close code %d", ErrProtocol, code))
		}
		if !utf8.Valid(payload[2:]) {
			return c.fail(fmt.Errorf("%w: close reason is not valid UTF-8", ErrInvalidPayload))
		}
		reason = string(payload[2:])
	}
	// Echo the status; ErrClosed means we started the close ourselves.
	_ = c.sendClose(code, "")
	return &CloseError{Code: code, Reason: reason}
}

// fail closes the connection because of a local error.
func (c *Conn) fail(err error) error {
	code := closeCodeFor(err)
	logging.Error("WebSocket protocol failure",
		zap.String("conn_id", c.conn.ID),
		zap.String("remote_addr", c.RemoteAddr()),
		zap.Int("code", code),
		zap.Error(err),
	)
	_ = c.sendClose(code, "")
	return &CloseError{Code: code, Err: err}
}

// SendText sends a complete text message.
func (c *Conn) SendText(msg string) error {
	return c.sendData(OpText, []byte(msg), true)
}

// SendBinary sends a complete binary message.
func (c *Conn) SendBinary(data []byte) error {
	return c.sendData(OpBinary, data, true)
}

// SendTextFragment sends part of a text message; fin marks the last part.
// Fragments are never compressed.
func (c *Conn) SendTextFragment(msg string, fin bool) error {
	return c.sendData(OpText, []byte(msg), fin)
}

// SendBinaryFragment sends part of a binary message; fin marks the last
// part.
func (c *Conn) SendBinaryFragment(data []byte, fin bool) error {
	return c.sendData(OpBinary, data, fin)
}

// SendPing sends a ping; the engine answers incoming pings itself.
func (c *Conn) SendPing(data []byte) error {
	return c.sendControl(OpPing, data)
}

// SendPong sends an unsolicited pong.
func (c *Conn) SendPong(data []byte) error {
	return c.sendControl(OpPong, data)
}

// SendClose starts the close handshake. Incoming messages are discarded
// from now on; the connection is released when the peer answers or after a
// short timeout.
func (c *Conn) SendClose(code int, reason string) error {
	if !validCloseCode(code) {
		return fmt.Errorf("websocket: invalid close code %d", code)
	}
	if err := c.sendClose(code, reason); err != nil {
		return err
	}
	return c.conn.SetReadDeadline(time.Now().Add(closeTimeout))
}

// Close starts the close handshake with status 1001 (going away).
func (c *Conn) Close() error {
	return c.SendClose(CloseGoingAway, "")
}

func (c *Conn) sendData(op Opcode, payload []byte, fin bool) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closeSent {
		return ErrClosed
	}

	frameOp := op
	if c.fragmenting {
		if op != c.fragOp {
			return fmt.Errorf("websocket: %s fragment while a %s message is open", op, c.fragOp)
		}
		frameOp = OpContinuation
	}

	wire, rsv1 := payload, false
	if c.deflate && fin && !c.fragmenting && len(payload) > 0 {
		z, err := compress.DeflateMessage(payload)
		if err != nil {
			return err
		}
		wire, rsv1 = z, true
	}

	if err := c.writeFrame(fin, frameOp, rsv1, wire); err != nil {
		return err
	}
	c.fragmenting = !fin
	c.fragOp = op
	logging.LogWebSocketMessage(c.RemoteAddr(), "sent", byte(op), payload)
	return nil
}

func (c *Conn) sendControl(op Opcode, payload []byte) error {
	if len(payload) > maxControlPayload {
		return fmt.Errorf("%w: %s payload of %d bytes", ErrProtocol, op, len(payload))
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closeSent {
		return ErrClosed
	}
	return c.writeFrame(true, op, false, payload)
}

// sendClose writes the close frame once. CloseNoStatus sends an empty
// payload.
func (c *Conn) sendClose(code int, reason string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closeSent {
		return ErrClosed
	}
	c.closeSent = true
	c.closing.Store(true)

	var payload []byte
	if code != CloseNoStatus {
		if len(reason) > maxCloseReason {
			reason = reason[:maxCloseReason]
		}
		payload = binary.BigEndian.AppendUint16(nil, uint16(code))
		payload = append(payload, reason...)
	}
	return c.writeFrame(true, OpClose, false, payload)
}

// writeFrame must be called with wmu held.
func (c *Conn) writeFrame(fin bool, op Opcode, rsv1 bool, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(AppendFrame(nil, fin, op, rsv1, payload)); err != nil {
		return fmt.Errorf("write %s frame: %w", op, err)
	}
	return nil
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.SendPing(nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) release() {
	c.closeOnce.Do(func() {
		_ = c.conn.Release()
		close(c.done)
		logging.LogConnection(c.conn.ID, c.RemoteAddr(), "websocket_closed")
	})
}
