package logging

import (
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "NAVAJO_LOG_LEVEL"

// Initialize creates a new console logger with the specified level.
// If level is empty, it checks NAVAJO_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return InitializeWithFormat(level, "console")
}

// InitializeWithFormat is Initialize with an explicit encoding,
// "console" (human-readable) or "json".
func InitializeWithFormat(level, format string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		SetLogger(zap.NewNop())
		return nil
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	switch format {
	case "json":
		config.Encoding = "json"
		config.EncoderConfig = zap.NewProductionEncoderConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "", "console":
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	default:
		return fmt.Errorf("unsupported log format: %s (use 'console' or 'json')", format)
	}

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l)

	return nil
}

// SetLogger replaces the global logger. Applications embedding the server
// use it to route engine logs into their own zap core.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		// Silent until someone initializes logging
		return zap.NewNop()
	}
	return l
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogConnection logs a connection event
func LogConnection(connID, remoteAddr, event string) {
	Info("Connection event",
		zap.String("conn_id", connID),
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogTLSHandshake logs TLS handshake details
func LogTLSHandshake(remoteAddr string, version uint16, cipherSuite uint16, serverName, peerDN string) {
	Info("TLS handshake completed",
		zap.String("remote_addr", remoteAddr),
		zap.String("tls_version", tls.VersionName(version)),
		zap.String("cipher_suite", tls.CipherSuiteName(cipherSuite)),
		zap.String("server_name", serverName),
		zap.String("peer_dn", peerDN),
	)
}

// LogHTTPRequest logs an HTTP request
func LogHTTPRequest(remoteAddr, method, url, username string) {
	Debug("HTTP request received",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("url", url),
		zap.String("user", username),
	)
}

// LogHTTPResponse logs an HTTP response
func LogHTTPResponse(remoteAddr string, statusCode int, length int, keepAlive bool) {
	Debug("HTTP response sent",
		zap.String("remote_addr", remoteAddr),
		zap.Int("status_code", statusCode),
		zap.Int("length", length),
		zap.Bool("keep_alive", keepAlive),
	)
}

// LogWebSocketMessage logs a WebSocket message
func LogWebSocketMessage(remoteAddr string, direction string, opcode byte, data []byte) {
	log := GetLogger()
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return
	}

	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("message_type", wsOpcodeName(opcode)),
		zap.Int("length", len(data)),
	}

	if opcode == 0x1 {
		fields = append(fields, zap.String("content", truncate(string(data))))
	} else {
		fields = append(fields, zap.String("hex_dump", hexDump(data)))
	}

	log.Debug("WebSocket message", fields...)
}

// LogRawBytes logs raw bytes (useful for debugging protocol issues)
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func wsOpcodeName(opcode byte) string {
	switch opcode {
	case 0x0:
		return "continuation"
	case 0x1:
		return "text"
	case 0x2:
		return "binary"
	case 0x8:
		return "close"
	case 0x9:
		return "ping"
	case 0xA:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", opcode)
	}
}

const dumpLimit = 256

func truncate(s string) string {
	if len(s) > dumpLimit {
		return s[:dumpLimit] + "..."
	}
	return s
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > dumpLimit {
		return hex.EncodeToString(data[:dumpLimit]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > dumpLimit {
		data = data[:dumpLimit]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
