package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity is the severity of an event handed to the log sink.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityAlert
	SeverityError
	SeverityFatal
)

// String returns the upper-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityAlert:
		return "ALERT"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// zapLevel maps a severity onto the closest zap level. Fatal is logged at
// error level: the sink never terminates the process.
func (s Severity) zapLevel() zapcore.Level {
	switch s {
	case SeverityDebug:
		return zapcore.DebugLevel
	case SeverityInfo:
		return zapcore.InfoLevel
	case SeverityWarning, SeverityAlert:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Append records one event. details is optional free-form context.
func Append(severity Severity, msg, details string) {
	log := GetLogger()
	ce := log.Check(severity.zapLevel(), msg)
	if ce == nil {
		return
	}
	fields := []zap.Field{zap.String("severity", severity.String())}
	if details != "" {
		fields = append(fields, zap.String("details", details))
	}
	ce.Write(fields...)
}

var (
	uniqMu   sync.Mutex
	uniqSeen = make(map[string]struct{})
)

// AppendUniq is Append, but a given msg+details pair is only recorded once
// until ResetUniq is called.
func AppendUniq(severity Severity, msg, details string) {
	key := msg + "\x00" + details
	uniqMu.Lock()
	_, seen := uniqSeen[key]
	if !seen {
		uniqSeen[key] = struct{}{}
	}
	uniqMu.Unlock()

	if !seen {
		Append(severity, msg, details)
	}
}

// ResetUniq forgets every event recorded by AppendUniq.
func ResetUniq() {
	uniqMu.Lock()
	uniqSeen = make(map[string]struct{})
	uniqMu.Unlock()
}
