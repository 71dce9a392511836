package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestAppendSeverityMapping(t *testing.T) {
	tests := []struct {
		severity Severity
		want     zapcore.Level
	}{
		{SeverityDebug, zapcore.DebugLevel},
		{SeverityInfo, zapcore.InfoLevel},
		{SeverityWarning, zapcore.WarnLevel},
		{SeverityAlert, zapcore.WarnLevel},
		{SeverityError, zapcore.ErrorLevel},
		{SeverityFatal, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			logs := observe(t, zapcore.DebugLevel)
			Append(tt.severity, "event", "some details")

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d entries, want 1", len(entries))
			}
			if entries[0].Level != tt.want {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.want)
			}
			ctx := entries[0].ContextMap()
			if ctx["severity"] != tt.severity.String() {
				t.Errorf("severity field = %v, want %v", ctx["severity"], tt.severity.String())
			}
			if ctx["details"] != "some details" {
				t.Errorf("details field = %v, want 'some details'", ctx["details"])
			}
		})
	}
}

func TestAppendBelowLevelIsDropped(t *testing.T) {
	logs := observe(t, zapcore.WarnLevel)
	Append(SeverityInfo, "quiet", "")
	if logs.Len() != 0 {
		t.Errorf("got %d entries, want 0", logs.Len())
	}
}

func TestAppendUniq(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)
	ResetUniq()
	t.Cleanup(ResetUniq)

	AppendUniq(SeverityWarning, "PAM unsupported", "")
	AppendUniq(SeverityWarning, "PAM unsupported", "")
	AppendUniq(SeverityWarning, "PAM unsupported", "other")

	if logs.Len() != 2 {
		t.Errorf("got %d entries, want 2", logs.Len())
	}
}

func TestInitializeSilentWithoutLevel(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { SetLogger(nil) })
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestInitializeRejectsUnknownFormat(t *testing.T) {
	if err := InitializeWithFormat("info", "xml"); err == nil {
		t.Error("InitializeWithFormat() with format xml should fail")
	}
}

func TestAsciiDump(t *testing.T) {
	got := asciiDump([]byte{'G', 'E', 'T', 0x00, '\n'})
	if got != "GET.." {
		t.Errorf("asciiDump() = %q, want %q", got, "GET..")
	}
}
