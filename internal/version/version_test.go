package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-03-04T10:11:12Z"},
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{"from vcs", "", "", settings, "dev-20260304", "0123456-dirty"},
		{"ldflags win", "v1.2.3", "abc", settings, "v1.2.3", "abc"},
		{"short revision", "", "", []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}, "", "abc"},
		{"bad time", "", "", []debug.BuildSetting{{Key: "vcs.time", Value: "yesterday"}}, "", ""},
		{"no settings", "", "", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := fromSettings(tt.version, tt.commit, tt.settings)
			if v != tt.wantVersion {
				t.Errorf("version = %v, want %v", v, tt.wantVersion)
			}
			if c != tt.wantCommit {
				t.Errorf("commit = %v, want %v", c, tt.wantCommit)
			}
		})
	}
}

func TestInitFillsValues(t *testing.T) {
	if Version == "" || Commit == "" {
		t.Errorf("Version = %q, Commit = %q, want both set", Version, Commit)
	}
	if !strings.Contains(Full(), Commit) {
		t.Errorf("Full() = %q, want it to contain %q", Full(), Commit)
	}
	if got := ServerName(); got != Product+"/"+Version {
		t.Errorf("ServerName() = %v, want %v", got, Product+"/"+Version)
	}
}
