package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/mingodad/libnavajo/internal/version.Version=v1.2.3 \
//	                   -X github.com/mingodad/libnavajo/internal/version.Commit=abc123"
//
// Otherwise they come from the VCS stamp in the build info, or fall back to
// "dev" with a timestamp.
var (
	// Version is the semantic version of the server
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

// Product is the name sent in the Server header.
const Product = "libnavajo"

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			Version, Commit = fromSettings(Version, Commit, info.Settings)
		}
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings fills the empty values from the vcs.* build settings.
func fromSettings(version, commit string, settings []debug.BuildSetting) (string, string) {
	var revision, modified, vcsTime string
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if commit == "" && revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	// Build info carries no tags, so the best is a dated dev version.
	if version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// ServerName returns the default Server header value.
func ServerName() string {
	return Product + "/" + Version
}
