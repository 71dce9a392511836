// Package config loads the navajo-server configuration file.
//
// Values come from, in increasing priority, the built-in defaults, a YAML
// file and NAVAJO_ environment variables. Nested keys are joined with a
// double underscore in variable names:
//
//	NAVAJO_NETWORK__PORT=8443
//	NAVAJO_TLS__ENABLED=true
//	NAVAJO_AUTH__LOGINS=alice:secret,bob:hunter2
//
// # Configuration File Location
//
// Without an explicit path the file is looked up in:
//   - Linux: $XDG_CONFIG_HOME/navajo/config.yaml or $HOME/.config/navajo/config.yaml
//   - macOS: $HOME/.config/navajo/config.yaml
//   - Windows: %LOCALAPPDATA%\navajo\config.yaml
//
// A missing default file is not an error; the defaults apply.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg.ServerConfig(nil))
//
// Save writes atomically (temporary file and rename) with a header comment.
package config
