// Package config loads the server's YAML configuration file and exposes it
// as an immutable typed snapshot. The file is mandatory: a missing file or a
// missing required key is a startup-fatal error surfaced before the listener
// binds. CLI flags and environment variables can override selected values
// with precedence: CLI flags > YAML config > Environment variables.
package config
