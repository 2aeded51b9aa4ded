// Package config loads and validates the wa-relay TOML configuration,
// expanding ${VAR} environment references before parsing.
package config
