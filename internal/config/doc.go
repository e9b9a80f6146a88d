// Package config loads, validates, and normalizes the TOML configuration for
// the podscrub daemon and CLI.
package config
