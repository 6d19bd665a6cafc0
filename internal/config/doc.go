// Package config defines the typed deployment record all generated artifacts
// are rendered from, and helpers to load, validate and save optional YAML
// overrides for it.
package config
