// Package config loads and validates the worker configuration from a YAML
// file, layered over built-in defaults.
package config
