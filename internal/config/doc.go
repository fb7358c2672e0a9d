// Package config loads, normalizes, and validates sketchforge configuration.
//
// It locates the TOML file (explicit path, user config directory, or project
// file), applies defaults, expands user paths, falls back to environment
// variables for the service URL, and exposes helpers that translate settings
// into the client and payload types the pipeline consumes. The package also
// ships a sample configuration for `sketchforge config init`.
package config
