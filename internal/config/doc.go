// Package config loads, normalizes, and validates control client configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SCHEINICAM_URL environment
// override. The Config type centralizes the backend URL, the fixed request
// timeout, state directories and watcher intervals so the CLI and the
// containers discover everything in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
