// Package config loads, normalizes, and validates pagecapture configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PAGECAPTURE_OPERATOR. The Config type centralizes every knob the daemon
// needs: the watched hot folder, the staging area and its capacity/retention
// limits, the digest algorithm, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
