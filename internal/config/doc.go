// Package config loads, normalizes, and validates pulpit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type centralizes every knob the daemon and
// CLI need: acquisition limits, quality policy, segmenter bounds, theme
// dictionary location, cache backend, broadcaster timing, and LLM backends.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
