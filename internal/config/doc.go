// Package config loads, normalizes, and validates bindery configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates the encoding profile, analysis
// thresholds, and image settings in one pass. Always obtain settings through
// this package so downstream code receives sanitized paths and clear
// validation errors.
package config
