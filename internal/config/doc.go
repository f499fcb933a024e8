// Package config loads, normalizes, and validates stlpipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file that sits next to the
// config, and honours environment fallbacks such as STLPIPE_TELEGRAM_TOKEN.
// The Config type centralizes every knob the watch daemon and the process
// command need, so output/scratch directories, classification rules, and
// Google Drive credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical extension lists, and clear validation errors.
package config
