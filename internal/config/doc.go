// Package config loads, normalizes, and validates audiovault configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// AUDIOVAULT_STORAGE_PATH. The Config type centralizes every knob the server
// and CLI need: the storage root, upload allow-lists, thumbnail geometry,
// quota defaults, and the identity service endpoint.
//
// A Config is built once at start-up and passed by pointer into each
// component; nothing mutates it afterwards.
package config
