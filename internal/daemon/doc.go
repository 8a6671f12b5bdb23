// Package daemon coordinates the long-running audiovault process.
//
// It wires configuration, the catalog, the file store, the upload pipeline and
// the HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances sharing one storage root. Preflight checks run before the
// listener opens; a storage root that cannot be written stops start-up.
//
// Keep orchestration logic here: upload and deletion semantics live in
// ingest, routing lives in api, and the daemon focuses on startup, shutdown,
// and status reporting.
package daemon
