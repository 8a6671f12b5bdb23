// Package main hosts the audiovault CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the HTTP daemon in the foreground, reports
// preflight and daemon status, and offers offline maintenance against the
// same storage root and catalog: ingesting files for an owner, listing and
// deleting assets, adjusting quotas, and inspecting a local file's tags.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
