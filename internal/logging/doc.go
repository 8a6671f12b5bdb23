// Package logging assembles structured slog loggers and formatting helpers used
// across audiovault.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing (including size-based rotation of the log file), and exposes
// context-aware helpers so request handlers automatically tag log lines with
// request IDs and owners. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
