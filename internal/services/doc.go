// Package services defines shared utilities consumed by the ingest pipeline,
// the extractors, and the HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, owners, and bearer tokens for
//     logging and downstream identity calls.
//   - Structured error markers plus the Wrap helper, so callers classify
//     failures with errors.Is and transports map them to status codes.
//   - Result values and the FirstOK/Accumulate combinators used by
//     best-effort extraction, where one failed sub-step must never abort the
//     others.
package services
