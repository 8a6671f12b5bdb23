// Package tags turns the raw tags of a parsed container into the metadata
// document stored with each upload.
//
// Each logical field has a fixed, ordered list of native keys; the first one
// present with a non-empty value wins. Extraction is best-effort throughout
// and an unreadable file produces an empty document rather than an error.
package tags
