// Package ingest runs uploads through the storage pipeline.
//
// An audio upload is validated, admitted against the owner's quota, written
// to the file store, and then mined for its embedded cover (stored with WebP
// thumbnails) and its tag metadata before the catalog records it. Extraction
// is best-effort: a file with unreadable tags or a broken picture is still
// stored. Deletions go through the same package so the catalog and the file
// store stay in step.
package ingest
