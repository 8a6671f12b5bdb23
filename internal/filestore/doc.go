// Package filestore owns the on-disk layout of stored assets.
//
// Audio lives under <root>/audio and covers plus thumbnails under
// <root>/cover. Primary names are "<owner>_<uuid><ext>"; derived names are
// computed deterministically ("<audio>_cover.jpg",
// "<cover>_thumb_<size>.webp") so cascading deletes never need to glob.
// Writes go through a temporary file and a rename, so a failed save never
// leaves a half-written asset under its final name.
package filestore
