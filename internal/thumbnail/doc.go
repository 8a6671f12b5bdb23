// Package thumbnail renders square WebP thumbnails from cover images.
//
// Every thumbnail is exactly side×side pixels: the cover is flattened onto
// white, shrunk to fit if needed, and letterboxed in the centre.
package thumbnail
