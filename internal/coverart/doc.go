// Package coverart finds the image embedded in an uploaded audio file.
package coverart
