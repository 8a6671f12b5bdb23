// Package container decodes the audio containers accepted for upload: MP3
// with ID3 tags, raw AAC (ADTS), FLAC, Ogg Vorbis and Opus, MP4/M4A and WAV.
//
// Parse sniffs the container from its leading bytes and returns a Container
// exposing raw tags, embedded pictures and stream properties. Parsing never
// panics on malformed input; structures that fail bounds checks are dropped.
// Mapping raw tags onto the metadata document lives in package tags.
package container
