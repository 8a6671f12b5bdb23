// Package stream serves stored audio over HTTP with byte-range support.
//
// A request without a Range header receives the whole file (200). A range
// request receives 206 with Content-Range and exactly the requested slice,
// read forward in fixed-size chunks. Malformed headers are clamped rather
// than rejected; only a range that falls entirely past the end yields 416.
package stream
