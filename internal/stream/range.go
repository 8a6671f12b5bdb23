package stream

import (
	"strconv"
	"strings"
)

// Range is an inclusive byte interval within a file.
type Range struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in r.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ParseRange interprets a "bytes=<start>-<end>" header against a file of
// size bytes. It never fails: a missing or unparseable start becomes 0, a
// missing or unparseable end becomes size-1, and both bounds are clamped to
// the file. Only the first range of a multi-range header is used. The bool
// reports whether the clamped range still contains at least one byte.
func ParseRange(header string, size int64) (Range, bool) {
	spec := strings.TrimSpace(header)
	if len(spec) >= 6 && strings.EqualFold(spec[:6], "bytes=") {
		spec = spec[6:]
	}
	spec, _, _ = strings.Cut(spec, ",")
	startText, endText, _ := strings.Cut(spec, "-")

	r := Range{Start: 0, End: size - 1}
	if n, err := strconv.ParseInt(strings.TrimSpace(startText), 10, 64); err == nil {
		r.Start = n
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(endText), 10, 64); err == nil {
		r.End = n
	}
	r.Start = max(r.Start, 0)
	r.End = min(r.End, size-1)
	return r, r.Start <= r.End
}
