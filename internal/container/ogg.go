package container

import (
	"bytes"
	"time"
)

const opusGranuleRate = 48000

type oggFile struct{ base }

func (*oggFile) Kind() Kind { return KindOgg }

type oggPage struct {
	headerType byte
	granule    int64
	serial     uint32
	segments   []byte
	data       []byte
}

// readOggPage decodes the page at the start of b and returns it with the
// number of bytes consumed.
func readOggPage(b []byte) (oggPage, int, bool) {
	r := newReader(b)
	if string(r.take(4)) != "OggS" {
		return oggPage{}, 0, false
	}
	r.skip(1)
	var p oggPage
	p.headerType = r.u8()
	p.granule = int64(r.u64le())
	p.serial = r.u32le()
	r.skip(8)
	p.segments = r.take(int(r.u8()))
	total := 0
	for _, s := range p.segments {
		total += int(s)
	}
	p.data = r.take(total)
	if r.err != nil {
		return oggPage{}, 0, false
	}
	return p, r.off, true
}

func parseOgg(body []byte) *oggFile {
	f := &oggFile{newBase()}

	var (
		serial      uint32
		haveSerial  bool
		packets     [][]byte
		partial     []byte
		lastGranule int64 = -1
	)
	for off := 0; off < len(body); {
		page, n, ok := readOggPage(body[off:])
		if !ok {
			next := bytes.Index(body[off+1:], []byte("OggS"))
			if next < 0 {
				break
			}
			off += next + 1
			continue
		}
		off += n
		if !haveSerial {
			serial, haveSerial = page.serial, true
		}
		if page.serial != serial {
			continue
		}
		if page.granule >= 0 {
			lastGranule = page.granule
		}
		if len(packets) >= 2 {
			continue
		}
		pos := 0
		for _, seg := range page.segments {
			partial = append(partial, page.data[pos:pos+int(seg)]...)
			pos += int(seg)
			if seg < 255 {
				packets = append(packets, partial)
				partial = nil
				if len(packets) >= 2 {
					break
				}
			}
		}
	}
	if len(packets) == 0 {
		return f
	}

	var preSkip int64
	head := packets[0]
	switch {
	case bytes.HasPrefix(head, []byte("\x01vorbis")):
		r := newReader(head[7:])
		r.skip(4)
		f.stream.Codec = "vorbis"
		f.stream.Channels = int(r.u8())
		f.stream.SampleRate = int(r.u32le())
		r.skip(4)
		if nominal := int32(r.u32le()); r.err == nil && nominal > 0 {
			f.stream.Bitrate = int(nominal)
		}
	case bytes.HasPrefix(head, []byte("OpusHead")):
		r := newReader(head[8:])
		r.skip(1)
		f.stream.Codec = "opus"
		f.stream.Channels = int(r.u8())
		preSkip = int64(r.u16le())
		f.stream.SampleRate = opusGranuleRate
	default:
		return f
	}

	if len(packets) > 1 {
		comment := packets[1]
		var block []byte
		switch {
		case bytes.HasPrefix(comment, []byte("\x03vorbis")):
			block = comment[7:]
		case bytes.HasPrefix(comment, []byte("OpusTags")):
			block = comment[8:]
		}
		if tags, vendor, ok := parseVorbisComment(block); ok {
			f.tags = tags
			f.stream.Encoder = vendor
		}
	}

	if lastGranule > preSkip && f.stream.SampleRate > 0 {
		samples := lastGranule - preSkip
		rate := f.stream.SampleRate
		if f.stream.Codec == "opus" {
			rate = opusGranuleRate
		}
		f.stream.Length = time.Duration(float64(samples) / float64(rate) * float64(time.Second))
		if f.stream.Bitrate == 0 && f.stream.Length > 0 {
			f.stream.Bitrate = int(float64(len(body)) * 8 / f.stream.Length.Seconds())
		}
	}
	return f
}
