package container

import (
	"encoding/binary"
	"strconv"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const maxAtomDepth = 12

// MP4 "data" atom well-known value types.
const (
	mp4TypeImplicit = 0
	mp4TypeUTF8     = 1
	mp4TypeUTF16    = 2
	mp4TypeJPEG     = 13
	mp4TypePNG      = 14
	mp4TypeSigned   = 21
	mp4TypeUnsigned = 22
	mp4TypeBMP      = 27
)

type mp4File struct{ base }

func (*mp4File) Kind() Kind { return KindMP4 }

type atom struct {
	name    string
	payload []byte
}

// atoms splits b into consecutive atoms. A truncated or oversized atom ends
// the walk.
func atoms(b []byte) []atom {
	var out []atom
	r := newReader(b)
	for r.remaining() >= 8 {
		size := int(r.u32be())
		name := string(r.take(4))
		header := 8
		switch size {
		case 0:
			size = header + r.remaining()
		case 1:
			size = int(r.u64be())
			header = 16
		}
		if r.err != nil || size < header || size-header > r.remaining() {
			break
		}
		out = append(out, atom{name: name, payload: r.take(size - header)})
	}
	return out
}

func child(b []byte, path ...string) ([]byte, bool) {
	for _, name := range path {
		found := false
		for _, a := range atoms(b) {
			if a.name == name {
				b, found = a.payload, true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return b, true
}

func parseMP4(body []byte) *mp4File {
	f := &mp4File{newBase()}
	moov, ok := child(body, "moov")
	if !ok {
		return f
	}
	f.stream.Codec = "aac"
	if mvhd, ok := child(moov, "mvhd"); ok {
		f.stream.Length = mvhdDuration(mvhd)
	}
	for _, a := range atoms(moov) {
		if a.name == "trak" && f.readTrack(a.payload) {
			break
		}
	}
	meta, ok := child(moov, "udta", "meta")
	if !ok {
		meta, ok = child(moov, "meta")
	}
	if ok {
		if ilst, ok := child(metaChildren(meta), "ilst"); ok {
			f.readItems(ilst)
		}
	}
	if f.stream.Bitrate == 0 && f.stream.Length > 0 {
		if mdat, ok := child(body, "mdat"); ok {
			f.stream.Bitrate = int(float64(len(mdat)) * 8 / f.stream.Length.Seconds())
		}
	}
	return f
}

// metaChildren skips the full-box header of "meta" unless the file uses the
// QuickTime layout, where children start immediately.
func metaChildren(meta []byte) []byte {
	if len(meta) >= 8 && string(meta[4:8]) == "hdlr" {
		return meta
	}
	if len(meta) < 4 {
		return nil
	}
	return meta[4:]
}

func mvhdDuration(mvhd []byte) time.Duration {
	r := newReader(mvhd)
	version := r.u8()
	r.skip(3)
	var timescale uint32
	var duration uint64
	if version == 1 {
		r.skip(16)
		timescale = r.u32be()
		duration = r.u64be()
	} else {
		r.skip(8)
		timescale = r.u32be()
		duration = uint64(r.u32be())
	}
	if r.err != nil || timescale == 0 {
		return 0
	}
	return time.Duration(float64(duration) / float64(timescale) * float64(time.Second))
}

// readTrack fills stream details from a sound track and reports whether trak
// was one.
func (f *mp4File) readTrack(trak []byte) bool {
	mdia, ok := child(trak, "mdia")
	if !ok {
		return false
	}
	hdlr, ok := child(mdia, "hdlr")
	if !ok || len(hdlr) < 12 || string(hdlr[8:12]) != "soun" {
		return false
	}
	stsd, ok := child(mdia, "minf", "stbl", "stsd")
	if !ok || len(stsd) < 8 {
		return true
	}
	entries := atoms(stsd[8:])
	if len(entries) == 0 {
		return true
	}
	entry := entries[0]
	switch entry.name {
	case "mp4a":
		f.stream.Codec = "aac"
	case "alac":
		f.stream.Codec = "alac"
	default:
		f.stream.Codec = entry.name
	}
	r := newReader(entry.payload)
	r.skip(16)
	f.stream.Channels = int(r.u16be())
	f.stream.BitsPerSample = int(r.u16be())
	r.skip(4)
	f.stream.SampleRate = int(r.u32be() >> 16)
	if r.err != nil {
		return true
	}
	if esds, ok := child(r.rest(), "esds"); ok {
		f.stream.Bitrate = esdsAverageBitrate(esds)
	}
	return true
}

// esdsAverageBitrate reads avgBitrate from the DecoderConfigDescriptor.
func esdsAverageBitrate(esds []byte) int {
	r := newReader(esds)
	r.skip(4)
	if r.u8() != 0x03 {
		return 0
	}
	descriptorLength(r)
	r.skip(2)
	flags := r.u8()
	if flags&0x80 != 0 {
		r.skip(2)
	}
	if flags&0x40 != 0 {
		r.skip(int(r.u8()))
	}
	if flags&0x20 != 0 {
		r.skip(2)
	}
	if r.u8() != 0x04 {
		return 0
	}
	descriptorLength(r)
	r.skip(1 + 1 + 3 + 4)
	avg := r.u32be()
	if r.err != nil {
		return 0
	}
	return int(avg)
}

func descriptorLength(r *reader) int {
	n := 0
	for range 4 {
		b := r.u8()
		n = n<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	return n
}

func atomKey(name string) string {
	key, err := charmap.ISO8859_1.NewDecoder().String(name)
	if err != nil {
		return name
	}
	return key
}

func (f *mp4File) readItems(ilst []byte) {
	for _, item := range atoms(ilst) {
		key := atomKey(item.name)
		if key == "----" {
			f.readFreeform(item.payload)
			continue
		}
		for _, a := range atoms(item.payload) {
			if a.name != "data" || len(a.payload) < 8 {
				continue
			}
			dataType := binary.BigEndian.Uint32(a.payload[:4]) & 0x00ffffff
			value := a.payload[8:]
			f.readItemValue(key, dataType, value)
		}
	}
}

func (f *mp4File) readItemValue(key string, dataType uint32, value []byte) {
	switch key {
	case "trkn", "disk":
		r := newReader(value)
		r.skip(2)
		n := r.u16be()
		total := r.u16be()
		if len(value) < 4 || n == 0 {
			return
		}
		s := strconv.Itoa(int(n))
		if total > 0 {
			s += "/" + strconv.Itoa(int(total))
		}
		f.tags.add(key, s)
		return
	case "gnre":
		if n, ok := beInt(value); ok && n > 0 {
			if _, exists := f.tags["©gen"]; !exists {
				f.tags.add("©gen", genreName(strconv.FormatInt(n-1, 10)))
			}
		}
		return
	case "covr":
		if len(value) == 0 {
			return
		}
		mime := ""
		switch dataType {
		case mp4TypeJPEG:
			mime = "image/jpeg"
		case mp4TypePNG:
			mime = "image/png"
		case mp4TypeBMP:
			mime = "image/bmp"
		}
		f.pictures = append(f.pictures, Picture{Source: SourceMP4, MIME: mime, Data: value})
		return
	}
	switch dataType {
	case mp4TypeUTF8:
		f.tags.add(key, string(value))
	case mp4TypeUTF16:
		if s, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(value); err == nil {
			f.tags.add(key, string(s))
		}
	case mp4TypeSigned, mp4TypeUnsigned, mp4TypeImplicit:
		if n, ok := beInt(value); ok {
			if dataType == mp4TypeUnsigned && n < 0 {
				n = int64(beUint(value))
			}
			f.tags.add(key, strconv.FormatInt(n, 10))
		}
	}
}

func (f *mp4File) readFreeform(payload []byte) {
	var mean, name string
	for _, a := range atoms(payload) {
		switch a.name {
		case "mean":
			if len(a.payload) >= 4 {
				mean = string(a.payload[4:])
			}
		case "name":
			if len(a.payload) >= 4 {
				name = string(a.payload[4:])
			}
		case "data":
			if mean == "" || name == "" || len(a.payload) < 8 {
				continue
			}
			dataType := binary.BigEndian.Uint32(a.payload[:4]) & 0x00ffffff
			key := "----:" + mean + ":" + name
			switch dataType {
			case mp4TypeUTF8, mp4TypeImplicit:
				f.tags.add(key, string(a.payload[8:]))
			default:
				f.readItemValue(key, dataType, a.payload[8:])
			}
		}
	}
}

func beInt(b []byte) (int64, bool) {
	switch len(b) {
	case 1:
		return int64(int8(b[0])), true
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b))), true
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b))), true
	case 8:
		return int64(binary.BigEndian.Uint64(b)), true
	}
	return 0, false
}

func beUint(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n
}
