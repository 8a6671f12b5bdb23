package container

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	id3HeaderSize     = 10
	id3FlagUnsync     = 0x80
	id3FlagExtended   = 0x40
	id3FlagFooter     = 0x10
	maxInflatedFrame  = 64 << 20
	id3v1TrailerBytes = 128
)

// id3Tag is the decoded content of an ID3v2 tag.
type id3Tag struct {
	tags     Tags
	pictures []Picture
	length   time.Duration
}

// v2.2 frame ids that have a v2.3 equivalent. Unmapped v2.2 frames are dropped.
var id3v22Frames = map[string]string{
	"TT1": "TIT1", "TT2": "TIT2", "TT3": "TIT3",
	"TP1": "TPE1", "TP2": "TPE2", "TP3": "TPE3", "TP4": "TPE4",
	"TAL": "TALB", "TYE": "TYER", "TCO": "TCON", "TCM": "TCOM",
	"TRK": "TRCK", "TPA": "TPOS", "TBP": "TBPM", "TKE": "TKEY",
	"TPB": "TPUB", "TRC": "TSRC", "TLE": "TLEN", "TEN": "TENC",
	"TSS": "TSSE", "TXX": "TXXX", "COM": "COMM", "ULT": "USLT",
	"PIC": "APIC", "POP": "POPM",
}

// parseID3v2 decodes the ID3v2 tag at the start of data and returns it with
// the number of bytes the tag occupies. A tag with an unknown major version
// is skipped: the byte count is still returned but the tag is nil.
func parseID3v2(data []byte) (*id3Tag, int) {
	if len(data) < id3HeaderSize || string(data[:3]) != "ID3" {
		return nil, 0
	}
	major, flags := data[3], data[5]
	size := syncsafe(data[6:10])
	total := id3HeaderSize + size
	if flags&id3FlagFooter != 0 {
		total += id3HeaderSize
	}
	if major < 2 || major > 4 {
		return nil, total
	}

	end := min(id3HeaderSize+size, len(data))
	body := data[id3HeaderSize:end]
	if flags&id3FlagUnsync != 0 && major < 4 {
		body = removeUnsync(body)
	}
	if flags&id3FlagExtended != 0 {
		switch major {
		case 2:
			// v2.2 uses this bit for whole-tag compression, which has no defined scheme.
			return nil, total
		case 3:
			if len(body) < 4 {
				return nil, total
			}
			skip := 4 + int(uint32(body[0])<<24|uint32(body[1])<<16|uint32(body[2])<<8|uint32(body[3]))
			body = body[min(skip, len(body)):]
		case 4:
			skip := syncsafe(body)
			body = body[min(skip, len(body)):]
		}
	}

	tag := &id3Tag{tags: Tags{}}
	tag.readFrames(body, major, flags&id3FlagUnsync != 0)
	if _, ok := tag.tags["TDRC"]; !ok {
		if year, ok := tag.tags.First("TYER"); ok {
			tag.tags["TDRC"] = []string{year}
		}
	}
	if ms, ok := tag.tags.First("TLEN"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(ms), 10, 64); err == nil && n > 0 {
			tag.length = time.Duration(n) * time.Millisecond
		}
	}
	return tag, total
}

func (t *id3Tag) readFrames(body []byte, major byte, tagUnsync bool) {
	r := newReader(body)
	for r.remaining() > 0 && r.err == nil {
		var id string
		var size int
		var frameFlags uint16
		if major == 2 {
			if r.remaining() < 6 {
				return
			}
			id = string(r.take(3))
			size = int(r.u24be())
		} else {
			if r.remaining() < 10 {
				return
			}
			id = string(r.take(4))
			raw := r.take(4)
			if major == 4 {
				size = syncsafe(raw)
			} else {
				size = int(uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]))
			}
			frameFlags = r.u16be()
		}
		if !validFrameID(id) {
			return
		}
		payload := r.take(size)
		if r.err != nil {
			return
		}
		if major == 2 {
			mapped, ok := id3v22Frames[id]
			if !ok {
				continue
			}
			if id == "PIC" {
				t.readPIC(payload)
				continue
			}
			id = mapped
		}
		payload, ok := unwrapFrame(payload, major, frameFlags, tagUnsync)
		if !ok {
			continue
		}
		t.readFrame(id, payload)
	}
}

func validFrameID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// unwrapFrame strips per-frame grouping, encryption and length prefixes and
// undoes unsynchronisation and compression. Encrypted frames are rejected.
func unwrapFrame(payload []byte, major byte, flags uint16, tagUnsync bool) ([]byte, bool) {
	format := byte(flags)
	var compressed, encrypted, grouped, unsync, lengthIndicator bool
	switch major {
	case 3:
		compressed = format&0x80 != 0
		encrypted = format&0x40 != 0
		grouped = format&0x20 != 0
	case 4:
		grouped = format&0x40 != 0
		compressed = format&0x08 != 0
		encrypted = format&0x04 != 0
		unsync = format&0x02 != 0 || tagUnsync
		lengthIndicator = format&0x01 != 0
	}
	if encrypted {
		return nil, false
	}
	r := newReader(payload)
	if major == 3 && compressed {
		r.skip(4)
	}
	if grouped {
		r.skip(1)
	}
	if lengthIndicator {
		r.skip(4)
	}
	body := r.rest()
	if r.err != nil {
		return nil, false
	}
	if unsync {
		body = removeUnsync(body)
	}
	if compressed {
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false
		}
		defer zr.Close()
		inflated, err := io.ReadAll(io.LimitReader(zr, maxInflatedFrame))
		if err != nil {
			return nil, false
		}
		body = inflated
	}
	return body, true
}

func removeUnsync(b []byte) []byte {
	if !bytes.Contains(b, []byte{0xff, 0x00}) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		out = append(out, b[i])
		if b[i] == 0xff && i+1 < len(b) && b[i+1] == 0x00 {
			i++
		}
	}
	return out
}

func (t *id3Tag) readFrame(id string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	switch {
	case id == "TXXX":
		enc := payload[0]
		desc, rest := splitTerminated(enc, payload[1:])
		key := "TXXX:" + strings.ToUpper(strings.TrimSpace(decodeText(enc, desc)))
		t.tags.add(key, splitValues(enc, rest)...)
	case id == "TCON":
		enc := payload[0]
		for _, v := range splitValues(enc, payload[1:]) {
			t.tags.add("TCON", expandGenre(v)...)
		}
	case strings.HasPrefix(id, "T"):
		enc := payload[0]
		t.tags.add(id, splitValues(enc, payload[1:])...)
	case id == "COMM" || id == "USLT":
		if len(payload) < 4 {
			return
		}
		enc := payload[0]
		desc, rest := splitTerminated(enc, payload[4:])
		text := decodeText(enc, rest)
		label := strings.ToUpper(strings.TrimSpace(decodeText(enc, desc)))
		if label == "" {
			t.tags.add(id, text)
		} else {
			t.tags.add(id+":"+label, text)
		}
	case id == "APIC":
		enc := payload[0]
		mime, rest := splitTerminated(0, payload[1:])
		if len(rest) < 1 {
			return
		}
		picType := int(rest[0])
		desc, data := splitTerminated(enc, rest[1:])
		t.addPicture(decodeText(0, mime), picType, decodeText(enc, desc), data)
	case id == "POPM":
		_, rest := splitTerminated(0, payload)
		if len(rest) > 0 {
			t.tags.add("POPM", strconv.Itoa(int(rest[0])))
		}
	}
}

func (t *id3Tag) readPIC(payload []byte) {
	if len(payload) < 5 {
		return
	}
	enc := payload[0]
	format := strings.ToUpper(string(payload[1:4]))
	picType := int(payload[4])
	desc, data := splitTerminated(enc, payload[5:])
	mime := "image/" + strings.ToLower(format)
	switch format {
	case "JPG":
		mime = "image/jpeg"
	case "PNG":
		mime = "image/png"
	}
	t.addPicture(mime, picType, decodeText(enc, desc), data)
}

func (t *id3Tag) addPicture(mime string, picType int, desc string, data []byte) {
	if len(data) == 0 {
		return
	}
	t.pictures = append(t.pictures, Picture{
		Source:      SourceID3,
		MIME:        strings.ToLower(strings.TrimSpace(mime)),
		Type:        picType,
		Description: desc,
		Data:        data,
	})
}

// splitTerminated splits b at the first string terminator for enc: one zero
// byte for single-byte encodings, an aligned zero pair for UTF-16.
func splitTerminated(enc byte, b []byte) ([]byte, []byte) {
	if enc == 1 || enc == 2 {
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return b[:i], b[i+2:]
			}
		}
		return b, nil
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i], b[i+1:]
	}
	return b, nil
}

func splitValues(enc byte, b []byte) []string {
	var out []string
	for len(b) > 0 {
		var part []byte
		part, b = splitTerminated(enc, b)
		if v := decodeText(enc, part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func decodeText(enc byte, b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var dec *encoding.Decoder
	switch enc {
	case 0:
		dec = charmap.ISO8859_1.NewDecoder()
	case 1:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case 2:
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		return strings.TrimRight(strings.ToValidUTF8(string(b), "�"), "\x00")
	}
	out, err := dec.Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

var genreRef = regexp.MustCompile(`^\((\d+|RX|CR)\)(.*)$`)

// expandGenre resolves ID3v1 genre references such as "(17)", "17",
// "(17)Rock" and the "(RX)"/"(CR)" keywords into genre names.
func expandGenre(v string) []string {
	v = strings.TrimSpace(v)
	if m := genreRef.FindStringSubmatch(v); m != nil {
		if refinement := strings.TrimSpace(m[2]); refinement != "" {
			return []string{refinement}
		}
		return []string{genreName(m[1])}
	}
	return []string{genreName(v)}
}

func genreName(ref string) string {
	switch ref {
	case "RX":
		return "Remix"
	case "CR":
		return "Cover"
	}
	n, err := strconv.Atoi(ref)
	if err != nil || n < 0 || n >= len(id3v1Genres) {
		return ref
	}
	return id3v1Genres[n]
}

var id3v1Genres = [...]string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient",
	"Trip-Hop", "Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical",
	"Instrumental", "Acid", "House", "Game", "Sound Clip", "Gospel", "Noise",
	"AlternRock", "Bass", "Soul", "Punk", "Space", "Meditative",
	"Instrumental Pop", "Instrumental Rock", "Ethnic", "Gothic", "Darkwave",
	"Techno-Industrial", "Electronic", "Pop-Folk", "Eurodance", "Dream",
	"Southern Rock", "Comedy", "Cult", "Gangsta", "Top 40", "Christian Rap",
	"Pop/Funk", "Jungle", "Native American", "Cabaret", "New Wave",
	"Psychedelic", "Rave", "Showtunes", "Trailer", "Lo-Fi", "Tribal",
	"Acid Punk", "Acid Jazz", "Polka", "Retro", "Musical", "Rock & Roll",
	"Hard Rock",
}

func hasID3v1(data []byte) bool {
	return len(data) >= id3v1TrailerBytes && string(data[len(data)-id3v1TrailerBytes:len(data)-id3v1TrailerBytes+3]) == "TAG"
}

// readID3v1 maps a trailing ID3v1 tag onto ID3v2 frame ids.
func readID3v1(data []byte) Tags {
	out := Tags{}
	if !hasID3v1(data) {
		return out
	}
	md, err := tag.ReadID3v1Tags(bytes.NewReader(data))
	if err != nil {
		return out
	}
	out.add("TIT2", strings.TrimSpace(md.Title()))
	out.add("TPE1", strings.TrimSpace(md.Artist()))
	out.add("TALB", strings.TrimSpace(md.Album()))
	out.add("TCON", strings.TrimSpace(md.Genre()))
	out.add("COMM", strings.TrimSpace(md.Comment()))
	if year := md.Year(); year > 0 {
		out.add("TDRC", strconv.Itoa(year))
	}
	if track, _ := md.Track(); track > 0 {
		out.add("TRCK", strconv.Itoa(track))
	}
	return out
}
