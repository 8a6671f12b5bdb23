package container

import (
	"bytes"
	"errors"
	"strings"
	"time"
)

// Kind identifies a supported audio container.
type Kind string

const (
	KindMP3  Kind = "mp3"
	KindAAC  Kind = "aac"
	KindFLAC Kind = "flac"
	KindOgg  Kind = "ogg"
	KindMP4  Kind = "mp4"
	KindWAV  Kind = "wav"
)

// ErrUnsupported is returned by Parse when no container signature matches.
var ErrUnsupported = errors.New("unsupported or unrecognized audio container")

// Tags holds raw tag values keyed by their native container key: ID3 frame
// ids ("TIT2", "TXXX:BPM", "COMM"), upper-cased Vorbis field names, or MP4
// atom names ("©nam", "----:com.apple.iTunes:MOOD").
type Tags map[string][]string

// First returns the first non-empty value stored under key.
func (t Tags) First(key string) (string, bool) {
	for _, v := range t[key] {
		if strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

func (t Tags) add(key string, values ...string) {
	for _, v := range values {
		v = strings.TrimRight(v, "\x00")
		if v == "" {
			continue
		}
		t[key] = append(t[key], v)
	}
}

// fill copies keys from other that t does not have yet.
func (t Tags) fill(other Tags) {
	for k, v := range other {
		if _, ok := t[k]; !ok && len(v) > 0 {
			t[k] = v
		}
	}
}

// PictureSource records where inside a container a picture was found.
type PictureSource string

const (
	SourceID3          PictureSource = "id3_apic"
	SourceFLAC         PictureSource = "flac_picture"
	SourceBlockPicture PictureSource = "metadata_block_picture"
	SourceMP4          PictureSource = "mp4_covr"
	SourceArtwork      PictureSource = "vorbis_artwork"
)

// Picture is one embedded image.
type Picture struct {
	Source      PictureSource
	MIME        string
	Type        int
	Description string
	Data        []byte
}

// StreamInfo carries technical properties of the audio stream. Zero values
// mean the container did not report the property.
type StreamInfo struct {
	Codec         string
	Bitrate       int
	SampleRate    int
	Channels      int
	BitsPerSample int
	Mode          string
	Encoder       string
	Length        time.Duration
	TotalSamples  int64
}

// Container is a parsed audio file.
type Container interface {
	Kind() Kind
	Tags() Tags
	Pictures() []Picture
	Stream() StreamInfo
}

type base struct {
	tags     Tags
	pictures []Picture
	stream   StreamInfo
}

func newBase() base {
	return base{tags: Tags{}}
}

func (b *base) Tags() Tags          { return b.tags }
func (b *base) Pictures() []Picture { return b.pictures }
func (b *base) Stream() StreamInfo  { return b.stream }

// Parse detects the container of data by its signature and decodes its tags,
// pictures and stream properties. Malformed structures inside a recognized
// container are skipped rather than reported; only an unrecognized
// signature is an error.
func Parse(data []byte) (Container, error) {
	body := data
	var id3 *id3Tag
	if bytes.HasPrefix(data, []byte("ID3")) {
		tag, n := parseID3v2(data)
		id3 = tag
		if n > 0 && n <= len(data) {
			body = data[n:]
		}
	}

	switch {
	case bytes.HasPrefix(body, []byte("fLaC")):
		return parseFLAC(body), nil
	case id3 == nil && bytes.HasPrefix(body, []byte("OggS")):
		return parseOgg(body), nil
	case id3 == nil && len(body) >= 12 && string(body[4:8]) == "ftyp":
		return parseMP4(body), nil
	case id3 == nil && len(body) >= 12 && string(body[0:4]) == "RIFF" && string(body[8:12]) == "WAVE":
		return parseWAV(body), nil
	}

	if off, ok := findADTS(body); ok && (id3 != nil || off == 0) {
		return parseADTS(data, body[off:], id3), nil
	}
	if id3 != nil {
		return parseMPEG(data, body, id3), nil
	}
	if off, ok := findMPEGFrame(body, 0); ok && off == 0 {
		return parseMPEG(data, body, nil), nil
	}
	if hasID3v1(data) {
		return parseMPEG(data, body, nil), nil
	}
	return nil, ErrUnsupported
}
