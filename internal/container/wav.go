package container

import "strings"

type wavFile struct{ base }

func (*wavFile) Kind() Kind { return KindWAV }

// RIFF INFO fields and the ID3 frames they map to.
var riffInfoFrames = map[string]string{
	"INAM": "TIT2",
	"IART": "TPE1",
	"IPRD": "TALB",
	"ICRD": "TDRC",
	"IGNR": "TCON",
	"ICMT": "COMM",
	"ITRK": "TRCK",
	"IPRT": "TRCK",
}

func parseWAV(body []byte) *wavFile {
	f := &wavFile{newBase()}
	info := Tags{}
	var blockAlign, dataBytes int

	r := newReader(body)
	r.skip(12)
	for r.remaining() >= 8 && r.err == nil {
		id := string(r.take(4))
		size := int(r.u32le())
		chunk := r.take(min(size, r.remaining()))
		if size%2 == 1 && r.remaining() > 0 {
			r.skip(1)
		}
		switch id {
		case "fmt ":
			fr := newReader(chunk)
			format := fr.u16le()
			f.stream.Channels = int(fr.u16le())
			f.stream.SampleRate = int(fr.u32le())
			f.stream.Bitrate = int(fr.u32le()) * 8
			blockAlign = int(fr.u16le())
			f.stream.BitsPerSample = int(fr.u16le())
			f.stream.Codec = "pcm"
			if format == 3 {
				f.stream.Codec = "pcm_float"
			}
		case "data":
			dataBytes = len(chunk)
		case "id3 ", "ID3 ":
			if tag, _ := parseID3v2(chunk); tag != nil {
				f.tags = tag.tags
				f.pictures = tag.pictures
			}
		case "LIST":
			if len(chunk) >= 4 && string(chunk[:4]) == "INFO" {
				readRIFFInfo(chunk[4:], info)
			}
		}
	}
	f.tags.fill(info)
	if blockAlign > 0 {
		f.stream.TotalSamples = int64(dataBytes / blockAlign)
	}
	return f
}

func readRIFFInfo(b []byte, into Tags) {
	r := newReader(b)
	for r.remaining() >= 8 && r.err == nil {
		id := string(r.take(4))
		size := int(r.u32le())
		value := r.take(min(size, r.remaining()))
		if size%2 == 1 && r.remaining() > 0 {
			r.skip(1)
		}
		if frame, ok := riffInfoFrames[id]; ok {
			if _, exists := into[frame]; !exists {
				into.add(frame, strings.TrimSpace(strings.TrimRight(string(value), "\x00")))
			}
		}
	}
}
