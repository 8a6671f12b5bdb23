package container

import (
	"bytes"
	"strings"
	"time"
)

const maxSyncScan = 1 << 20

type mpegFile struct{ base }

func (*mpegFile) Kind() Kind { return KindMP3 }

type mpegHeader struct {
	version       int // 1, 2 or 25 for MPEG-2.5
	layer         int
	bitrate       int // bits per second
	sampleRate    int
	padding       bool
	channelMode   int
	frameLength   int
	samplesFrame  int
	sideInfoBytes int
}

var mpegBitrates = map[[2]int][16]int{
	{1, 1}: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
	{1, 2}: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
	{1, 3}: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
	{2, 1}: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
	{2, 2}: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
	{2, 3}: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
}

var mpegSampleRates = map[int][3]int{
	1:  {44100, 48000, 32000},
	2:  {22050, 24000, 16000},
	25: {11025, 12000, 8000},
}

var channelModes = [4]string{"stereo", "joint_stereo", "dual_channel", "mono"}

func parseMPEGHeader(b []byte) (mpegHeader, bool) {
	if len(b) < 4 || b[0] != 0xff || b[1]&0xe0 != 0xe0 {
		return mpegHeader{}, false
	}
	var h mpegHeader
	switch (b[1] >> 3) & 0x03 {
	case 0:
		h.version = 25
	case 2:
		h.version = 2
	case 3:
		h.version = 1
	default:
		return mpegHeader{}, false
	}
	h.layer = 4 - int((b[1]>>1)&0x03)
	if h.layer == 4 {
		return mpegHeader{}, false
	}
	tableVersion := h.version
	if tableVersion == 25 {
		tableVersion = 2
	}
	kbps := mpegBitrates[[2]int{tableVersion, h.layer}][b[2]>>4]
	if kbps <= 0 {
		return mpegHeader{}, false
	}
	srIndex := (b[2] >> 2) & 0x03
	if srIndex == 3 {
		return mpegHeader{}, false
	}
	h.bitrate = kbps * 1000
	h.sampleRate = mpegSampleRates[h.version][srIndex]
	h.padding = (b[2]>>1)&0x01 == 1
	h.channelMode = int(b[3] >> 6)

	pad := 0
	if h.padding {
		pad = 1
	}
	switch h.layer {
	case 1:
		h.samplesFrame = 384
		h.frameLength = (12*h.bitrate/h.sampleRate + pad) * 4
	case 2:
		h.samplesFrame = 1152
		h.frameLength = 144*h.bitrate/h.sampleRate + pad
	case 3:
		if h.version == 1 {
			h.samplesFrame = 1152
			h.frameLength = 144*h.bitrate/h.sampleRate + pad
		} else {
			h.samplesFrame = 576
			h.frameLength = 72*h.bitrate/h.sampleRate + pad
		}
	}
	mono := h.channelMode == 3
	switch {
	case h.version == 1 && mono:
		h.sideInfoBytes = 17
	case h.version == 1:
		h.sideInfoBytes = 32
	case mono:
		h.sideInfoBytes = 9
	default:
		h.sideInfoBytes = 17
	}
	return h, h.frameLength > 4
}

func (h mpegHeader) channels() int {
	if h.channelMode == 3 {
		return 1
	}
	return 2
}

// findMPEGFrame returns the offset of the first frame header at or after from
// that is followed by another compatible header or by the end of data.
func findMPEGFrame(data []byte, from int) (int, bool) {
	limit := min(len(data), from+maxSyncScan)
	for i := from; i+4 <= limit; i++ {
		if data[i] != 0xff {
			continue
		}
		h, ok := parseMPEGHeader(data[i:])
		if !ok {
			continue
		}
		next := i + h.frameLength
		if next == len(data) {
			return i, true
		}
		if n, ok := parseMPEGHeader(data[min(next, len(data)):]); ok && n.version == h.version && n.layer == h.layer && n.sampleRate == h.sampleRate {
			return i, true
		}
	}
	return 0, false
}

func parseMPEG(data, body []byte, id3 *id3Tag) *mpegFile {
	f := &mpegFile{newBase()}
	if id3 != nil {
		f.tags = id3.tags
		f.pictures = id3.pictures
	}
	f.tags.fill(readID3v1(data))

	audio := body
	if hasID3v1(data) && len(audio) >= id3v1TrailerBytes {
		audio = audio[:len(audio)-id3v1TrailerBytes]
	}
	f.stream = mpegStream(audio)
	if f.stream.Length == 0 && id3 != nil {
		f.stream.Length = id3.length
	}
	return f
}

func mpegStream(audio []byte) StreamInfo {
	off, ok := findMPEGFrame(audio, 0)
	if !ok {
		return StreamInfo{}
	}
	h, _ := parseMPEGHeader(audio[off:])
	info := StreamInfo{
		Codec:      [4]string{"", "mp1", "mp2", "mp3"}[h.layer],
		SampleRate: h.sampleRate,
		Channels:   h.channels(),
		Mode:       channelModes[h.channelMode],
		Bitrate:    h.bitrate,
	}

	frames, streamBytes, encoder, vbr := readVBRHeader(audio[off:], h)
	info.Encoder = encoder
	if vbr && frames > 0 {
		info.TotalSamples = int64(frames) * int64(h.samplesFrame)
		info.Length = samplesToDuration(info.TotalSamples, h.sampleRate)
		if streamBytes == 0 {
			streamBytes = len(audio) - off
		}
		if seconds := info.Length.Seconds(); seconds > 0 {
			info.Bitrate = int(float64(streamBytes) * 8 / seconds)
		}
		return info
	}
	if h.bitrate > 0 {
		info.Length = time.Duration(float64(len(audio)-off) * 8 / float64(h.bitrate) * float64(time.Second))
	}
	return info
}

// readVBRHeader inspects the first frame for a Xing/Info or VBRI header and
// returns the frame count, stream byte count and encoder string it carries.
func readVBRHeader(frame []byte, h mpegHeader) (frames, streamBytes int, encoder string, ok bool) {
	xingAt := 4 + h.sideInfoBytes
	if len(frame) >= xingAt+8 {
		magic := string(frame[xingAt : xingAt+4])
		if magic == "Xing" || magic == "Info" {
			r := newReader(frame[xingAt+4:])
			flags := r.u32be()
			if flags&0x01 != 0 {
				frames = int(r.u32be())
			}
			if flags&0x02 != 0 {
				streamBytes = int(r.u32be())
			}
			if flags&0x04 != 0 {
				r.skip(100)
			}
			if flags&0x08 != 0 {
				r.skip(4)
			}
			encoder = encoderString(r.take(9))
			return frames, streamBytes, encoder, r.err == nil || frames > 0
		}
	}
	vbriAt := 4 + 32
	if len(frame) >= vbriAt+18 && string(frame[vbriAt:vbriAt+4]) == "VBRI" {
		r := newReader(frame[vbriAt+4:])
		r.skip(6)
		streamBytes = int(r.u32be())
		frames = int(r.u32be())
		return frames, streamBytes, "", r.err == nil
	}
	return 0, 0, "", false
}

func encoderString(b []byte) string {
	s := strings.TrimRight(string(bytes.Trim(b, "\x00")), " ")
	if s == "" {
		return ""
	}
	for _, c := range []byte(s) {
		if c < 0x20 || c > 0x7e {
			return ""
		}
	}
	if rest, ok := strings.CutPrefix(s, "LAME"); ok {
		return "LAME " + strings.TrimSpace(rest)
	}
	return s
}

func samplesToDuration(samples int64, rate int) time.Duration {
	if samples <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(rate) * float64(time.Second))
}
