package container

type adtsFile struct{ base }

func (*adtsFile) Kind() Kind { return KindAAC }

var adtsSampleRates = [...]int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}

type adtsHeader struct {
	sampleRate  int
	channels    int
	frameLength int
	blocks      int
}

func parseADTSHeader(b []byte) (adtsHeader, bool) {
	if len(b) < 7 || b[0] != 0xff || b[1]&0xf6 != 0xf0 {
		return adtsHeader{}, false
	}
	sr := int(b[2]>>2) & 0x0f
	if sr >= len(adtsSampleRates) {
		return adtsHeader{}, false
	}
	h := adtsHeader{
		sampleRate:  adtsSampleRates[sr],
		channels:    int(b[2]&0x01)<<2 | int(b[3]>>6),
		frameLength: int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5])>>5,
		blocks:      int(b[6]&0x03) + 1,
	}
	return h, h.frameLength >= 7
}

// findADTS skips zero padding and reports the offset of an ADTS frame that
// is followed by another frame or by the end of data.
func findADTS(b []byte) (int, bool) {
	off := 0
	for off < len(b) && b[off] == 0 {
		off++
	}
	h, ok := parseADTSHeader(b[off:])
	if !ok {
		return 0, false
	}
	next := off + h.frameLength
	if next == len(b) {
		return off, true
	}
	if next < len(b) {
		if _, ok := parseADTSHeader(b[next:]); ok {
			return off, true
		}
	}
	return 0, false
}

func parseADTS(data, frames []byte, id3 *id3Tag) *adtsFile {
	f := &adtsFile{newBase()}
	if id3 != nil {
		f.tags = id3.tags
		f.pictures = id3.pictures
	}
	f.tags.fill(readID3v1(data))

	first, ok := parseADTSHeader(frames)
	if !ok {
		return f
	}
	f.stream.Codec = "aac"
	f.stream.SampleRate = first.sampleRate
	f.stream.Channels = first.channels

	var samples int64
	off := 0
	for off < len(frames) {
		h, ok := parseADTSHeader(frames[off:])
		if !ok || off+h.frameLength > len(frames) {
			break
		}
		samples += int64(h.blocks) * 1024
		off += h.frameLength
	}
	f.stream.TotalSamples = samples
	if seconds := samplesToDuration(samples, first.sampleRate).Seconds(); seconds > 0 {
		f.stream.Bitrate = int(float64(off) * 8 / seconds)
	}
	if samples == 0 && id3 != nil {
		f.stream.Length = id3.length
	}
	return f
}
