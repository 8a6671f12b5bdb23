package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// ID3Frame is one raw ID3v2 frame.
type ID3Frame struct {
	ID   string
	Body []byte
}

// ID3Text builds a Latin-1 text frame.
func ID3Text(id, value string) ID3Frame {
	return ID3Frame{ID: id, Body: append([]byte{0x00}, value...)}
}

// ID3TextUTF16 builds a text frame in UTF-16 with a little-endian BOM.
func ID3TextUTF16(id, value string) ID3Frame {
	body := []byte{0x01, 0xff, 0xfe}
	for _, r := range value {
		body = binary.LittleEndian.AppendUint16(body, uint16(r))
	}
	return ID3Frame{ID: id, Body: body}
}

// ID3UserText builds a TXXX frame.
func ID3UserText(desc, value string) ID3Frame {
	body := append([]byte{0x00}, desc...)
	body = append(body, 0x00)
	body = append(body, value...)
	return ID3Frame{ID: "TXXX", Body: body}
}

// ID3Comment builds a COMM frame in English.
func ID3Comment(desc, text string) ID3Frame {
	body := append([]byte{0x00}, "eng"...)
	body = append(body, desc...)
	body = append(body, 0x00)
	body = append(body, text...)
	return ID3Frame{ID: "COMM", Body: body}
}

// ID3Picture builds an APIC frame.
func ID3Picture(mime string, picType byte, data []byte) ID3Frame {
	body := append([]byte{0x00}, mime...)
	body = append(body, 0x00, picType, 0x00)
	body = append(body, data...)
	return ID3Frame{ID: "APIC", Body: body}
}

// ID3v2 serializes an ID3v2.3 or v2.4 tag holding frames, followed by padding.
func ID3v2(major byte, frames ...ID3Frame) []byte {
	var body bytes.Buffer
	for _, f := range frames {
		body.WriteString(f.ID)
		if major == 4 {
			body.Write(syncsafe(len(f.Body)))
		} else {
			_ = binary.Write(&body, binary.BigEndian, uint32(len(f.Body)))
		}
		body.Write([]byte{0, 0})
		body.Write(f.Body)
	}
	body.Write(make([]byte, 16))

	out := []byte{'I', 'D', '3', major, 0, 0}
	out = append(out, syncsafe(body.Len())...)
	return append(out, body.Bytes()...)
}

func syncsafe(n int) []byte {
	return []byte{byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}
}

// MPEGFrameBytes is the size of one frame produced by MPEGFrames.
const MPEGFrameBytes = 417

// MPEGFrames returns n silent MPEG-1 Layer III frames at 128 kbps, 44.1 kHz,
// joint stereo.
func MPEGFrames(n int) []byte {
	out := make([]byte, 0, n*MPEGFrameBytes)
	for range n {
		frame := make([]byte, MPEGFrameBytes)
		copy(frame, []byte{0xff, 0xfb, 0x90, 0x40})
		out = append(out, frame...)
	}
	return out
}

// XingMPEG returns a stream whose first frame carries a Xing header counting
// frames frames and a LAME encoder tag, followed by frames-1 audio frames.
func XingMPEG(frames int) []byte {
	out := MPEGFrames(frames)
	at := 4 + 32
	copy(out[at:], "Xing")
	binary.BigEndian.PutUint32(out[at+4:], 0x01)
	binary.BigEndian.PutUint32(out[at+8:], uint32(frames))
	copy(out[at+12:], "LAME3.100")
	return out
}

// FLACOptions describes a synthetic FLAC file.
type FLACOptions struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	TotalSamples  int64
	Vendor        string
	Comments      []string
	Pictures      [][]byte
	AudioBytes    int
}

// FLAC serializes a FLAC stream with STREAMINFO, an optional Vorbis comment
// block and PICTURE blocks.
func FLAC(opts FLACOptions) []byte {
	var blocks [][]byte
	var types []byte

	info := make([]byte, 34)
	packed := uint64(opts.SampleRate)<<44 |
		uint64(opts.Channels-1)<<41 |
		uint64(opts.BitsPerSample-1)<<36 |
		uint64(opts.TotalSamples)&0x0fffffffff
	binary.BigEndian.PutUint64(info[10:], packed)
	blocks, types = append(blocks, info), append(types, 0)

	if opts.Vendor != "" || len(opts.Comments) > 0 {
		blocks, types = append(blocks, VorbisComment(opts.Vendor, opts.Comments...)), append(types, 4)
	}
	for _, pic := range opts.Pictures {
		blocks, types = append(blocks, pic), append(types, 6)
	}

	out := []byte("fLaC")
	for i, block := range blocks {
		header := types[i]
		if i == len(blocks)-1 {
			header |= 0x80
		}
		out = append(out, header, byte(len(block)>>16), byte(len(block)>>8), byte(len(block)))
		out = append(out, block...)
	}
	return append(out, make([]byte, opts.AudioBytes)...)
}

// PictureBlock serializes a FLAC PICTURE structure.
func PictureBlock(picType uint32, mime string, data []byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, picType)
	_ = binary.Write(&b, binary.BigEndian, uint32(len(mime)))
	b.WriteString(mime)
	_ = binary.Write(&b, binary.BigEndian, uint32(0))
	b.Write(make([]byte, 16))
	_ = binary.Write(&b, binary.BigEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

// VorbisComment serializes a Vorbis comment structure from "KEY=value" fields.
func VorbisComment(vendor string, fields ...string) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(vendor)))
	b.WriteString(vendor)
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(fields)))
	for _, f := range fields {
		_ = binary.Write(&b, binary.LittleEndian, uint32(len(f)))
		b.WriteString(f)
	}
	return b.Bytes()
}

// OggVorbis serializes a three-page Ogg Vorbis stream: identification header,
// comment header, and one audio page ending at granule.
func OggVorbis(sampleRate, channels int, nominalBitrate int32, granule int64, fields ...string) []byte {
	ident := []byte("\x01vorbis")
	ident = binary.LittleEndian.AppendUint32(ident, 0)
	ident = append(ident, byte(channels))
	ident = binary.LittleEndian.AppendUint32(ident, uint32(sampleRate))
	ident = binary.LittleEndian.AppendUint32(ident, 0)
	ident = binary.LittleEndian.AppendUint32(ident, uint32(nominalBitrate))
	ident = binary.LittleEndian.AppendUint32(ident, 0)
	ident = append(ident, 0xb8, 0x01)

	comment := append([]byte("\x03vorbis"), VorbisComment("synthetic", fields...)...)
	comment = append(comment, 0x01)

	return oggStream(ident, comment, granule)
}

// OggOpus serializes a three-page Ogg Opus stream.
func OggOpus(channels int, preSkip uint16, granule int64, fields ...string) []byte {
	head := []byte("OpusHead")
	head = append(head, 1, byte(channels))
	head = binary.LittleEndian.AppendUint16(head, preSkip)
	head = binary.LittleEndian.AppendUint32(head, 48000)
	head = append(head, 0, 0, 0)

	tags := append([]byte("OpusTags"), VorbisComment("synthetic", fields...)...)
	return oggStream(head, tags, granule)
}

func oggStream(ident, comment []byte, granule int64) []byte {
	var out []byte
	out = append(out, oggPage(0x02, 0, 0, ident)...)
	out = append(out, oggPage(0x00, 0, 1, comment)...)
	out = append(out, oggPage(0x04, granule, 2, make([]byte, 64))...)
	return out
}

func oggPage(headerType byte, granule int64, seq uint32, packet []byte) []byte {
	var lacing []byte
	rest := len(packet)
	for rest >= 255 {
		lacing = append(lacing, 255)
		rest -= 255
	}
	lacing = append(lacing, byte(rest))

	page := []byte("OggS")
	page = append(page, 0, headerType)
	page = binary.LittleEndian.AppendUint64(page, uint64(granule))
	page = binary.LittleEndian.AppendUint32(page, 0x5eed)
	page = binary.LittleEndian.AppendUint32(page, seq)
	page = binary.LittleEndian.AppendUint32(page, 0)
	page = append(page, byte(len(lacing)))
	page = append(page, lacing...)
	return append(page, packet...)
}

// MP4Item is one ilst entry.
type MP4Item struct {
	Name     string
	DataType uint32
	Value    []byte
	Mean     string
}

// MP4Text builds a UTF-8 ilst item; name may use "©".
func MP4Text(name, value string) MP4Item {
	return MP4Item{Name: name, DataType: 1, Value: []byte(value)}
}

// MP4Pair builds a trkn or disk item.
func MP4Pair(name string, n, total uint16) MP4Item {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[2:], n)
	binary.BigEndian.PutUint16(v[4:], total)
	return MP4Item{Name: name, Value: v}
}

// MP4Int16 builds a signed 16-bit integer item such as tmpo.
func MP4Int16(name string, n int16) MP4Item {
	return MP4Item{Name: name, DataType: 21, Value: binary.BigEndian.AppendUint16(nil, uint16(n))}
}

// MP4Cover builds a covr item; dataType 13 is JPEG, 14 is PNG.
func MP4Cover(dataType uint32, data []byte) MP4Item {
	return MP4Item{Name: "covr", DataType: dataType, Value: data}
}

// MP4Freeform builds a "----" item under mean.
func MP4Freeform(mean, name, value string) MP4Item {
	return MP4Item{Name: name, Mean: mean, DataType: 1, Value: []byte(value)}
}

// MP4Options describes a synthetic M4A file.
type MP4Options struct {
	Timescale  uint32
	Duration   uint32
	SampleRate int
	Channels   int
	Items      []MP4Item
}

// MP4 serializes ftyp, moov (mvhd, one sound trak, udta/meta/ilst) and mdat.
func MP4(opts MP4Options) []byte {
	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[12:], opts.Timescale)
	binary.BigEndian.PutUint32(mvhd[16:], opts.Duration)

	hdlr := make([]byte, 24)
	copy(hdlr[8:], "soun")

	entry := make([]byte, 28)
	binary.BigEndian.PutUint16(entry[16:], uint16(opts.Channels))
	binary.BigEndian.PutUint16(entry[18:], 16)
	binary.BigEndian.PutUint32(entry[24:], uint32(opts.SampleRate)<<16)
	stsd := append(make([]byte, 4), 0, 0, 0, 1)
	stsd = append(stsd, box("mp4a", entry)...)

	trak := box("trak", box("mdia", concat(
		box("hdlr", hdlr),
		box("minf", box("stbl", box("stsd", stsd))),
	)))

	var ilst []byte
	for _, item := range opts.Items {
		data := box("data", concat(binary.BigEndian.AppendUint32(nil, item.DataType), make([]byte, 4), item.Value))
		if item.Mean != "" {
			inner := concat(
				box("mean", concat(make([]byte, 4), []byte(item.Mean))),
				box("name", concat(make([]byte, 4), []byte(item.Name))),
				data,
			)
			ilst = append(ilst, box("----", inner)...)
			continue
		}
		ilst = append(ilst, box(latin1(item.Name), data)...)
	}
	meta := concat(make([]byte, 4), box("hdlr", make([]byte, 25)), box("ilst", ilst))
	moov := box("moov", concat(box("mvhd", mvhd), trak, box("udta", box("meta", meta))))

	ftyp := box("ftyp", []byte("M4A \x00\x00\x00\x00M4A mp42isom"))
	return concat(ftyp, moov, box("mdat", make([]byte, 256)))
}

func box(name string, payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(8+len(payload)))
	out = append(out, name...)
	return append(out, payload...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func latin1(s string) string {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return string(b)
}

// WAV serializes a PCM WAVE file with an optional LIST/INFO chunk built from
// id/value pairs such as "INAM", "Title".
func WAV(sampleRate, channels, bitsPerSample, frames int, info ...string) []byte {
	blockAlign := channels * bitsPerSample / 8
	fmtChunk := binary.LittleEndian.AppendUint16(nil, 1)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(channels))
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, uint32(sampleRate))
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, uint32(sampleRate*blockAlign))
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(blockAlign))
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, uint16(bitsPerSample))

	body := []byte("WAVE")
	body = append(body, riffChunk("fmt ", fmtChunk)...)
	if len(info) >= 2 {
		list := []byte("INFO")
		for i := 0; i+1 < len(info); i += 2 {
			list = append(list, riffChunk(info[i], append([]byte(info[i+1]), 0))...)
		}
		body = append(body, riffChunk("LIST", list)...)
	}
	body = append(body, riffChunk("data", make([]byte, frames*blockAlign))...)
	return append(append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(len(body)))...), body...)
}

func riffChunk(id string, payload []byte) []byte {
	out := append([]byte(id), binary.LittleEndian.AppendUint32(nil, uint32(len(payload)))...)
	out = append(out, payload...)
	if len(payload)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// ADTSFrameBytes is the size of one frame produced by ADTS.
const ADTSFrameBytes = 64

// ADTS returns n AAC-LC ADTS frames at 44.1 kHz stereo, one raw block each.
func ADTS(n int) []byte {
	out := make([]byte, 0, n*ADTSFrameBytes)
	for range n {
		frame := make([]byte, ADTSFrameBytes)
		frame[0] = 0xff
		frame[1] = 0xf1
		frame[2] = 0x50 // AAC-LC, 44.1 kHz, channel config high bit 0
		frame[3] = 0x80 | byte(ADTSFrameBytes>>11)
		frame[4] = byte(ADTSFrameBytes >> 3)
		frame[5] = byte(ADTSFrameBytes&0x07)<<5 | 0x1f
		frame[6] = 0xfc
		out = append(out, frame...)
	}
	return out
}

// PNG encodes a solid w×h image.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h, c)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes a solid w×h image.
func JPEG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h, c), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}
