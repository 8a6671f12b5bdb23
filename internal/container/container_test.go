package container_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/color"
	"math"
	"slices"
	"testing"
	"time"

	"audiovault/internal/container"
	"audiovault/internal/testsupport"
)

func parse(t *testing.T, data []byte) container.Container {
	t.Helper()
	c, err := container.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func approx(t *testing.T, got time.Duration, want float64) {
	t.Helper()
	if math.Abs(got.Seconds()-want) > 0.01 {
		t.Fatalf("duration %.4fs, want %.4fs", got.Seconds(), want)
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("hello world, not audio"), bytes.Repeat([]byte{0x00}, 512)} {
		if _, err := container.Parse(data); !errors.Is(err, container.ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported for %q, got %v", data[:min(len(data), 8)], err)
		}
	}
}

func TestMP3WithID3v23(t *testing.T) {
	cover := []byte("\xff\xd8\xff\xe0fake-jpeg")
	tag := testsupport.ID3v2(3,
		testsupport.ID3Text("TIT2", "Night Drive"),
		testsupport.ID3Text("TPE1", "The Band"),
		testsupport.ID3Text("TYER", "1999"),
		testsupport.ID3Text("TCON", "(17)"),
		testsupport.ID3UserText("discogs_release_id", "12345"),
		testsupport.ID3Comment("", "great track"),
		testsupport.ID3Picture("image/jpeg", 3, cover),
	)
	c := parse(t, append(tag, testsupport.MPEGFrames(100)...))

	if c.Kind() != container.KindMP3 {
		t.Fatalf("kind = %s", c.Kind())
	}
	tags := c.Tags()
	checks := map[string]string{
		"TIT2":                    "Night Drive",
		"TPE1":                    "The Band",
		"TDRC":                    "1999",
		"TCON":                    "Rock",
		"TXXX:DISCOGS_RELEASE_ID": "12345",
		"COMM":                    "great track",
	}
	for key, want := range checks {
		if got, _ := tags.First(key); got != want {
			t.Fatalf("%s = %q want %q", key, got, want)
		}
	}

	pics := c.Pictures()
	if len(pics) != 1 || pics[0].Source != container.SourceID3 || !bytes.Equal(pics[0].Data, cover) || pics[0].MIME != "image/jpeg" {
		t.Fatalf("unexpected pictures %+v", pics)
	}

	info := c.Stream()
	if info.Codec != "mp3" || info.SampleRate != 44100 || info.Channels != 2 || info.Mode != "joint_stereo" || info.Bitrate != 128000 {
		t.Fatalf("unexpected stream %+v", info)
	}
	approx(t, info.Length, float64(100*testsupport.MPEGFrameBytes*8)/128000)
}

func TestMP3XingHeader(t *testing.T) {
	c := parse(t, testsupport.XingMPEG(38))
	info := c.Stream()
	approx(t, info.Length, 38*1152.0/44100)
	if info.TotalSamples != 38*1152 {
		t.Fatalf("total samples %d", info.TotalSamples)
	}
	if info.Encoder != "LAME 3.100" {
		t.Fatalf("encoder %q", info.Encoder)
	}
}

func TestID3v24UTF16AndMultiValue(t *testing.T) {
	multi := testsupport.ID3Frame{ID: "TPE1", Body: []byte("\x03Alpha\x00Beta")}
	tag := testsupport.ID3v2(4,
		testsupport.ID3TextUTF16("TIT2", "Café"),
		multi,
	)
	c := parse(t, append(tag, testsupport.MPEGFrames(4)...))
	if got, _ := c.Tags().First("TIT2"); got != "Café" {
		t.Fatalf("TIT2 = %q", got)
	}
	if got := c.Tags()["TPE1"]; !slices.Equal(got, []string{"Alpha", "Beta"}) {
		t.Fatalf("TPE1 = %q", got)
	}
}

func TestID3v1Fallback(t *testing.T) {
	trailer := make([]byte, 128)
	copy(trailer, "TAG")
	copy(trailer[3:], "Old Title")
	copy(trailer[33:], "Old Artist")
	copy(trailer[93:], "1987")
	trailer[127] = 9

	data := append(testsupport.MPEGFrames(10), trailer...)
	c := parse(t, data)
	if got, _ := c.Tags().First("TIT2"); got != "Old Title" {
		t.Fatalf("TIT2 = %q", got)
	}
	if got, _ := c.Tags().First("TDRC"); got != "1987" {
		t.Fatalf("TDRC = %q", got)
	}
	if got, _ := c.Tags().First("TCON"); got != "Metal" {
		t.Fatalf("TCON = %q", got)
	}
}

func TestTruncatedID3DoesNotPanic(t *testing.T) {
	tag := testsupport.ID3v2(3, testsupport.ID3Text("TIT2", "Cut Short"), testsupport.ID3Picture("image/png", 3, bytes.Repeat([]byte{1}, 400)))
	for n := 0; n < len(tag); n += 7 {
		_, _ = container.Parse(tag[:n])
	}
}

func TestFLAC(t *testing.T) {
	png := testsupport.PNG(t, 4, 4, color.White)
	data := testsupport.FLAC(testsupport.FLACOptions{
		SampleRate:    44100,
		Channels:      2,
		BitsPerSample: 16,
		TotalSamples:  441000,
		Vendor:        "reference libFLAC 1.4.3",
		Comments:      []string{"title=Lake", "ARTIST=Someone", "Artist=Someone Else", "BPM=128"},
		Pictures:      [][]byte{testsupport.PictureBlock(3, "image/png", png)},
		AudioBytes:    1024,
	})
	c := parse(t, data)
	if c.Kind() != container.KindFLAC {
		t.Fatalf("kind = %s", c.Kind())
	}
	if got, _ := c.Tags().First("TITLE"); got != "Lake" {
		t.Fatalf("TITLE = %q", got)
	}
	if got := c.Tags()["ARTIST"]; len(got) != 2 {
		t.Fatalf("ARTIST = %q", got)
	}
	info := c.Stream()
	if info.SampleRate != 44100 || info.Channels != 2 || info.BitsPerSample != 16 || info.TotalSamples != 441000 {
		t.Fatalf("unexpected stream %+v", info)
	}
	if info.Length != 0 {
		t.Fatalf("FLAC leaves length to the sample count, got %v", info.Length)
	}
	pics := c.Pictures()
	if len(pics) != 1 || pics[0].Source != container.SourceFLAC || !bytes.Equal(pics[0].Data, png) || pics[0].Type != 3 {
		t.Fatalf("unexpected pictures %+v", pics)
	}
}

func TestParsePictureBlock(t *testing.T) {
	block := testsupport.PictureBlock(3, "IMAGE/JPEG", []byte("jpegdata"))
	pic, err := container.ParsePictureBlock(block)
	if err != nil {
		t.Fatalf("ParsePictureBlock: %v", err)
	}
	if pic.MIME != "image/jpeg" || string(pic.Data) != "jpegdata" || pic.Source != container.SourceBlockPicture {
		t.Fatalf("unexpected picture %+v", pic)
	}
	if _, err := container.ParsePictureBlock(block[:len(block)-3]); err == nil {
		t.Fatal("expected truncated block to fail")
	}
}

func TestOggVorbis(t *testing.T) {
	long := "NOTES=" + string(bytes.Repeat([]byte("x"), 600))
	c := parse(t, testsupport.OggVorbis(44100, 2, 160000, 441000, "TITLE=Tide", "KEY=Am", long))
	if c.Kind() != container.KindOgg {
		t.Fatalf("kind = %s", c.Kind())
	}
	if got, _ := c.Tags().First("KEY"); got != "Am" {
		t.Fatalf("KEY = %q", got)
	}
	if got, _ := c.Tags().First("NOTES"); len(got) != 600 {
		t.Fatalf("NOTES spans multiple segments, got %d bytes", len(got))
	}
	info := c.Stream()
	if info.Codec != "vorbis" || info.SampleRate != 44100 || info.Channels != 2 || info.Bitrate != 160000 {
		t.Fatalf("unexpected stream %+v", info)
	}
	approx(t, info.Length, 10)
}

func TestOggOpus(t *testing.T) {
	c := parse(t, testsupport.OggOpus(2, 312, 48000*3+312, "ARTIST=Voice"))
	info := c.Stream()
	if info.Codec != "opus" || info.SampleRate != 48000 {
		t.Fatalf("unexpected stream %+v", info)
	}
	approx(t, info.Length, 3)
	if got, _ := c.Tags().First("ARTIST"); got != "Voice" {
		t.Fatalf("ARTIST = %q", got)
	}
}

func TestMP4(t *testing.T) {
	jpeg := testsupport.JPEG(t, 8, 8, color.Black)
	c := parse(t, testsupport.MP4(testsupport.MP4Options{
		Timescale:  1000,
		Duration:   4500,
		SampleRate: 44100,
		Channels:   2,
		Items: []testsupport.MP4Item{
			testsupport.MP4Text("©nam", "Harbor"),
			testsupport.MP4Pair("trkn", 3, 12),
			testsupport.MP4Int16("tmpo", 124),
			testsupport.MP4Cover(13, jpeg),
			testsupport.MP4Freeform("com.apple.iTunes", "MOOD", "calm"),
		},
	}))
	if c.Kind() != container.KindMP4 {
		t.Fatalf("kind = %s", c.Kind())
	}
	tags := c.Tags()
	for key, want := range map[string]string{
		"©nam":                       "Harbor",
		"trkn":                       "3/12",
		"tmpo":                       "124",
		"----:com.apple.iTunes:MOOD": "calm",
	} {
		if got, _ := tags.First(key); got != want {
			t.Fatalf("%s = %q want %q", key, got, want)
		}
	}
	info := c.Stream()
	if info.SampleRate != 44100 || info.Channels != 2 || info.Codec != "aac" {
		t.Fatalf("unexpected stream %+v", info)
	}
	approx(t, info.Length, 4.5)
	pics := c.Pictures()
	if len(pics) != 1 || pics[0].Source != container.SourceMP4 || pics[0].MIME != "image/jpeg" {
		t.Fatalf("unexpected pictures %+v", pics)
	}
}

func TestWAV(t *testing.T) {
	c := parse(t, testsupport.WAV(8000, 1, 16, 16000, "INAM", "Field Recording", "IART", "Nobody"))
	if c.Kind() != container.KindWAV {
		t.Fatalf("kind = %s", c.Kind())
	}
	if got, _ := c.Tags().First("TIT2"); got != "Field Recording" {
		t.Fatalf("TIT2 = %q", got)
	}
	info := c.Stream()
	if info.TotalSamples != 16000 || info.SampleRate != 8000 || info.BitsPerSample != 16 || info.Bitrate != 128000 {
		t.Fatalf("unexpected stream %+v", info)
	}
}

func TestADTS(t *testing.T) {
	tag := testsupport.ID3v2(4, testsupport.ID3Text("TIT2", "Raw AAC"))
	c := parse(t, append(tag, testsupport.ADTS(43)...))
	if c.Kind() != container.KindAAC {
		t.Fatalf("kind = %s", c.Kind())
	}
	info := c.Stream()
	if info.TotalSamples != 43*1024 || info.SampleRate != 44100 || info.Channels != 2 {
		t.Fatalf("unexpected stream %+v", info)
	}
	if got, _ := c.Tags().First("TIT2"); got != "Raw AAC" {
		t.Fatalf("TIT2 = %q", got)
	}
}

func TestCompressedID3Frame(t *testing.T) {
	var raw bytes.Buffer
	raw.WriteString("\x00Packed Title")
	compressed := zlibBytes(t, raw.Bytes())

	body := binary.BigEndian.AppendUint32(nil, uint32(raw.Len()))
	body = append(body, compressed...)

	var frame bytes.Buffer
	frame.WriteString("TIT2")
	_ = binary.Write(&frame, binary.BigEndian, uint32(len(body)))
	frame.Write([]byte{0x00, 0x80})
	frame.Write(body)

	size := frame.Len()
	header := []byte{'I', 'D', '3', 3, 0, 0, byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)}
	data := append(append(header, frame.Bytes()...), testsupport.MPEGFrames(2)...)

	c := parse(t, data)
	if got, _ := c.Tags().First("TIT2"); got != "Packed Title" {
		t.Fatalf("TIT2 = %q", got)
	}
}
