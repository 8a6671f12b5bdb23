package container

import (
	"errors"
	"strings"
)

const (
	flacBlockStreamInfo    = 0
	flacBlockVorbisComment = 4
	flacBlockPicture       = 6
)

type flacFile struct{ base }

func (*flacFile) Kind() Kind { return KindFLAC }

func parseFLAC(body []byte) *flacFile {
	f := &flacFile{newBase()}
	r := newReader(body)
	r.skip(4)
	for r.remaining() >= 4 && r.err == nil {
		header := r.u8()
		length := int(r.u24be())
		block := r.take(length)
		if r.err != nil {
			break
		}
		switch header & 0x7f {
		case flacBlockStreamInfo:
			f.stream = flacStreamInfo(block)
		case flacBlockVorbisComment:
			if tags, vendor, ok := parseVorbisComment(block); ok {
				f.tags.fill(tags)
				f.stream.Encoder = vendor
			}
		case flacBlockPicture:
			if pic, err := ParsePictureBlock(block); err == nil {
				pic.Source = SourceFLAC
				f.pictures = append(f.pictures, pic)
			}
		}
		if header&0x80 != 0 {
			break
		}
	}
	if seconds := samplesToDuration(f.stream.TotalSamples, f.stream.SampleRate).Seconds(); seconds > 0 {
		f.stream.Bitrate = int(float64(r.remaining()) * 8 / seconds)
	}
	return f
}

func flacStreamInfo(block []byte) StreamInfo {
	r := newReader(block)
	r.skip(10)
	packed := r.u64be()
	if r.err != nil {
		return StreamInfo{Codec: "flac"}
	}
	return StreamInfo{
		Codec:         "flac",
		SampleRate:    int(packed >> 44),
		Channels:      int((packed>>41)&0x07) + 1,
		BitsPerSample: int((packed>>36)&0x1f) + 1,
		TotalSamples:  int64(packed & 0x0fffffffff),
	}
}

// ParsePictureBlock decodes a FLAC PICTURE metadata block, the same structure
// that Vorbis comments carry base64-encoded as METADATA_BLOCK_PICTURE.
func ParsePictureBlock(block []byte) (Picture, error) {
	r := newReader(block)
	picType := int(r.u32be())
	mime := string(r.take(int(r.u32be())))
	desc := string(r.take(int(r.u32be())))
	r.skip(16)
	data := r.take(int(r.u32be()))
	if r.err != nil {
		return Picture{}, r.err
	}
	if len(data) == 0 {
		return Picture{}, errors.New("picture block carries no image data")
	}
	return Picture{
		Source:      SourceBlockPicture,
		MIME:        strings.ToLower(mime),
		Type:        picType,
		Description: desc,
		Data:        data,
	}, nil
}

// parseVorbisComment decodes a Vorbis comment structure. Field names are
// upper-cased; repeated fields keep every value in order.
func parseVorbisComment(block []byte) (Tags, string, bool) {
	r := newReader(block)
	vendor := string(r.take(int(r.u32le())))
	count := int(r.u32le())
	if r.err != nil {
		return nil, "", false
	}
	tags := Tags{}
	for i := 0; i < count && r.err == nil; i++ {
		field := r.take(int(r.u32le()))
		if r.err != nil {
			break
		}
		name, value, ok := strings.Cut(string(field), "=")
		if !ok || name == "" {
			continue
		}
		tags.add(strings.ToUpper(name), value)
	}
	return tags, vendor, true
}
