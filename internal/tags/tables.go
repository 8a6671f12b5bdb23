package tags

// field maps one logical metadata key to the native tag keys that may carry
// it, in priority order across ID3, Vorbis and MP4.
type field struct {
	name       string
	candidates []string
}

var standardFields = []field{
	{"title", []string{"TIT2", "TITLE", "©nam"}},
	{"artist", []string{"TPE1", "ARTIST", "©ART"}},
	{"album", []string{"TALB", "ALBUM", "©alb"}},
	{"date", []string{"TDRC", "DATE", "©day"}},
	{"genre", []string{"TCON", "GENRE", "©gen"}},
	{"albumartist", []string{"TPE2", "ALBUMARTIST", "aART"}},
	{"track", []string{"TRCK", "TRACKNUMBER", "trkn"}},
	{"disc", []string{"TPOS", "DISCNUMBER", "disk"}},
}

var extendedFields = []field{
	{"bpm", []string{"TBPM", "BPM", "tmpo"}},
	{"tempo", []string{"TEMPO", "TBPM", "BPM"}},
	{"key", []string{"TKEY", "KEY", "INITIALKEY", "INITIAL_KEY"}},
	{"initial_key", []string{"TKEY", "KEY", "INITIALKEY", "INITIAL_KEY"}},
	{"energy", []string{"ENERGY", "ENERGYLEVEL"}},
	{"mood", []string{"MOOD", "TMOO"}},
	{"rating", []string{"RATING", "POPM"}},
	{"cue_points", []string{"CUEPOINTS", "CUE"}},
	{"intro_start", []string{"INTRO_START", "INTROSTART"}},
	{"intro_end", []string{"INTRO_END", "INTROEND"}},
	{"outro_start", []string{"OUTRO_START", "OUTROSTART"}},
	{"outro_end", []string{"OUTRO_END", "OUTROEND"}},
	{"loop_start", []string{"LOOP_START", "LOOPSTART"}},
	{"loop_end", []string{"LOOP_END", "LOOPEND"}},
	{"beatgrid", []string{"BEATGRID", "BEAT_GRID"}},
	{"lyrics", []string{"USLT", "LYRICS", "©lyr"}},
	{"comment", []string{"COMM", "COMMENT", "©cmt"}},
	{"description", []string{"TIT3", "DESCRIPTION"}},
	{"remixer", []string{"TPE4", "REMIXER", "MIXARTIST"}},
	{"producer", []string{"PRODUCER", "TPRO"}},
	{"label", []string{"TPUB", "LABEL", "PUBLISHER"}},
	{"catalog_number", []string{"CATALOGNUMBER", "CATALOG", "CATALOGNUM"}},
	{"isrc", []string{"TSRC", "ISRC"}},
	{"barcode", []string{"BARCODE", "UPC"}},
	{"replay_gain_track", []string{"REPLAYGAIN_TRACK_GAIN", "TXXX:REPLAYGAIN_TRACK_GAIN"}},
	{"replay_gain_album", []string{"REPLAYGAIN_ALBUM_GAIN", "TXXX:REPLAYGAIN_ALBUM_GAIN"}},
	{"loudness_lufs", []string{"LOUDNESS", "LUFS"}},
	{"dynamic_range", []string{"DYNAMIC_RANGE", "DR"}},
}

var discogsFields = []field{
	{"release_id", []string{"DISCOGS_RELEASE_ID", "TXXX:DISCOGS_RELEASE_ID"}},
	{"master_id", []string{"DISCOGS_MASTER_ID", "TXXX:DISCOGS_MASTER_ID"}},
	{"artist_id", []string{"DISCOGS_ARTIST_ID", "TXXX:DISCOGS_ARTIST_ID"}},
	{"label_id", []string{"DISCOGS_LABEL_ID", "TXXX:DISCOGS_LABEL_ID"}},
	{"artist_name", []string{"DISCOGS_ARTIST_NAME", "TXXX:DISCOGS_ARTIST_NAME"}},
	{"title", []string{"DISCOGS_TITLE", "TXXX:DISCOGS_TITLE"}},
	{"country", []string{"DISCOGS_COUNTRY", "TXXX:DISCOGS_COUNTRY"}},
	{"year", []string{"DISCOGS_YEAR", "TXXX:DISCOGS_YEAR"}},
	{"format", []string{"DISCOGS_FORMAT", "TXXX:DISCOGS_FORMAT"}},
	{"genre", []string{"DISCOGS_GENRE", "TXXX:DISCOGS_GENRE"}},
	{"style", []string{"DISCOGS_STYLE", "TXXX:DISCOGS_STYLE"}},
	{"notes", []string{"DISCOGS_NOTES", "TXXX:DISCOGS_NOTES"}},
	{"barcode", []string{"DISCOGS_BARCODE", "TXXX:DISCOGS_BARCODE"}},
	{"rating", []string{"DISCOGS_RATING", "TXXX:DISCOGS_RATING"}},
}

// numericFields are coerced to numbers after lookup.
var numericFields = map[string]bool{
	"bpm":    true,
	"tempo":  true,
	"energy": true,
	"rating": true,
}

// vendorPrefixes name custom tags already captured elsewhere in the document.
var vendorPrefixes = []string{"DISCOGS_", "REPLAYGAIN_"}
