package fmp4

// TimeScale is the process-wide movie/media timescale. Chosen as 30000 so
// that 30 fps yields an integer per-frame duration of 1000.
const TimeScale uint32 = 30000

// VideoTrackID and AudioTrackID are the fixed track_id values used
// throughout the init segment and every fragment: video=1, audio=2.
const (
	VideoTrackID uint32 = 1
	AudioTrackID uint32 = 2
)

// AudioCodec identifies which audio sample entry (mp4a/esds or .mp3) a
// HeaderParams describes.
type AudioCodec int

const (
	AudioCodecNone AudioCodec = iota
	AudioCodecAAC
	AudioCodecMP3
)

// VideoCodec identifies which video sample entry a HeaderParams describes.
// AVC is the only one this module supports.
type VideoCodec int

const (
	VideoCodecNone VideoCodec = iota
	VideoCodecAVC
)

// HeaderParams carries everything needed to build the init segment
// (ftyp+moov), sourced from the remux context once both audio and video
// metadata are configured.
type HeaderParams struct {
	Duration uint32 // TIME_SCALE units
	Width    float64
	Height   float64

	HasVideo   bool
	VideoCodec VideoCodec
	AVCConfig  []byte // verbatim avcC body

	HasAudio          bool
	AudioCodecType    AudioCodec
	AACConfigBytes    []byte // verbatim ASC bytes for esds DecSpecificInfo
	AudioSampleRate   int
	AudioChannelCount int

	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

// BuildHeader serializes ftyp followed by moov into one contiguous buffer,
// the init segment emitted exactly once per stream.
func BuildHeader(p HeaderParams) []byte {
	majorBrand := p.MajorBrand
	if majorBrand == "" {
		majorBrand = DefaultMajorBrand
	}
	minorVersion := p.MinorVersion
	if minorVersion == 0 {
		minorVersion = DefaultMinorVersion
	}
	brands := p.CompatibleBrands
	if len(brands) == 0 {
		brands = DefaultCompatibleBrands
	}

	out := Ftyp(majorBrand, minorVersion, brands)
	out = append(out, buildMoov(p)...)
	return out
}

func buildMoov(p HeaderParams) []byte {
	var body []byte
	body = append(body, mvhd(p.Duration)...)

	nextTrackID := uint32(1)
	if p.HasVideo {
		body = append(body, videoTrak(p)...)
		nextTrackID++
	}
	if p.HasAudio {
		body = append(body, audioTrak(p)...)
		nextTrackID++
	}

	body = append(body, mvex(p)...)

	return box("moov", body)
}

// mvhd is a version-0 movie header box, 108 bytes in all: a 96-byte body
// plus the 8-byte box header and 4-byte FullBox prefix added by fullBox().
func mvhd(duration uint32) []byte {
	var b []byte
	b = appendU32(b, 0) // creation_time
	b = appendU32(b, 0) // modification_time
	b = appendU32(b, TimeScale)
	b = appendU32(b, duration)
	b = appendU32(b, 0x00010000) // rate, 1.0 in 16.16
	b = appendU16(b, 0x0100)     // volume, 1.0 in 8.8
	b = append(b, 0, 0)          // reserved u16
	b = appendZeros(b, 8)        // reserved 2x u32
	b = appendMatrix(b)
	b = appendZeros(b, 24) // 6 preview/poster/selection/current fields
	b = appendU32(b, nextTrackIDAfterVideoAudio())
	return fullBox("mvhd", 0, 0, b)
}

// nextTrackIDAfterVideoAudio is always 3: one video (id 1) and one audio
// (id 2) track at most.
func nextTrackIDAfterVideoAudio() uint32 { return 3 }

func tkhd(trackID uint32, duration uint32, width, height float64) []byte {
	var b []byte
	b = appendU32(b, 0) // creation_time
	b = appendU32(b, 0) // modification_time
	b = appendU32(b, trackID)
	b = appendU32(b, 0) // reserved
	b = appendU32(b, duration)
	b = appendZeros(b, 8) // reserved 2x u32
	b = appendU16(b, 0)   // layer
	b = appendU16(b, 0)   // alternate_group
	b = appendU16(b, 0)   // volume (0 for video tracks; audio tracks also leave this 0 here)
	b = append(b, 0, 0)   // reserved
	b = appendMatrix(b)
	b = appendU32(b, fixed16_16(width))
	b = appendU32(b, fixed16_16(height))
	return fullBox("tkhd", 0, 7, b) // flags=7: track enabled, in movie, in preview
}

func fixed16_16(v float64) uint32 {
	return uint32(v) << 16
}

func mdhd() []byte {
	var b []byte
	b = appendU32(b, 0) // creation_time
	b = appendU32(b, 0) // modification_time
	b = appendU32(b, TimeScale)
	b = appendU32(b, 0)      // duration: fragmented, left 0 like stts/stsc/stsz/stco
	b = appendU16(b, 0x55C4) // language "und"
	b = appendU16(b, 0)      // pre_defined
	return fullBox("mdhd", 0, 0, b)
}

func hdlr(handlerType, name string) []byte {
	var b []byte
	b = appendU32(b, 0) // pre_defined
	b = append(b, padBrand(handlerType)...)
	b = appendZeros(b, 12) // reserved 3x u32
	nameBytes := make([]byte, 13)
	copy(nameBytes, name)
	b = append(b, nameBytes...)
	return fullBox("hdlr", 0, 0, b)
}

func vmhd() []byte {
	var b []byte
	b = appendU16(b, 0) // graphicsmode
	b = appendZeros(b, 6) // opcolor, 3x u16
	return fullBox("vmhd", 0, 1, b) // flags=1, per ISO-BMFF convention
}

func smhd() []byte {
	var b []byte
	b = appendU16(b, 0) // balance
	b = append(b, 0, 0)  // reserved
	return fullBox("smhd", 0, 0, b)
}

func dinf() []byte {
	urlBox := fullBox("url ", 0, 1, nil) // flags=1: media data is in this file
	dref := fullBox("dref", 0, 0, append(appendU32(nil, 1), urlBox...))
	return box("dinf", dref)
}

func emptyStts() []byte { return fullBox("stts", 0, 0, appendU32(nil, 0)) }
func emptyStsc() []byte { return fullBox("stsc", 0, 0, appendU32(nil, 0)) }
func emptyStsz() []byte {
	var b []byte
	b = appendU32(b, 0) // sample_size
	b = appendU32(b, 0) // sample_count
	return fullBox("stsz", 0, 0, b)
}
func emptyStco() []byte { return fullBox("stco", 0, 0, appendU32(nil, 0)) }

func videoTrak(p HeaderParams) []byte {
	stsd := box("stsd", append(appendU32(nil, 1), avc1Entry(p)...))
	stbl := box("stbl", concatAll(stsd, emptyStts(), emptyStsc(), emptyStsz(), emptyStco()))
	minf := box("minf", concatAll(vmhd(), dinf(), stbl))
	mdia := box("mdia", concatAll(mdhd(), hdlr("vide", "VideoHandler\x00"), minf))
	body := concatAll(tkhd(VideoTrackID, p.Duration, p.Width, p.Height), mdia)
	return box("trak", body)
}

func audioTrak(p HeaderParams) []byte {
	var entry []byte
	switch p.AudioCodecType {
	case AudioCodecAAC:
		entry = mp4aEntry(p)
	case AudioCodecMP3:
		entry = mp3Entry(p)
	}
	stsd := box("stsd", append(appendU32(nil, 1), entry...))
	stbl := box("stbl", concatAll(stsd, emptyStts(), emptyStsc(), emptyStsz(), emptyStco()))
	minf := box("minf", concatAll(smhd(), dinf(), stbl))
	mdia := box("mdia", concatAll(mdhd(), hdlr("soun", "SoundHandler\x00"), minf))
	body := concatAll(tkhd(AudioTrackID, p.Duration, 0, 0), mdia)
	return box("trak", body)
}

func concatAll(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func trex(trackID uint32) []byte {
	var b []byte
	b = appendU32(b, trackID)
	b = appendU32(b, 1) // default_sample_description_index
	b = appendU32(b, 0) // default_sample_duration
	b = appendU32(b, 0) // default_sample_size
	b = appendU32(b, 0x00010001) // default_sample_flags
	return fullBox("trex", 0, 0, b)
}

func mvex(p HeaderParams) []byte {
	var body []byte
	if p.HasVideo {
		body = append(body, trex(VideoTrackID)...)
	}
	if p.HasAudio {
		body = append(body, trex(AudioTrackID)...)
	}
	return box("mvex", body)
}
