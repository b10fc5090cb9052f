// Package remux drives the FLV-to-fragmented-MP4 state machine: it
// consumes parsed codec results and produces ftyp/moov init segments and
// per-sample moof/mdat fragments through callback hooks.
package remux

import (
	"github.com/mediaflux/flv2fmp4/internal/flv"
)

// AudioCodecType mirrors the FLV audiocodecid metadata field once
// resolved to a known codec.
type AudioCodecType int

const (
	AudioCodecTypeNone AudioCodecType = iota
	AudioCodecTypeAAC
	AudioCodecTypeMP3
)

func audioCodecTypeFromID(id uint8) AudioCodecType {
	switch id {
	case 10:
		return AudioCodecTypeAAC
	case 2:
		return AudioCodecTypeMP3
	default:
		return AudioCodecTypeNone
	}
}

// VideoCodecType mirrors the FLV videocodecid metadata field.
type VideoCodecType int

const (
	VideoCodecTypeNone VideoCodecType = iota
	VideoCodecTypeAVC
)

func videoCodecTypeFromID(id uint8) VideoCodecType {
	switch id {
	case 7:
		return VideoCodecTypeAVC
	default:
		return VideoCodecTypeNone
	}
}

// Context accumulates everything discovered from the FLV header and
// onMetaData script tag, plus the codec configuration captured from each
// track's sequence header, until enough is known to emit the fMP4 init
// segment.
type Context struct {
	FPS        float64
	FPSNum     uint32
	Duration   uint32 // TIME_SCALE units
	Width      float64
	Height     float64
	HasAudio   bool
	HasVideo   bool

	AudioCodecID          uint8
	AudioCodecType        AudioCodecType
	AudioDataRate         uint32
	AudioSampleRate       uint32
	AudioChannels         uint8
	AudioChannelsExtended uint8
	AudioAACInfo          []byte

	VideoCodecID  uint8
	VideoCodecType VideoCodecType
	VideoDataRate uint32
	VideoAVCCInfo []byte

	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string

	headerSent              bool
	flvHeaderConfigured     bool
	metadataConfigured      bool
	videoMetadataConfigured bool
	audioMetadataConfigured bool

	sequenceNumber uint32
}

// NewContext returns a Context with the ftyp defaults used when metadata
// omits them, and the mfhd sequence counter seeded at 1 (shared by every
// track: the counter increments once per fragment regardless of which
// track emitted it).
func NewContext() *Context {
	return &Context{
		MajorBrand:       "isom",
		MinorVersion:     512,
		CompatibleBrands: []string{"isom", "iso2", "avc1", "mp41"},
		sequenceNumber:   1,
	}
}

// ParseFLVHeader records which tracks the FLV header declares present.
func (c *Context) ParseFLVHeader(header flv.Header) {
	c.HasAudio = header.HasAudio
	c.HasVideo = header.HasVideo
	c.flvHeaderConfigured = true
}

// ParseMetadata pulls fps/duration/dimensions/codec ids out of an
// onMetaData script tag body's properties.
func (c *Context) ParseMetadata(properties []flv.Property) {
	if v, ok := flv.AsNumber(properties, "duration"); ok {
		c.Duration = uint32(v * float64(TimeScale))
	}
	if v, ok := flv.AsNumber(properties, "width"); ok {
		c.Width = v
	}
	if v, ok := flv.AsNumber(properties, "height"); ok {
		c.Height = v
	}
	if v, ok := flv.AsNumber(properties, "framerate"); ok {
		c.FPS = v
		c.FPSNum = uint32(v * float64(TimeScale))
	}
	if v, ok := flv.AsNumber(properties, "audiocodecid"); ok {
		c.AudioCodecID = uint8(v)
		c.AudioCodecType = audioCodecTypeFromID(c.AudioCodecID)
	}
	if v, ok := flv.AsNumber(properties, "audiodatarate"); ok {
		c.AudioDataRate = uint32(v)
	}
	if v, ok := flv.AsNumber(properties, "videocodecid"); ok {
		c.VideoCodecID = uint8(v)
		c.VideoCodecType = videoCodecTypeFromID(c.VideoCodecID)
	}
	if v, ok := flv.AsNumber(properties, "videodatarate"); ok {
		c.VideoDataRate = uint32(v)
	}
	c.metadataConfigured = true
}

// ConfigureAudioCodec latches the sample rate/channel layout discovered
// from the first audio frame (AAC sequence header, or the first MP3
// frame, which carries its own header and needs no separate sequence
// header).
func (c *Context) ConfigureAudioCodec(sampleRate int, channels uint8, channelsExtended uint8, aacInfo []byte) {
	c.AudioSampleRate = uint32(sampleRate)
	c.AudioChannels = channels
	c.AudioChannelsExtended = channelsExtended
	c.AudioAACInfo = aacInfo
	c.audioMetadataConfigured = true
}

// ConfigureVideoCodec latches the AVC decoder configuration record
// discovered from the video sequence header.
func (c *Context) ConfigureVideoCodec(avcConfig []byte) {
	c.VideoAVCCInfo = avcConfig
	c.videoMetadataConfigured = true
}

// IsMetadataComplete reports whether the FLV header and onMetaData have
// both arrived, the minimum needed to start interpreting media tags.
func (c *Context) IsMetadataComplete() bool {
	return c.flvHeaderConfigured && c.metadataConfigured
}

// IsConfigured reports whether every track this stream declares has
// also supplied its codec-specific configuration, the gate for emitting
// the fMP4 init segment.
func (c *Context) IsConfigured() bool {
	if !c.IsMetadataComplete() {
		return false
	}
	if c.HasVideo && !c.videoMetadataConfigured {
		return false
	}
	if c.HasAudio && !c.audioMetadataConfigured {
		return false
	}
	return true
}

func (c *Context) IsHeaderSent() bool    { return c.headerSent }
func (c *Context) SetHeaderSent(v bool)  { c.headerSent = v }

// NextSequenceNumber returns the next mfhd.sequence_number and advances
// the shared counter. Shared across tracks: a single monotonic counter,
// not one per track.
func (c *Context) NextSequenceNumber() uint32 {
	n := c.sequenceNumber
	c.sequenceNumber++
	return n
}
