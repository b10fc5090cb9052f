package flv

import (
	"errors"
	"fmt"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
)

// TagType identifies the kind of payload an FLV tag carries.
type TagType uint8

// Tag type constants, per the FLV tag header's 5-bit tag_type field.
const (
	TagTypeAudio      TagType = 8
	TagTypeVideo      TagType = 9
	TagTypeScript     TagType = 18
	TagTypeEncryption TagType = 0 // placeholder: see EncryptionHeader
)

func (t TagType) String() string {
	switch t {
	case TagTypeAudio:
		return "Audio"
	case TagTypeVideo:
		return "Video"
	case TagTypeScript:
		return "Script"
	default:
		return "Unknown"
	}
}

// SoundFormat is the 4-bit audio codec identifier in an AudioTagHeader.
type SoundFormat uint8

const (
	SoundFormatAAC SoundFormat = 10
	SoundFormatMP3 SoundFormat = 2
)

// AACPacketType distinguishes an AAC sequence header from a raw AAC frame.
type AACPacketType uint8

const (
	AACPacketTypeSequenceHeader AACPacketType = 0
	AACPacketTypeRaw            AACPacketType = 1
)

// AudioTagHeader is the per-tag header for TagTypeAudio.
type AudioTagHeader struct {
	SoundFormat SoundFormat
	SoundRate   uint8 // 2 bits
	SoundSize   uint8 // 1 bit
	SoundType   uint8 // 1 bit

	// AACPacketType is only meaningful when SoundFormat == SoundFormatAAC.
	HasAACPacketType bool
	AACPacketType    AACPacketType
}

// FrameType is the 4-bit video frame-type field in a VideoTagHeader.
type FrameType uint8

const (
	FrameTypeKey   FrameType = 1
	FrameTypeInter FrameType = 2
)

// VideoCodecID is the 4-bit video codec identifier in a VideoTagHeader.
type VideoCodecID uint8

const VideoCodecAVC VideoCodecID = 7

// AVCPacketType distinguishes an AVC sequence header, NALU, or end-of-sequence
// marker.
type AVCPacketType uint8

const (
	AVCPacketTypeSequenceHeader AVCPacketType = 0
	AVCPacketTypeNALU           AVCPacketType = 1
	AVCPacketTypeEndOfSequence  AVCPacketType = 2
)

// VideoTagHeader is the per-tag header for TagTypeVideo.
type VideoTagHeader struct {
	FrameType FrameType
	CodecID   VideoCodecID

	// Only meaningful when CodecID == VideoCodecAVC.
	HasAVCFields          bool
	AVCPacketType         AVCPacketType
	CompositionTimeOffset int32 // signed 24-bit, milliseconds
}

// EncryptionHeader is an unimplemented placeholder for encrypted FLV tags:
// recognized but not decoded — see Tag.Filter.
type EncryptionHeader struct{}

// FilterParams is an unimplemented placeholder for encrypted FLV tag filter
// parameters.
type FilterParams struct{}

// Tag is one decoded FLV record.
type Tag struct {
	Filter           bool
	Type             TagType
	DataSize         uint32
	TimestampShort   uint32
	TimestampExt     uint8
	Timestamp        uint32
	StreamID         uint32
	AudioHeader      *AudioTagHeader
	VideoHeader      *VideoTagHeader
	EncryptionHeader *EncryptionHeader
	FilterParams     *FilterParams
	Body             []byte    // raw body, Audio and Video tags
	ScriptBody       *ScriptTagBody // Script tags only
}

// ScriptTagBody is the parsed AMF0 payload of a Script tag: a (name, value)
// pair — a u16-length UTF-8 string followed by an ecma_array_value.
type ScriptTagBody struct {
	Name  string
	Value Value
}

// DecodeTag drains one 11-byte tag header plus its body from q. A tag is
// parsed to completion or not at all: on a short read partway through (the
// header decodes but the body hasn't fully arrived yet, say), the queue is
// rewound to its position before this call so a later Append plus retry
// picks back up cleanly instead of losing the already-drained header bytes.
func DecodeTag(q *bitio.Queue) (Tag, error) {
	mark := q.Mark()
	tag, err := decodeTag(q)
	if err != nil {
		if errors.Is(err, bitio.ErrShortRead) {
			q.Reset(mark)
		}
		return Tag{}, err
	}
	return tag, nil
}

func decodeTag(q *bitio.Queue) (Tag, error) {
	first, err := q.DrainU8()
	if err != nil {
		return Tag{}, fmt.Errorf("flv: decode tag first byte: %w", err)
	}
	b := bitio.BitReader8(first)
	filterBit, err := b.Bit(2)
	if err != nil {
		return Tag{}, err
	}
	rawType, err := b.Range(3, 7)
	if err != nil {
		return Tag{}, err
	}

	tagType := TagType(rawType)
	switch tagType {
	case TagTypeAudio, TagTypeVideo, TagTypeScript:
	default:
		return Tag{}, fmt.Errorf("%w: tag_type=%d", ErrUnsupportedTagType, rawType)
	}

	dataSize, err := q.DrainU24BE()
	if err != nil {
		return Tag{}, fmt.Errorf("flv: decode data_size: %w", err)
	}
	tsShort, err := q.DrainU24BE()
	if err != nil {
		return Tag{}, fmt.Errorf("flv: decode timestamp: %w", err)
	}
	tsExt, err := q.DrainU8()
	if err != nil {
		return Tag{}, fmt.Errorf("flv: decode timestamp extended: %w", err)
	}
	streamID, err := q.DrainU24BE()
	if err != nil {
		return Tag{}, fmt.Errorf("flv: decode stream_id: %w", err)
	}

	tag := Tag{
		Filter:         filterBit,
		Type:           tagType,
		DataSize:       dataSize,
		TimestampShort: tsShort,
		TimestampExt:   tsExt,
		Timestamp:      uint32(tsExt)<<24 | (tsShort & 0x00FFFFFF),
		StreamID:       streamID,
	}

	// An encrypted tag's per-type header and body are opaque: encryption_header
	// and filter_params are recognized but unimplemented placeholders, so the
	// whole data_size is drained verbatim instead of interpreted as Audio/
	// Video/Script content.
	if filterBit {
		body, err := q.DrainBytes(int(dataSize))
		if err != nil {
			return Tag{}, fmt.Errorf("flv: decode encrypted tag body (%d bytes): %w", dataSize, err)
		}
		tag.EncryptionHeader = &EncryptionHeader{}
		tag.FilterParams = &FilterParams{}
		tag.Body = body
		return tag, nil
	}

	headerBytes := 0
	switch tagType {
	case TagTypeAudio:
		hdr, n, err := decodeAudioTagHeader(q)
		if err != nil {
			return Tag{}, err
		}
		tag.AudioHeader = &hdr
		headerBytes = n
	case TagTypeVideo:
		hdr, n, err := decodeVideoTagHeader(q)
		if err != nil {
			return Tag{}, err
		}
		tag.VideoHeader = &hdr
		headerBytes = n
	case TagTypeScript:
		// no per-type header fields beyond the generic tag header.
	}

	bodyLen := int(dataSize) - headerBytes
	if bodyLen < 0 {
		return Tag{}, fmt.Errorf("flv: data_size %d smaller than header bytes %d", dataSize, headerBytes)
	}

	if tagType == TagTypeScript {
		body, err := decodeScriptBody(q, bodyLen)
		if err != nil {
			return Tag{}, err
		}
		tag.ScriptBody = body
		return tag, nil
	}

	body, err := q.DrainBytes(bodyLen)
	if err != nil {
		return Tag{}, fmt.Errorf("flv: decode tag body (%d bytes): %w", bodyLen, err)
	}
	tag.Body = body
	return tag, nil
}

func decodeAudioTagHeader(q *bitio.Queue) (AudioTagHeader, int, error) {
	first, err := q.DrainU8()
	if err != nil {
		return AudioTagHeader{}, 0, fmt.Errorf("flv: decode audio header: %w", err)
	}
	b := bitio.BitReader8(first)
	format, err := b.Range(0, 3)
	if err != nil {
		return AudioTagHeader{}, 0, err
	}
	rate, err := b.Range(4, 5)
	if err != nil {
		return AudioTagHeader{}, 0, err
	}
	size, err := b.Range(6, 6)
	if err != nil {
		return AudioTagHeader{}, 0, err
	}
	typ, err := b.Range(7, 7)
	if err != nil {
		return AudioTagHeader{}, 0, err
	}

	hdr := AudioTagHeader{
		SoundFormat: SoundFormat(format),
		SoundRate:   rate,
		SoundSize:   size,
		SoundType:   typ,
	}

	n := 1
	if hdr.SoundFormat == SoundFormatAAC {
		pt, err := q.DrainU8()
		if err != nil {
			return AudioTagHeader{}, 0, fmt.Errorf("flv: decode aac_packet_type: %w", err)
		}
		hdr.HasAACPacketType = true
		hdr.AACPacketType = AACPacketType(pt)
		n++
	}
	return hdr, n, nil
}

func decodeVideoTagHeader(q *bitio.Queue) (VideoTagHeader, int, error) {
	first, err := q.DrainU8()
	if err != nil {
		return VideoTagHeader{}, 0, fmt.Errorf("flv: decode video header: %w", err)
	}
	b := bitio.BitReader8(first)
	frameType, err := b.Range(0, 3)
	if err != nil {
		return VideoTagHeader{}, 0, err
	}
	codecID, err := b.Range(4, 7)
	if err != nil {
		return VideoTagHeader{}, 0, err
	}

	hdr := VideoTagHeader{
		FrameType: FrameType(frameType),
		CodecID:   VideoCodecID(codecID),
	}

	n := 1
	if hdr.CodecID == VideoCodecAVC {
		pt, err := q.DrainU8()
		if err != nil {
			return VideoTagHeader{}, 0, fmt.Errorf("flv: decode avc_packet_type: %w", err)
		}
		cto, err := q.DrainI24BE()
		if err != nil {
			return VideoTagHeader{}, 0, fmt.Errorf("flv: decode composition_time_offset: %w", err)
		}
		hdr.HasAVCFields = true
		hdr.AVCPacketType = AVCPacketType(pt)
		hdr.CompositionTimeOffset = cto
		n += 4
	}
	return hdr, n, nil
}
