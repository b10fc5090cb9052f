package flv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
)

func TestDecodeHeader(t *testing.T) {
	q := bitio.NewQueue([]byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09})
	h, err := DecodeHeader(q)
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, uint8(1), h.Version)
	assert.True(t, h.HasAudio)
	assert.True(t, h.HasVideo)
	assert.Equal(t, uint32(9), h.DataOffset)
	assert.Equal(t, 0, q.Len())
}

func TestDecodeHeaderInvalidSignature(t *testing.T) {
	q := bitio.NewQueue([]byte{'X', 'X', 'X', 0x01, 0x00, 0x00, 0x00, 0x00, 0x09})
	h, err := DecodeHeader(q)
	require.NoError(t, err)
	assert.False(t, h.Valid())
}

func aacSequenceHeaderTag(timestamp uint32) []byte {
	// tag header byte: filter=0, tag_type=8 (Audio) -> 0b00001000
	body := []byte{0x12, 0x10} // format=AAC(a), aac_packet_type=0, object_type=2 freq=4 channels=2
	dataSize := 2 + len(body)  // audio header byte + aac_packet_type + body
	buf := []byte{
		0x08,
		byte(dataSize >> 16), byte(dataSize >> 8), byte(dataSize),
		byte(timestamp >> 16), byte(timestamp >> 8), byte(timestamp),
		byte(timestamp >> 24),
		0, 0, 0, // stream id
		0xAF, 0x00, // sound_format=10(AAC)<<4 | rate<<2|size<<1|type=0xF -> 0xAF, aac_packet_type=0
	}
	buf = append(buf, body...)
	return buf
}

func TestDecodeTagAudioAACSequenceHeader(t *testing.T) {
	raw := aacSequenceHeaderTag(0)
	q := bitio.NewQueue(raw)
	tag, err := DecodeTag(q)
	require.NoError(t, err)
	assert.Equal(t, TagTypeAudio, tag.Type)
	require.NotNil(t, tag.AudioHeader)
	assert.Equal(t, SoundFormatAAC, tag.AudioHeader.SoundFormat)
	assert.True(t, tag.AudioHeader.HasAACPacketType)
	assert.Equal(t, AACPacketTypeSequenceHeader, tag.AudioHeader.AACPacketType)
	assert.Equal(t, []byte{0x12, 0x10}, tag.Body)
}

func TestDecodeTagVideoAVCSequenceHeader(t *testing.T) {
	avcConfig := make([]byte, 39)
	avcConfig[0] = 0x01
	avcConfig[1] = 0x42
	avcConfig[2] = 0x00
	avcConfig[3] = 0x1E

	body := avcConfig
	dataSize := 5 + len(body) // video header(1) + avc_packet_type(1) + cto(3)
	buf := []byte{
		0x09, // filter=0, tag_type=9 (Video)
		byte(dataSize >> 16), byte(dataSize >> 8), byte(dataSize),
		0, 0, 0, // timestamp short
		0,       // timestamp ext
		0, 0, 0, // stream id
		0x17,             // video header: frame_type=1(key), codec_id=7(AVC)
		0x00,             // avc_packet_type = 0 (seq header)
		0x00, 0x00, 0x00, // composition_time_offset = 0
	}
	buf = append(buf, body...)

	q := bitio.NewQueue(buf)
	tag, err := DecodeTag(q)
	require.NoError(t, err)
	assert.Equal(t, TagTypeVideo, tag.Type)
	require.NotNil(t, tag.VideoHeader)
	assert.Equal(t, FrameTypeKey, tag.VideoHeader.FrameType)
	assert.Equal(t, VideoCodecAVC, tag.VideoHeader.CodecID)
	assert.Equal(t, AVCPacketTypeSequenceHeader, tag.VideoHeader.AVCPacketType)
	assert.Equal(t, avcConfig, tag.Body)
}

func TestDecodeTagEncryptedTagSkipsPerTypeParsing(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	dataSize := len(payload)
	buf := []byte{
		0x28, // filter=1, tag_type=8 (Audio): 0b00101000
		byte(dataSize >> 16), byte(dataSize >> 8), byte(dataSize),
		0, 0, 0, // timestamp short
		0,       // timestamp ext
		0, 0, 0, // stream id
	}
	buf = append(buf, payload...)

	q := bitio.NewQueue(buf)
	tag, err := DecodeTag(q)
	require.NoError(t, err)
	assert.True(t, tag.Filter)
	require.NotNil(t, tag.EncryptionHeader)
	require.NotNil(t, tag.FilterParams)
	assert.Nil(t, tag.AudioHeader, "an encrypted tag's per-type header is opaque and must not be parsed")
	assert.Equal(t, payload, tag.Body, "an encrypted tag's whole data_size is drained verbatim")
}

func TestDecodeTagUnsupportedType(t *testing.T) {
	buf := []byte{
		0x1F, // tag_type = 31, invalid
		0, 0, 0,
		0, 0, 0,
		0,
		0, 0, 0,
	}
	q := bitio.NewQueue(buf)
	_, err := DecodeTag(q)
	assert.ErrorIs(t, err, ErrUnsupportedTagType)
}

func TestDecodeTagRewindsOnMidTagShortRead(t *testing.T) {
	full := aacSequenceHeaderTag(0)
	truncated := full[:len(full)-1] // 11-byte header decodes fine, body drain falls one byte short

	q := bitio.NewQueue(truncated)
	mark := q.Mark()

	_, err := DecodeTag(q)
	require.ErrorIs(t, err, bitio.ErrShortRead)
	assert.Equal(t, mark, q.Mark(), "a short read partway through the body must rewind past the already-decoded header")
	assert.Equal(t, len(truncated), q.Len())

	q.Append(full[len(full)-1:])
	tag, err := DecodeTag(q)
	require.NoError(t, err, "retrying after appending the missing byte should decode cleanly from the rewound position")
	assert.Equal(t, []byte{0x12, 0x10}, tag.Body)
}

func TestDecodeBodyLoopRewindsOnMidRecordShortRead(t *testing.T) {
	tagBytes := aacSequenceHeaderTag(0)
	var stream []byte
	stream = append(stream, 0, 0, 0, 0) // initial prev_tag_size = 0
	stream = append(stream, tagBytes[:len(tagBytes)-1]...)

	q := bitio.NewQueue(stream)
	var tags []Tag
	dec := NewDecoder(q, DecoderConfig{OnTag: func(tag Tag) error {
		tags = append(tags, tag)
		return nil
	}})

	require.NoError(t, dec.DecodeBodyLoop(), "short read mid-record is treated as a clean pause, not an error")
	assert.Empty(t, tags, "the incomplete record must not be delivered to OnTag")

	q.Append(tagBytes[len(tagBytes)-1:])
	require.NoError(t, dec.DecodeBodyLoop())
	require.Len(t, tags, 1, "resuming after the missing byte arrives must decode the full record exactly once")
}

func TestDecodeBodyLoopIntegrityMismatch(t *testing.T) {
	tagBytes := aacSequenceHeaderTag(0)

	var stream []byte
	stream = append(stream, 0, 0, 0, 0) // initial prev_tag_size = 0
	stream = append(stream, tagBytes...)
	// corrupt prev_tag_size for the *next* record
	stream = append(stream, 0, 0, 0, 1)

	q := bitio.NewQueue(stream)
	var tags []Tag
	dec := NewDecoder(q, DecoderConfig{OnTag: func(tag Tag) error {
		tags = append(tags, tag)
		return nil
	}})
	err := dec.DecodeBodyLoop()
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Len(t, tags, 1)
}

func TestDecodeBodyLoopCleanEnd(t *testing.T) {
	tagBytes := aacSequenceHeaderTag(0)
	var stream []byte
	stream = append(stream, 0, 0, 0, 0)
	stream = append(stream, tagBytes...)

	q := bitio.NewQueue(stream)
	var count int
	dec := NewDecoder(q, DecoderConfig{OnTag: func(Tag) error {
		count++
		return nil
	}})
	require.NoError(t, dec.DecodeBodyLoop())
	assert.Equal(t, 1, count)
}

func TestDecodeValueNumber(t *testing.T) {
	q := bitio.NewQueue([]byte{0x00, 0x40, 0x24, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	v, err := decodeValue(q)
	require.NoError(t, err)
	n, ok := v.(Number)
	require.True(t, ok)
	assert.InDelta(t, 10.0, float64(n), 1e-9)
}

func TestDecodeValueEcmaArrayOnMetaData(t *testing.T) {
	// ecma array with 1 property "duration": Number(10.0), count-based termination
	var buf []byte
	buf = append(buf, 0x08)             // marker EcmaArray
	buf = append(buf, 0, 0, 0, 1)        // count = 1 (but count+1 pairs are read)
	buf = append(buf, 0, 8)              // name length 8
	buf = append(buf, []byte("duration")...)
	buf = append(buf, 0x00)              // Number marker
	buf = append(buf, 0x40, 0x24, 0, 0, 0, 0, 0, 0) // 10.0
	buf = append(buf, 0, 0)              // empty name
	buf = append(buf, 0x09)              // ObjectEndMarker

	q := bitio.NewQueue(buf)
	v, err := decodeValue(q)
	require.NoError(t, err)
	arr, ok := v.(EcmaArray)
	require.True(t, ok)
	require.Len(t, arr.Properties, 1)
	assert.Equal(t, "duration", arr.Properties[0].Name)
	dur, ok := AsNumber(arr.Properties, "duration")
	require.True(t, ok)
	assert.InDelta(t, 10.0, dur, 1e-9)
}

func TestDecodeObjectTerminatesOnObjectEnd(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x03) // marker Object
	buf = append(buf, 0, 5)
	buf = append(buf, []byte("width")...)
	buf = append(buf, 0x00)
	buf = append(buf, 0x40, 0x84, 0, 0, 0, 0, 0, 0) // 640.0
	buf = append(buf, 0, 0)
	buf = append(buf, 0x09)

	q := bitio.NewQueue(buf)
	v, err := decodeValue(q)
	require.NoError(t, err)
	obj, ok := v.(Object)
	require.True(t, ok)
	require.Len(t, obj.Properties, 1)
	w, ok := AsNumber(obj.Properties, "width")
	require.True(t, ok)
	assert.InDelta(t, 640.0, w, 1e-9)
}
