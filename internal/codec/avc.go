package codec

import (
	"encoding/binary"
	"fmt"
)

// AVCDecoderConfig is the parsed AVC sequence-header payload: the verbatim
// decoder configuration record blob (stored as the content of the avcC
// box) plus the profile/level bytes used to format an MSE codec string.
type AVCDecoderConfig struct {
	Raw                   []byte // entire body, verbatim
	ProfileIndication     uint8
	ProfileCompatibility  uint8
	LevelIndication       uint8
}

// ParseAVCSequenceHeader stores the AVC decoder configuration record
// verbatim and extracts the profile/compatibility/level bytes at offsets
// 1, 2, 3.
func ParseAVCSequenceHeader(body []byte) (AVCDecoderConfig, error) {
	if len(body) < 4 {
		return AVCDecoderConfig{}, fmt.Errorf("%w: avc decoder config needs at least 4 bytes, got %d", ErrStructural, len(body))
	}
	raw := make([]byte, len(body))
	copy(raw, body)
	return AVCDecoderConfig{
		Raw:                  raw,
		ProfileIndication:    body[1],
		ProfileCompatibility: body[2],
		LevelIndication:      body[3],
	}, nil
}

// CodecString formats the MSE-compatible "avc1.XXYYZZ" codec string.
func (c AVCDecoderConfig) CodecString() string {
	return fmt.Sprintf("avc1.%02X%02X%02X", c.ProfileIndication, c.ProfileCompatibility, c.LevelIndication)
}

// AVCNALU is one parsed AVC NALU tag payload, already length-prefixed (or
// coerced from a single Annex-B start code).
type AVCNALU struct {
	Data       []byte
	IsKeyframe bool
}

// ParseAVCNALU returns the tag body for embedding directly into an mdat,
// rewriting a leading Annex-B start code (0x00000001) into the NALU's
// big-endian length prefix when present. It only rewrites the first four
// bytes: it assumes the body is a single length-prefixed NALU with a start
// code only at offset 0, not a general Annex-B bitstream scanner.
func ParseAVCNALU(body []byte, frameType uint8) (AVCNALU, error) {
	if len(body) < 4 {
		return AVCNALU{}, fmt.Errorf("%w: avc nalu needs at least 4 bytes, got %d", ErrStructural, len(body))
	}

	data := make([]byte, len(body))
	copy(data, body)

	if binary.BigEndian.Uint32(data[0:4]) == 1 {
		binary.BigEndian.PutUint32(data[0:4], uint32(len(data)-4))
	}

	return AVCNALU{
		Data:       data,
		IsKeyframe: frameType == 1,
	}, nil
}

// AVCEndOfSequence is the sentinel produced by an AVC end-of-sequence tag
// (avc_packet_type == 2); it carries no payload.
type AVCEndOfSequence struct{}

// ParseAVCEndOfSequence returns the end-of-sequence sentinel.
func ParseAVCEndOfSequence() AVCEndOfSequence {
	return AVCEndOfSequence{}
}
