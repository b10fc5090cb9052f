package codec

import (
	"fmt"

	"github.com/mediaflux/flv2fmp4/internal/flv"
)

// AudioParseResult is the tagged union of decoded audio payload kinds.
type AudioParseResult struct {
	AACSequenceHeader *AACSequenceHeader
	AACRaw            *AACRaw
	MP3Frame          *MP3Frame
}

// ParseAudioTag dispatches an audio tag's body to the AAC or MP3 parser
// based on its header fields (sound_format 2 => MP3, 10 => AAC).
func ParseAudioTag(header flv.AudioTagHeader, body []byte) (AudioParseResult, error) {
	switch header.SoundFormat {
	case flv.SoundFormatMP3:
		frame, err := ParseMP3Frame(body)
		if err != nil {
			return AudioParseResult{}, err
		}
		return AudioParseResult{MP3Frame: &frame}, nil
	case flv.SoundFormatAAC:
		if !header.HasAACPacketType {
			return AudioParseResult{}, fmt.Errorf("%w: aac tag missing aac_packet_type", ErrStructural)
		}
		switch header.AACPacketType {
		case flv.AACPacketTypeSequenceHeader:
			seq, err := ParseAACSequenceHeader(body)
			if err != nil {
				return AudioParseResult{}, err
			}
			return AudioParseResult{AACSequenceHeader: &seq}, nil
		case flv.AACPacketTypeRaw:
			raw := ParseAACRaw(body)
			return AudioParseResult{AACRaw: &raw}, nil
		default:
			return AudioParseResult{}, fmt.Errorf("%w: aac_packet_type %d", ErrUnsupported, header.AACPacketType)
		}
	default:
		return AudioParseResult{}, fmt.Errorf("%w: sound_format %d", ErrUnsupported, header.SoundFormat)
	}
}

// VideoParseResult is the tagged union of decoded video payload kinds.
type VideoParseResult struct {
	SequenceHeader *AVCDecoderConfig
	NALU           *AVCNALU
	EndOfSequence  *AVCEndOfSequence
}

// ParseVideoTag dispatches a video tag's body based on its avc_packet_type.
func ParseVideoTag(header flv.VideoTagHeader, body []byte) (VideoParseResult, error) {
	if header.CodecID != flv.VideoCodecAVC {
		return VideoParseResult{}, fmt.Errorf("%w: codec_id %d", ErrUnsupported, header.CodecID)
	}
	if !header.HasAVCFields {
		return VideoParseResult{}, fmt.Errorf("%w: avc tag missing avc_packet_type", ErrStructural)
	}

	switch header.AVCPacketType {
	case flv.AVCPacketTypeSequenceHeader:
		cfg, err := ParseAVCSequenceHeader(body)
		if err != nil {
			return VideoParseResult{}, err
		}
		return VideoParseResult{SequenceHeader: &cfg}, nil
	case flv.AVCPacketTypeNALU:
		nalu, err := ParseAVCNALU(body, uint8(header.FrameType))
		if err != nil {
			return VideoParseResult{}, err
		}
		return VideoParseResult{NALU: &nalu}, nil
	case flv.AVCPacketTypeEndOfSequence:
		eos := ParseAVCEndOfSequence()
		return VideoParseResult{EndOfSequence: &eos}, nil
	default:
		return VideoParseResult{}, fmt.Errorf("%w: avc_packet_type %d", ErrUnsupported, header.AVCPacketType)
	}
}
