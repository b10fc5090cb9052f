package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
)

// AACSampleRates is the 13-entry AAC sampling-frequency-index table.
var AACSampleRates = [13]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000,
	22050, 16000, 12000, 11025, 8000, 7350,
}

// AACSampleRate resolves a 4-bit sampling_frequency_index into Hz.
func AACSampleRate(index uint8) (int, error) {
	if int(index) >= len(AACSampleRates) {
		return 0, fmt.Errorf("%w: aac sampling_frequency_index %d out of range", ErrStructural, index)
	}
	return AACSampleRates[index], nil
}

// AACSequenceHeader is the parsed content of an AAC sequence-header tag:
// the two-byte AudioSpecificConfig bitfield, retained verbatim for the
// esds/ASC chain, plus its decoded fields.
type AACSequenceHeader struct {
	ObjectType              uint8
	SamplingFrequencyIndex  uint8
	ChannelConfiguration    uint8
	SampleRate              int
	Raw                     []byte // the verbatim 2-byte ASC
}

// ParseAACSequenceHeader decodes the first two bytes of an AAC sequence
// header payload into its packed bit fields: bits 0..4 audio_object_type,
// bits 5..8 sampling_frequency_index, bits 9..12 channel_configuration.
func ParseAACSequenceHeader(body []byte) (AACSequenceHeader, error) {
	if len(body) < 2 {
		return AACSequenceHeader{}, fmt.Errorf("%w: aac sequence header needs 2 bytes, got %d", ErrStructural, len(body))
	}

	var asc mpeg4audio.AudioSpecificConfig
	if err := asc.Unmarshal(body[:2]); err != nil {
		return AACSequenceHeader{}, fmt.Errorf("%w: aac asc unmarshal: %v", ErrStructural, err)
	}

	sampleRateIndex := sampleRateIndexFor(asc.SampleRate)

	raw := make([]byte, 2)
	copy(raw, body[:2])

	return AACSequenceHeader{
		ObjectType:             uint8(asc.Type),
		SamplingFrequencyIndex: sampleRateIndex,
		ChannelConfiguration:   uint8(asc.ChannelCount),
		SampleRate:             asc.SampleRate,
		Raw:                    raw,
	}, nil
}

func sampleRateIndexFor(rate int) uint8 {
	for i, r := range AACSampleRates {
		if r == rate {
			return uint8(i)
		}
	}
	return 0xFF
}

// AACRaw is a pass-through AAC media payload: the body carries one AAC
// frame untouched.
type AACRaw struct {
	Payload []byte
}

// ParseAACRaw wraps a raw AAC payload with no transformation.
func ParseAACRaw(body []byte) AACRaw {
	return AACRaw{Payload: body}
}

// CodecString formats the MSE-compatible "mp4a.40.<OTI>" codec string for
// an AAC object type.
func (h AACSequenceHeader) CodecString() string {
	return fmt.Sprintf("mp4a.40.%d", h.ObjectType)
}
