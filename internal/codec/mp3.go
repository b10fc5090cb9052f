package codec

import (
	"fmt"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
)

// MP3Version is the 2-bit MPEG audio version field.
type MP3Version uint8

const (
	MP3VersionMPEG25     MP3Version = 0
	MP3VersionReserved   MP3Version = 1
	MP3VersionMPEG2      MP3Version = 2
	MP3VersionMPEG1      MP3Version = 3
)

// MP3Layer is the 2-bit MPEG audio layer field.
type MP3Layer uint8

const (
	MP3LayerReserved MP3Layer = 0
	MP3LayerL3       MP3Layer = 1
	MP3LayerL2       MP3Layer = 2
	MP3LayerL1       MP3Layer = 3
)

// MP3Channel is the 2-bit channel-mode field.
type MP3Channel uint8

const (
	MP3ChannelStereo      MP3Channel = 0
	MP3ChannelJointStereo MP3Channel = 1
	MP3ChannelDual        MP3Channel = 2
	MP3ChannelMono        MP3Channel = 3
)

const mp3SyncWord = 0x07FF

// sample-rate tables indexed by the 2-bit sampling_rate_index, one per
// MPEG version (index 3 is reserved/unused in each).
var (
	mp3SampleRatesMPEG1  = [4]int{44100, 48000, 32000, 0}
	mp3SampleRatesMPEG2  = [4]int{22050, 24000, 16000, 0}
	mp3SampleRatesMPEG25 = [4]int{11025, 12000, 8000, 0}
)

// bitrate tables (kbps) indexed by the 4-bit bitrate_index, one per layer.
var (
	mp3BitratesL1 = [16]int{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}
	mp3BitratesL2 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0}
	mp3BitratesL3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
)

// MP3Frame is the parsed standard MPEG audio frame header plus the frame
// body.
type MP3Frame struct {
	Version          MP3Version
	Layer            MP3Layer
	Protected        bool
	SampleRate       int
	BitrateKbps      int
	Channel          MP3Channel
	ChannelExtension uint8 // only meaningful if Channel == MP3ChannelJointStereo
	Body             []byte
}

// ParseMP3Frame decodes the first 32 bits of an MP3 payload as the
// standard MPEG audio frame header.
func ParseMP3Frame(body []byte) (MP3Frame, error) {
	if len(body) < 4 {
		return MP3Frame{}, fmt.Errorf("%w: mp3 frame header needs 4 bytes, got %d", ErrStructural, len(body))
	}

	header := bitio.NewBitIo32BE([4]byte{body[0], body[1], body[2], body[3]})

	sync, err := header.Range(0, 10)
	if err != nil {
		return MP3Frame{}, err
	}
	if sync != mp3SyncWord {
		return MP3Frame{}, fmt.Errorf("%w: mp3 sync word mismatch, got 0x%03X", ErrStructural, sync)
	}

	versionBits, err := header.Range(11, 12)
	if err != nil {
		return MP3Frame{}, err
	}
	layerBits, err := header.Range(13, 14)
	if err != nil {
		return MP3Frame{}, err
	}
	protectionBit, err := header.Range(15, 15)
	if err != nil {
		return MP3Frame{}, err
	}
	bitrateIndex, err := header.Range(16, 19)
	if err != nil {
		return MP3Frame{}, err
	}
	sampleRateIndex, err := header.Range(20, 21)
	if err != nil {
		return MP3Frame{}, err
	}
	channelBits, err := header.Range(24, 25)
	if err != nil {
		return MP3Frame{}, err
	}

	version := MP3Version(versionBits)
	layer := MP3Layer(layerBits)

	sampleRate, err := mp3SampleRate(version, uint8(sampleRateIndex))
	if err != nil {
		return MP3Frame{}, err
	}
	bitrate, err := mp3Bitrate(layer, uint8(bitrateIndex))
	if err != nil {
		return MP3Frame{}, err
	}

	channel := MP3Channel(channelBits)
	var ext uint8
	if channel == MP3ChannelJointStereo {
		extBits, err := header.Range(26, 27)
		if err != nil {
			return MP3Frame{}, err
		}
		ext = uint8(extBits)
	}

	return MP3Frame{
		Version:          version,
		Layer:            layer,
		Protected:        protectionBit == 0,
		SampleRate:       sampleRate,
		BitrateKbps:      bitrate,
		Channel:          channel,
		ChannelExtension: ext,
		Body:             body,
	}, nil
}

func mp3SampleRate(version MP3Version, index uint8) (int, error) {
	var table [4]int
	switch version {
	case MP3VersionMPEG1:
		table = mp3SampleRatesMPEG1
	case MP3VersionMPEG2:
		table = mp3SampleRatesMPEG2
	case MP3VersionMPEG25:
		table = mp3SampleRatesMPEG25
	default:
		return 0, fmt.Errorf("%w: invalid mp3 version %d", ErrStructural, version)
	}
	if int(index) >= len(table) || table[index] == 0 {
		return 0, fmt.Errorf("%w: invalid mp3 sampling_rate_index %d for version %d", ErrStructural, index, version)
	}
	return table[index], nil
}

func mp3Bitrate(layer MP3Layer, index uint8) (int, error) {
	var table [16]int
	switch layer {
	case MP3LayerL1:
		table = mp3BitratesL1
	case MP3LayerL2:
		table = mp3BitratesL2
	case MP3LayerL3:
		table = mp3BitratesL3
	default:
		return 0, fmt.Errorf("%w: invalid mp3 layer %d", ErrStructural, layer)
	}
	if int(index) >= len(table) {
		return 0, fmt.Errorf("%w: bitrate index %d out of range", ErrStructural, index)
	}
	return table[index], nil
}

// MP3FrameSamples returns the number of PCM samples per frame for the
// given version/layer combination: 1152 for MPEG-1 Layer III, 576 for
// MPEG-2/2.5 Layer III. Used to derive a frame's default sample duration
// when no lookahead correction is available.
func MP3FrameSamples(version MP3Version, layer MP3Layer) (int, error) {
	if layer != MP3LayerL3 {
		return 0, fmt.Errorf("%w: frame-sample lookup only defined for layer III", ErrUnsupported)
	}
	if version == MP3VersionMPEG1 {
		return 1152, nil
	}
	return 576, nil
}
