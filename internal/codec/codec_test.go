package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/flv2fmp4/internal/flv"
)

func TestParseAACSequenceHeader(t *testing.T) {
	seq, err := ParseAACSequenceHeader([]byte{0x12, 0x10})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), seq.ObjectType)
	assert.Equal(t, uint8(4), seq.SamplingFrequencyIndex)
	assert.Equal(t, uint8(2), seq.ChannelConfiguration)
	assert.Equal(t, 44100, seq.SampleRate)
	assert.Equal(t, "mp4a.40.2", seq.CodecString())
	assert.Equal(t, []byte{0x12, 0x10}, seq.Raw)
}

func TestParseAACSequenceHeaderTooShort(t *testing.T) {
	_, err := ParseAACSequenceHeader([]byte{0x12})
	assert.ErrorIs(t, err, ErrStructural)
}

func TestAACSampleRateOutOfRange(t *testing.T) {
	_, err := AACSampleRate(13)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestParseMP3FrameMPEG1L3Stereo128kbps441(t *testing.T) {
	// FF FB 90 00: sync=0x7FF, version=MPEG1(3), layer=L3(1), protection=1(not protected),
	// bitrate_index=9(128kbps), sample_rate_index=0(44100), padding=0, channel=Stereo(0)
	frame, err := ParseMP3Frame([]byte{0xFF, 0xFB, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, MP3VersionMPEG1, frame.Version)
	assert.Equal(t, MP3LayerL3, frame.Layer)
	assert.Equal(t, 44100, frame.SampleRate)
	assert.Equal(t, 128, frame.BitrateKbps)
	assert.Equal(t, MP3ChannelStereo, frame.Channel)
}

func TestParseMP3FrameBadSync(t *testing.T) {
	_, err := ParseMP3Frame([]byte{0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrStructural)
}

func TestMP3FrameSamples(t *testing.T) {
	n, err := MP3FrameSamples(MP3VersionMPEG1, MP3LayerL3)
	require.NoError(t, err)
	assert.Equal(t, 1152, n)

	n, err = MP3FrameSamples(MP3VersionMPEG2, MP3LayerL3)
	require.NoError(t, err)
	assert.Equal(t, 576, n)

	n, err = MP3FrameSamples(MP3VersionMPEG25, MP3LayerL3)
	require.NoError(t, err)
	assert.Equal(t, 576, n)
}

func TestParseAVCSequenceHeader(t *testing.T) {
	body := make([]byte, 39)
	body[0] = 0x01
	body[1] = 0x42
	body[2] = 0x00
	body[3] = 0x1E

	cfg, err := ParseAVCSequenceHeader(body)
	require.NoError(t, err)
	assert.Equal(t, "avc1.42001E", cfg.CodecString())
	assert.Equal(t, body, cfg.Raw)
}

func TestParseAVCNALURewritesStartCode(t *testing.T) {
	body := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0xAA, 0xBB}
	nalu, err := ParseAVCNALU(body, 1)
	require.NoError(t, err)
	assert.True(t, nalu.IsKeyframe)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x03}, nalu.Data[0:4], "length prefix should be payload length (3 bytes after the 4-byte prefix)")
}

func TestParseAVCNALUAlreadyLengthPrefixed(t *testing.T) {
	body := []byte{0x00, 0x00, 0x00, 0x03, 0x65, 0xAA, 0xBB}
	nalu, err := ParseAVCNALU(body, 2)
	require.NoError(t, err)
	assert.False(t, nalu.IsKeyframe)
	assert.Equal(t, body, nalu.Data)
}

func TestParseAudioTagDispatchMP3(t *testing.T) {
	header := flv.AudioTagHeader{SoundFormat: flv.SoundFormatMP3}
	result, err := ParseAudioTag(header, []byte{0xFF, 0xFB, 0x90, 0x00})
	require.NoError(t, err)
	require.NotNil(t, result.MP3Frame)
}

func TestParseAudioTagDispatchUnsupported(t *testing.T) {
	header := flv.AudioTagHeader{SoundFormat: 99}
	_, err := ParseAudioTag(header, []byte{0x00})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseVideoTagDispatchEndOfSequence(t *testing.T) {
	header := flv.VideoTagHeader{CodecID: flv.VideoCodecAVC, HasAVCFields: true, AVCPacketType: flv.AVCPacketTypeEndOfSequence}
	result, err := ParseVideoTag(header, nil)
	require.NoError(t, err)
	assert.NotNil(t, result.EndOfSequence)
}
