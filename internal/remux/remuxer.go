package remux

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mediaflux/flv2fmp4/internal/codec"
	"github.com/mediaflux/flv2fmp4/internal/flv"
	"github.com/mediaflux/flv2fmp4/internal/fmp4"
	"github.com/mediaflux/flv2fmp4/internal/observability"
)

// UnsupportedKind distinguishes the reasons PushTag can report an
// unsupported-content event rather than a fatal error.
type UnsupportedKind int

const (
	// UnsupportedEncryptedTag marks a tag whose filter bit is set: its
	// encryption_header and filter_params are recognized but unimplemented.
	UnsupportedEncryptedTag UnsupportedKind = iota
	// UnsupportedCodec marks a codec id or packet type outside AAC/MP3/AVC.
	UnsupportedCodec
)

func (k UnsupportedKind) String() string {
	switch k {
	case UnsupportedEncryptedTag:
		return "encrypted_tag"
	case UnsupportedCodec:
		return "codec"
	default:
		return "unknown"
	}
}

// UnsupportedEvent is delivered to Config.OnUnsupported when the stream
// contains content this remuxer recognizes but does not implement. The
// stream is considered terminated cleanly after this fires: PushTag
// becomes a no-op for every tag that follows.
type UnsupportedEvent struct {
	Kind   UnsupportedKind
	Reason string
}

// DecoderConfigEvent notifies the caller that a track's codec
// configuration is known, carrying both the MSE codec string and the raw
// numeric fields it was built from, so an embedder can build its own
// codec-string variant or compare profiles without re-parsing the
// formatted string.
type DecoderConfigEvent struct {
	IsVideo bool

	CodecString string

	// Audio
	AudioObjectType uint8
	SampleRate      int
	ChannelCount    int

	// Video
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
}

// Config wires the Remuxer's output callbacks in the same callback-based
// style used by this codebase's other stream demuxers.
type Config struct {
	Logger *slog.Logger

	// OnHeader fires exactly once, with the serialized ftyp+moov init
	// segment, on the first sample tag processed after every declared
	// track has supplied its codec configuration. The configured/sent
	// gate is checked at the top of each tag's handling, so the header is
	// deferred to the next tag rather than fired the instant configuration
	// completes mid-tag.
	OnHeader func(header []byte) error

	// OnVideoFragment and OnAudioFragment fire once per emitted sample,
	// each with a serialized moof+mdat fragment.
	OnVideoFragment func(fragment []byte) error
	OnAudioFragment func(fragment []byte) error

	// OnDecoderConfig fires once per track, as soon as that track's
	// sequence header (or, for MP3, its first frame) is parsed.
	OnDecoderConfig func(DecoderConfigEvent) error

	// OnUnsupported fires once, for an encrypted tag or a codec id/packet
	// type this remuxer does not implement. No further fragments are
	// produced afterward; the stream terminates cleanly rather than with
	// an error.
	OnUnsupported func(UnsupportedEvent) error

	// OnEndOfSequence fires when an AVC end-of-sequence tag arrives, after
	// any buffered tail sample has been flushed.
	OnEndOfSequence func() error
}

// Remuxer drives Context, per-track state, and the one-sample lookahead
// buffers from a stream of decoded FLV tags to fMP4 output.
type Remuxer struct {
	config Config
	logger *slog.Logger

	ctx *Context

	videoTrack *TrackContext
	audioTrack *TrackContext

	videoPending *pendingSample
	audioPending *pendingSample

	frameCount uint32

	// pendingAudioFragment buffers the very first MP3 fragment built
	// before the header has been sent; it is flushed immediately after
	// OnHeader fires.
	pendingAudioFragment []byte

	// terminated is set once OnUnsupported has fired; every later PushTag
	// call is then a no-op, so the stream ends cleanly instead of erroring.
	terminated bool
}

// NewRemuxer constructs a Remuxer ready to receive decoded FLV tags.
func NewRemuxer(config Config) *Remuxer {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = observability.WithComponent(logger, "remux")
	return &Remuxer{
		config:     config,
		logger:     logger,
		ctx:        NewContext(),
		videoTrack: NewTrackContext(fmp4.VideoTrackID, TrackTypeVideo),
		audioTrack: NewTrackContext(fmp4.AudioTrackID, TrackTypeAudio),
	}
}

// PushHeader records the FLV file header's audio/video presence flags.
func (r *Remuxer) PushHeader(header flv.Header) {
	r.ctx.ParseFLVHeader(header)
}

// PushMetadata records an onMetaData script tag's properties.
func (r *Remuxer) PushMetadata(body *flv.ScriptTagBody) {
	if body == nil {
		return
	}
	r.ctx.ParseMetadata(flv.Properties(body.Value))
}

// PushTag processes one decoded FLV tag: audio and video tags are parsed
// by the codec package and fed through the state machine; script tags
// other than onMetaData are ignored. An encrypted tag (filter bit set)
// reports UnsupportedEncryptedTag and terminates the stream cleanly; once
// terminated, every later call is a no-op.
func (r *Remuxer) PushTag(tag flv.Tag) error {
	if r.terminated {
		return nil
	}

	r.logger.Debug("push tag", "type", tag.Type, "data_size", tag.DataSize, "timestamp", tag.Timestamp, "filter", tag.Filter)

	if tag.Filter {
		return r.notifyUnsupported(UnsupportedEncryptedTag, fmt.Errorf("%s tag has filter bit set", tag.Type))
	}

	switch tag.Type {
	case flv.TagTypeAudio:
		return r.handleAudioTag(tag)
	case flv.TagTypeVideo:
		return r.handleVideoTag(tag)
	case flv.TagTypeScript:
		if tag.ScriptBody != nil && tag.ScriptBody.Name == "onMetaData" {
			r.PushMetadata(tag.ScriptBody)
		}
		return nil
	default:
		return nil
	}
}

// notifyUnsupported marks the stream terminated and, if OnUnsupported is
// set, reports the event to the embedder. Returning nil here (rather than
// the underlying reason as an error) is what makes termination clean.
func (r *Remuxer) notifyUnsupported(kind UnsupportedKind, reason error) error {
	r.terminated = true
	r.logger.Warn("unsupported content, terminating stream", "kind", kind, "reason", reason)
	if r.config.OnUnsupported == nil {
		return nil
	}
	return r.config.OnUnsupported(UnsupportedEvent{Kind: kind, Reason: reason.Error()})
}

func (r *Remuxer) handleAudioTag(tag flv.Tag) error {
	if tag.AudioHeader == nil {
		return fmt.Errorf("remux: audio tag missing header")
	}
	parsed, err := codec.ParseAudioTag(*tag.AudioHeader, tag.Body)
	if err != nil {
		if errors.Is(err, codec.ErrUnsupported) {
			return r.notifyUnsupported(UnsupportedCodec, err)
		}
		if errors.Is(err, codec.ErrStructural) {
			r.logger.Warn("skipping malformed audio tag", "error", err)
			return nil
		}
		return fmt.Errorf("remux: parse audio tag: %w", err)
	}

	if r.ctx.IsConfigured() {
		if err := r.ensureHeaderSent(); err != nil {
			return err
		}
		return r.emitAudioSample(tag, parsed)
	}

	return r.configureAudio(tag, parsed)
}

func (r *Remuxer) configureAudio(tag flv.Tag, parsed codec.AudioParseResult) error {
	switch {
	case parsed.AACSequenceHeader != nil:
		seq := parsed.AACSequenceHeader
		sampleRate, err := codec.AACSampleRate(seq.SamplingFrequencyIndex)
		if err != nil {
			return fmt.Errorf("remux: configure aac: %w", err)
		}
		r.ctx.ConfigureAudioCodec(sampleRate, seq.ChannelConfiguration, 0, seq.Raw)
		return r.notifyDecoderConfig(DecoderConfigEvent{
			IsVideo:         false,
			CodecString:     seq.CodecString(),
			AudioObjectType: seq.ObjectType,
			SampleRate:      sampleRate,
			ChannelCount:    int(seq.ChannelConfiguration),
		})
	case parsed.MP3Frame != nil:
		frame := parsed.MP3Frame
		channels := mp3ChannelCount(frame.Channel)
		channelsExtended := uint8(0)
		if frame.Channel == codec.MP3ChannelJointStereo {
			channelsExtended = frame.ChannelExtension
		}
		r.ctx.ConfigureAudioCodec(frame.SampleRate, channels, channelsExtended, nil)

		// MP3 carries its own header per frame, so the very first frame
		// is both configuration and data: stage it as the fragment to
		// flush right after the header.
		if err := r.stageFirstMP3Fragment(tag, *frame); err != nil {
			return err
		}

		return r.notifyDecoderConfig(DecoderConfigEvent{
			IsVideo:      false,
			CodecString:  "mp3",
			SampleRate:   frame.SampleRate,
			ChannelCount: int(channels),
		})
	default:
		return fmt.Errorf("remux: configure audio: aac format header not set")
	}
}

func mp3ChannelCount(ch codec.MP3Channel) uint8 {
	switch ch {
	case codec.MP3ChannelMono:
		return 1
	default:
		return 2
	}
}

func (r *Remuxer) stageFirstMP3Fragment(tag flv.Tag, frame codec.MP3Frame) error {
	frameSamples, err := codec.MP3FrameSamples(frame.Version, frame.Layer)
	if err != nil {
		return fmt.Errorf("remux: stage first mp3 frame: %w", err)
	}
	sampleCtx := SampleContext{
		DecodeTime:     r.audioTrack.ZeroedDTS(ToTimeScale(tag.Timestamp)),
		SampleSize:     uint32(len(frame.Body)),
		SampleDuration: MP3SampleDuration(uint32(frame.SampleRate), frameSamples),
		IsKeyframe:     true,
	}
	r.pendingAudioFragment = r.buildAudioFragment(sampleCtx, frame.Body)
	return nil
}

func (r *Remuxer) emitAudioSample(tag flv.Tag, parsed codec.AudioParseResult) error {
	switch {
	case parsed.AACRaw != nil:
		return r.emitAACSample(tag, parsed.AACRaw.Payload)
	case parsed.MP3Frame != nil:
		return r.emitMP3Sample(tag, *parsed.MP3Frame)
	default:
		return fmt.Errorf("remux: aac format header not set")
	}
}

func (r *Remuxer) emitAACSample(tag flv.Tag, payload []byte) error {
	dts := r.audioTrack.ZeroedDTS(ToTimeScale(tag.Timestamp))
	newCtx := SampleContext{
		DecodeTime:     dts,
		SampleSize:     uint32(len(payload)),
		SampleDuration: AACSampleDuration(r.ctx.AudioSampleRate),
		IsKeyframe:     true,
	}

	if r.audioPending != nil {
		r.audioPending.ctx.SampleDuration = newCtx.DecodeTime - r.audioPending.ctx.DecodeTime
		flushed := *r.audioPending
		r.audioPending = &pendingSample{payload: append([]byte(nil), payload...), ctx: newCtx}
		return r.flushAudioFragment(flushed)
	}

	r.audioPending = &pendingSample{payload: append([]byte(nil), payload...), ctx: newCtx}
	return nil
}

func (r *Remuxer) emitMP3Sample(tag flv.Tag, frame codec.MP3Frame) error {
	frameSamples, err := codec.MP3FrameSamples(frame.Version, frame.Layer)
	if err != nil {
		return fmt.Errorf("remux: emit mp3 sample: %w", err)
	}
	sampleCtx := SampleContext{
		DecodeTime:     r.audioTrack.ZeroedDTS(ToTimeScale(tag.Timestamp)),
		SampleSize:     uint32(len(frame.Body)),
		SampleDuration: MP3SampleDuration(uint32(frame.SampleRate), frameSamples),
		IsKeyframe:     true,
	}
	fragment := r.buildAudioFragment(sampleCtx, frame.Body)
	return r.sendAudioFragment(fragment)
}

func (r *Remuxer) flushAudioFragment(sample pendingSample) error {
	fragment := r.buildAudioFragment(sample.ctx, sample.payload)
	return r.sendAudioFragment(fragment)
}

func (r *Remuxer) buildAudioFragment(sampleCtx SampleContext, payload []byte) []byte {
	return fmp4.BuildFragment(fmp4.FragmentParams{
		SequenceNumber:        r.ctx.NextSequenceNumber(),
		TrackID:               r.audioTrack.TrackID,
		IsVideo:                false,
		IsKeyframe:             sampleCtx.IsKeyframe,
		BaseMediaDecodeTime:    uint64(sampleCtx.DecodeTime),
		SampleDuration:         sampleCtx.SampleDuration,
		CompositionTimeOffset:  sampleCtx.CompositionTimeOffset,
		Payload:                payload,
	})
}

func (r *Remuxer) sendAudioFragment(fragment []byte) error {
	r.logger.Debug("audio fragment", "bytes", len(fragment))
	if r.config.OnAudioFragment == nil {
		return nil
	}
	return r.config.OnAudioFragment(fragment)
}

func (r *Remuxer) handleVideoTag(tag flv.Tag) error {
	if tag.VideoHeader == nil {
		return fmt.Errorf("remux: video tag missing header")
	}
	parsed, err := codec.ParseVideoTag(*tag.VideoHeader, tag.Body)
	if err != nil {
		if errors.Is(err, codec.ErrUnsupported) {
			return r.notifyUnsupported(UnsupportedCodec, err)
		}
		if errors.Is(err, codec.ErrStructural) {
			r.logger.Warn("skipping malformed video tag", "error", err)
			return nil
		}
		return fmt.Errorf("remux: parse video tag: %w", err)
	}

	if !r.ctx.IsConfigured() {
		if parsed.SequenceHeader != nil {
			r.ctx.ConfigureVideoCodec(parsed.SequenceHeader.Raw)
			return r.notifyDecoderConfig(DecoderConfigEvent{
				IsVideo:              true,
				CodecString:          parsed.SequenceHeader.CodecString(),
				ProfileIndication:    parsed.SequenceHeader.ProfileIndication,
				ProfileCompatibility: parsed.SequenceHeader.ProfileCompatibility,
				LevelIndication:      parsed.SequenceHeader.LevelIndication,
			})
		}
		return nil
	}

	if err := r.ensureHeaderSent(); err != nil {
		return err
	}

	switch {
	case parsed.SequenceHeader != nil:
		return fmt.Errorf("remux: unexpected avc sequence header after configuration")
	case parsed.NALU != nil:
		return r.emitVideoSample(tag, *parsed.NALU)
	case parsed.EndOfSequence != nil:
		if err := r.flushVideoBuffer(); err != nil {
			return err
		}
		return r.notifyEndOfSequence()
	default:
		return nil
	}
}

// notifyEndOfSequence reports an AVC end-of-sequence tag to the embedder,
// once any buffered tail sample has already been flushed as a fragment.
func (r *Remuxer) notifyEndOfSequence() error {
	r.logger.Debug("end of sequence")
	if r.config.OnEndOfSequence == nil {
		return nil
	}
	return r.config.OnEndOfSequence()
}

func (r *Remuxer) emitVideoSample(tag flv.Tag, nalu codec.AVCNALU) error {
	dts := r.videoTrack.ZeroedDTS(ToTimeScale(tag.Timestamp))
	cto := int32(0)
	if tag.VideoHeader != nil {
		cto = ToTimeScaleSigned(tag.VideoHeader.CompositionTimeOffset)
	}

	newCtx := SampleContext{
		IsLeading:             false,
		IsNonSync:             !nalu.IsKeyframe,
		IsKeyframe:            nalu.IsKeyframe,
		DecodeTime:            dts,
		CompositionTimeOffset: cto,
		SampleDuration:        AVCSampleDuration(r.ctx.FPS),
		SampleSize:            uint32(len(nalu.Data)),
	}

	if r.videoPending != nil {
		r.videoPending.ctx.SampleDuration = newCtx.DecodeTime - r.videoPending.ctx.DecodeTime
		flushed := *r.videoPending
		r.videoPending = &pendingSample{payload: nalu.Data, ctx: newCtx}
		r.frameCount++
		return r.sendVideoFragment(r.buildVideoFragment(flushed.ctx, flushed.payload))
	}

	r.videoPending = &pendingSample{payload: nalu.Data, ctx: newCtx}
	return nil
}

func (r *Remuxer) flushVideoBuffer() error {
	for r.videoPending != nil {
		pending := *r.videoPending
		r.videoPending = nil
		r.frameCount++
		if err := r.sendVideoFragment(r.buildVideoFragment(pending.ctx, pending.payload)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Remuxer) buildVideoFragment(sampleCtx SampleContext, payload []byte) []byte {
	return fmp4.BuildFragment(fmp4.FragmentParams{
		SequenceNumber:        r.ctx.NextSequenceNumber(),
		TrackID:               r.videoTrack.TrackID,
		IsVideo:                true,
		IsKeyframe:             sampleCtx.IsKeyframe,
		BaseMediaDecodeTime:    uint64(sampleCtx.DecodeTime),
		SampleDuration:         sampleCtx.SampleDuration,
		CompositionTimeOffset:  sampleCtx.CompositionTimeOffset,
		Payload:                payload,
	})
}

func (r *Remuxer) sendVideoFragment(fragment []byte) error {
	r.logger.Debug("video fragment", "bytes", len(fragment), "frame", r.frameCount)
	if r.config.OnVideoFragment == nil {
		return nil
	}
	return r.config.OnVideoFragment(fragment)
}

func (r *Remuxer) notifyDecoderConfig(event DecoderConfigEvent) error {
	r.logger.Debug("decoder config", "video", event.IsVideo, "codec", event.CodecString)
	if r.config.OnDecoderConfig == nil {
		return nil
	}
	return r.config.OnDecoderConfig(event)
}

func (r *Remuxer) ensureHeaderSent() error {
	if r.ctx.IsHeaderSent() {
		return nil
	}
	r.logger.Debug("sending init segment header")
	header := fmp4.BuildHeader(r.buildHeaderParams())
	r.ctx.SetHeaderSent(true)

	if r.config.OnHeader != nil {
		if err := r.config.OnHeader(header); err != nil {
			return err
		}
	}

	if r.pendingAudioFragment != nil {
		fragment := r.pendingAudioFragment
		r.pendingAudioFragment = nil
		return r.sendAudioFragment(fragment)
	}
	return nil
}

func (r *Remuxer) buildHeaderParams() fmp4.HeaderParams {
	p := fmp4.HeaderParams{
		Duration:         r.ctx.Duration,
		Width:            r.ctx.Width,
		Height:           r.ctx.Height,
		HasVideo:         r.ctx.HasVideo,
		HasAudio:         r.ctx.HasAudio,
		MajorBrand:       r.ctx.MajorBrand,
		MinorVersion:     r.ctx.MinorVersion,
		CompatibleBrands: r.ctx.CompatibleBrands,
	}
	if r.ctx.HasVideo {
		p.VideoCodec = fmp4.VideoCodecAVC
		p.AVCConfig = r.ctx.VideoAVCCInfo
	}
	if r.ctx.HasAudio {
		switch r.ctx.AudioCodecType {
		case AudioCodecTypeAAC:
			p.AudioCodecType = fmp4.AudioCodecAAC
			p.AACConfigBytes = r.ctx.AudioAACInfo
		case AudioCodecTypeMP3:
			p.AudioCodecType = fmp4.AudioCodecMP3
		}
		p.AudioSampleRate = int(r.ctx.AudioSampleRate)
		p.AudioChannelCount = int(r.ctx.AudioChannels)
	}
	return p
}

// Close flushes any pending video or audio sample using its last known
// (best-effort default) sample duration, in case the stream ends without
// an explicit AVC end-of-sequence tag.
func (r *Remuxer) Close() error {
	if err := r.flushVideoBuffer(); err != nil {
		return err
	}
	if r.audioPending != nil {
		pending := *r.audioPending
		r.audioPending = nil
		return r.sendAudioFragment(r.buildAudioFragment(pending.ctx, pending.payload))
	}
	return nil
}
