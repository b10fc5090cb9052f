package remux

// TrackType distinguishes the audio and video fragment streams.
type TrackType int

const (
	TrackTypeVideo TrackType = iota
	TrackTypeAudio
)

// TrackContext identifies one output track. TrackID is fixed (video=1,
// audio=2); the mfhd sequence counter that actually gets written is
// Context's shared one (see Context.NextSequenceNumber), incremented once
// per fragment regardless of which track it belongs to.
type TrackContext struct {
	TrackID   uint32
	TrackType TrackType

	dtsAdjust      uint32
	dtsAdjustSet   bool
}

// NewTrackContext returns a track context for the given fixed track id.
func NewTrackContext(trackID uint32, trackType TrackType) *TrackContext {
	return &TrackContext{TrackID: trackID, TrackType: trackType}
}

// ZeroedDTS latches the first sample's dts as this track's zero point on
// first use and subtracts it from every dts afterward. Applied uniformly
// to both audio and video tracks, so every track's timeline starts at
// zero regardless of the stream's original timestamp base.
func (t *TrackContext) ZeroedDTS(dts uint32) uint32 {
	if !t.dtsAdjustSet {
		t.dtsAdjust = dts
		t.dtsAdjustSet = true
	}
	if dts < t.dtsAdjust {
		return 0
	}
	return dts - t.dtsAdjust
}

// SampleContext describes one sample about to be (or already) staged
// for emission as a moof+mdat fragment.
type SampleContext struct {
	IsLeading             bool
	IsNonSync             bool
	IsKeyframe            bool
	HasRedundancy         bool
	DecodeTime            uint32 // TIME_SCALE units
	CompositionTimeOffset int32  // TIME_SCALE units, pts-dts
	SampleDuration        uint32 // TIME_SCALE units
	SampleSize            uint32
}

// pendingSample holds one buffered sample awaiting the one-sample
// lookahead duration correction.
type pendingSample struct {
	payload []byte
	ctx     SampleContext
}
