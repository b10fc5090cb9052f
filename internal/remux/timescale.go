package remux

import "github.com/mediaflux/flv2fmp4/internal/fmp4"

// TimeScale re-exports fmp4.TimeScale: the single process-wide constant
// every duration and decode-time conversion in this package uses.
const TimeScale = fmp4.TimeScale

// ToTimeScale converts an FLV millisecond timestamp to TIME_SCALE units,
// computed in floating point to avoid the accuracy loss an integer
// `ms * TIME_SCALE / 1000` would introduce.
func ToTimeScale(ms uint32) uint32 {
	return uint32(float64(ms) * float64(TimeScale) / 1000.0)
}

// ToTimeScaleSigned is ToTimeScale for signed millisecond offsets, used
// for composition_time_offset (pts-dts).
func ToTimeScaleSigned(ms int32) int32 {
	return int32(float64(ms) * float64(TimeScale) / 1000.0)
}

// AACSampleDuration returns the default per-sample duration for one AAC
// frame (1024 samples) at the given sample rate, in TIME_SCALE units.
func AACSampleDuration(sampleRate uint32) uint32 {
	if sampleRate == 0 {
		return 0
	}
	return uint32((1024.0 * 1000.0 / float64(sampleRate)) * float64(TimeScale) / 1000.0)
}

// AVCSampleDuration returns the default per-frame duration at the given
// fps, in TIME_SCALE units.
func AVCSampleDuration(fps float64) uint32 {
	if fps == 0 {
		return 0
	}
	return uint32((1000.0 / fps) * float64(TimeScale) / 1000.0)
}

// MP3SampleDuration returns the per-frame duration for an MP3 frame
// carrying framesPerPacket samples at sampleRate, in TIME_SCALE units.
func MP3SampleDuration(sampleRate uint32, framesPerPacket int) uint32 {
	if sampleRate == 0 {
		return 0
	}
	return uint32((float64(framesPerPacket) * 1000.0 / float64(sampleRate)) * float64(TimeScale) / 1000.0)
}
