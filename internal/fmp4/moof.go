package fmp4

import (
	"encoding/binary"
	"fmt"
)

// SampleFlags holds the boolean inputs to the trun sample_flags bit
// packing formula, exposed as a named struct rather than inlining the bit
// math at each call site.
type SampleFlags struct {
	IsLeading          bool
	SampleDependsOn    bool
	SampleIsDependedOn bool
	HasRedundancy      bool
	IsNonSync          bool
}

// Encode packs the flags into the 16-bit trun sample_flags value:
// is_leading<<11 | (sample_depends_on?0x200:0x100) |
// (sample_is_depended_on?0x80:0x40) | (has_redundancy?0x20:0) |
// (is_non_sync?0:1).
func (f SampleFlags) Encode() uint16 {
	var v uint16
	if f.IsLeading {
		v |= 0x0800
	}
	if f.SampleDependsOn {
		v |= 0x0200
	} else {
		v |= 0x0100
	}
	if f.SampleIsDependedOn {
		v |= 0x0080
	} else {
		v |= 0x0040
	}
	if f.HasRedundancy {
		v |= 0x0020
	}
	if !f.IsNonSync {
		v |= 0x0001
	}
	return v
}

// KeyframeSampleFlags returns the flags for a video keyframe: depended on
// by later frames, depends on nothing, a sync sample.
func KeyframeSampleFlags() SampleFlags {
	return SampleFlags{SampleDependsOn: false, SampleIsDependedOn: true, IsNonSync: false}
}

// InterframeSampleFlags returns the flags for a video inter-frame: the
// reverse of KeyframeSampleFlags.
func InterframeSampleFlags() SampleFlags {
	return SampleFlags{SampleDependsOn: true, SampleIsDependedOn: false, IsNonSync: true}
}

// AudioSampleFlags returns the flags used for audio samples, which carry
// no inter-sample dependency: every audio sample is independently
// decodable, so it uses the same shape as a video keyframe.
func AudioSampleFlags() SampleFlags {
	return KeyframeSampleFlags()
}

// sdtp dependency bytes for each sample kind.
const (
	sdtpVideoKey   = 0x18
	sdtpVideoInter = 0x24
	sdtpAudio      = 0x10
)

func mfhd(sequenceNumber uint32) []byte {
	return fullBox("mfhd", 0, 0, appendU32(nil, sequenceNumber))
}

func tfhd(trackID uint32) []byte {
	return fullBox("tfhd", 0, 0, appendU32(nil, trackID))
}

func tfdt(baseMediaDecodeTime uint64) []byte {
	// version 0: 32-bit base_media_decode_time (16 bytes total).
	return fullBox("tfdt", 0, 0, appendU32(nil, uint32(baseMediaDecodeTime)))
}

// trunFlags enables data_offset, sample_duration, sample_size,
// sample_flags, and composition_time_offset.
const trunFlags = 0x000001 | 0x000100 | 0x000200 | 0x000400 | 0x000800

func trun(sampleDuration, sampleSize uint32, flags SampleFlags, compositionTimeOffset int32) []byte {
	var b []byte
	b = appendU32(b, 1) // sample_count
	b = appendU32(b, 0) // data_offset placeholder, patched after moof is sized
	b = appendU32(b, sampleDuration)
	b = appendU32(b, sampleSize)
	b = appendU16(b, flags.Encode())
	b = append(b, 0, 0) // lower 16 bits of sample_flags, left zero
	b = appendU32(b, uint32(compositionTimeOffset))
	return fullBox("trun", 0, trunFlags, b)
}

func sdtp(dependencyByte byte) []byte {
	return fullBox("sdtp", 0, 0, []byte{dependencyByte})
}

// FragmentParams carries everything BuildFragment needs to serialize one
// moof+mdat pair for a single sample.
type FragmentParams struct {
	SequenceNumber        uint32
	TrackID               uint32
	IsVideo               bool
	IsKeyframe            bool
	BaseMediaDecodeTime   uint64 // dts, TIME_SCALE units
	SampleDuration        uint32
	CompositionTimeOffset int32
	Payload               []byte
}

// BuildFragment serializes one moof+mdat media fragment for a single
// sample. trun.data_offset is set to moof.size+8 after the whole moof is
// assembled, so it lands on the first byte of mdat's payload.
func BuildFragment(p FragmentParams) []byte {
	var flags SampleFlags
	var dependencyByte byte
	if p.IsVideo {
		if p.IsKeyframe {
			flags = KeyframeSampleFlags()
			dependencyByte = sdtpVideoKey
		} else {
			flags = InterframeSampleFlags()
			dependencyByte = sdtpVideoInter
		}
	} else {
		flags = AudioSampleFlags()
		dependencyByte = sdtpAudio
	}

	trunBytes := trun(p.SampleDuration, uint32(len(p.Payload)), flags, p.CompositionTimeOffset)
	trafBody := concatAll(tfhd(p.TrackID), tfdt(p.BaseMediaDecodeTime), trunBytes, sdtp(dependencyByte))
	traf := box("traf", trafBody)
	moofBody := concatAll(mfhd(p.SequenceNumber), traf)
	moof := box("moof", moofBody)

	assertMoofSizeConsistent(moof)

	dataOffset := uint32(len(moof)) + 8
	patchTrunDataOffset(moof, dataOffset)

	mdat := Mdat(p.Payload)

	out := make([]byte, 0, len(moof)+len(mdat))
	out = append(out, moof...)
	out = append(out, mdat...)
	return out
}

// assertMoofSizeConsistent re-reads a freshly serialized moof box's own
// top-level size field and panics if it disagrees with the byte slice's
// actual length. trun.data_offset is computed from len(moof), so any bug
// in the box-size arithmetic above would otherwise silently corrupt
// data_offset rather than failing loudly at the point of the mistake.
func assertMoofSizeConsistent(moof []byte) {
	declared := binary.BigEndian.Uint32(moof[0:4])
	if int(declared) != len(moof) {
		panic(fmt.Sprintf("fmp4: moof size field %d does not match serialized length %d", declared, len(moof)))
	}
}

// patchTrunDataOffset locates the trun box's data_offset field inside an
// already-serialized moof and overwrites it in place. The field's offset
// is computed by re-walking the fixed box layout BuildFragment always
// produces: box(moof) -> box(mfhd) -> box(traf) -> box(tfhd) ->
// box(tfdt) -> fullBox(trun) -> [sample_count(4)][data_offset(4)].
func patchTrunDataOffset(moof []byte, dataOffset uint32) {
	// moof header (8) + mfhd box (16) + traf header (8) = offset of traf body
	trafBodyOffset := 8 + 16 + 8
	// traf body: tfhd box (16) + tfdt box (16) = offset of trun box
	trunOffset := trafBodyOffset + 16 + 16
	// trun box header (8) + fullbox prefix (4) + sample_count (4) = offset of data_offset
	dataOffsetFieldOffset := trunOffset + 8 + 4 + 4
	binary.BigEndian.PutUint32(moof[dataOffsetFieldOffset:dataOffsetFieldOffset+4], dataOffset)
}
