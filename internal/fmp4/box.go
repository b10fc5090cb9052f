// Package fmp4 assembles the initialization segment (ftyp+moov) and
// per-sample media fragments (moof+mdat) with bit-exact ISO/IEC 14496-12
// layout, as specified for MSE playback of a remuxed FLV stream.
package fmp4

import (
	"encoding/binary"
)

// box serializes one ISO-BMFF box as [u32 BE size][4-char type][body],
// where size is the inclusive byte count of the whole box.
func box(boxType string, body []byte) []byte {
	size := 8 + len(body)
	out := make([]byte, 0, size)
	out = appendU32(out, uint32(size))
	out = append(out, boxType...)
	out = append(out, body...)
	return out
}

// fullBox serializes a FullBox: the box header plus [u8 version][u24
// flags] immediately before body.
func fullBox(boxType string, version uint8, flags uint32, body []byte) []byte {
	prefix := make([]byte, 4)
	prefix[0] = version
	prefix[1] = byte(flags >> 16)
	prefix[2] = byte(flags >> 8)
	prefix[3] = byte(flags)
	return box(boxType, append(prefix, body...))
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU24(b []byte, v uint32) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI16(b []byte, v int16) []byte {
	return appendU16(b, uint16(v))
}

// unityMatrix is the canonical identity transformation matrix shared by
// mvhd and tkhd: nine 32-bit 16.16/2.30 fixed-point values.
var unityMatrix = [9]uint32{
	0x00010000, 0, 0,
	0, 0x00010000, 0,
	0, 0, 0x40000000,
}

func appendMatrix(b []byte) []byte {
	for _, v := range unityMatrix {
		b = appendU32(b, v)
	}
	return b
}

func appendZeros(b []byte, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, 0)
	}
	return b
}
