package flv

import (
	"fmt"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
)

// Header is the 9-byte FLV file header.
type Header struct {
	Signature    [3]byte // expected "FLV"
	Version      uint8
	HasAudio     bool
	HasVideo     bool
	DataOffset   uint32
}

// Valid reports whether the signature matches "FLV". Validation is left to
// the caller to enforce if it wants to reject malformed streams early.
func (h Header) Valid() bool {
	return h.Signature == [3]byte{'F', 'L', 'V'}
}

// DecodeHeader drains the 9-byte FLV header from q.
func DecodeHeader(q *bitio.Queue) (Header, error) {
	sig, err := q.DrainBytes(3)
	if err != nil {
		return Header{}, fmt.Errorf("flv: decode header signature: %w", err)
	}
	version, err := q.DrainU8()
	if err != nil {
		return Header{}, fmt.Errorf("flv: decode header version: %w", err)
	}
	flags, err := q.DrainU8()
	if err != nil {
		return Header{}, fmt.Errorf("flv: decode header flags: %w", err)
	}
	offset, err := q.DrainU32BE()
	if err != nil {
		return Header{}, fmt.Errorf("flv: decode header data offset: %w", err)
	}

	h := Header{
		Version:    version,
		HasAudio:   flags&0x04 != 0,
		HasVideo:   flags&0x01 != 0,
		DataOffset: offset,
	}
	copy(h.Signature[:], sig)
	return h, nil
}
