package flv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
	"github.com/mediaflux/flv2fmp4/internal/observability"
)

// DecoderConfig configures a Decoder. OnTag is invoked for every tag
// successfully decoded from decode_body_loop; errors returned from it abort
// the loop.
type DecoderConfig struct {
	// Logger for structured logging; defaults to slog.Default() when nil.
	Logger *slog.Logger

	// OnTag is called once per decoded tag, in stream order.
	OnTag func(Tag) error
}

// Decoder drives FLV header and tag decoding over a byte queue.
type Decoder struct {
	config   DecoderConfig
	q        *bitio.Queue
	header   *Header
	lastSize uint32 // 11 + data_size of the previously decoded tag
	haveLast bool
}

// NewDecoder creates a Decoder reading from q.
func NewDecoder(q *bitio.Queue, config DecoderConfig) *Decoder {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.Logger = observability.WithComponent(config.Logger, "flv")
	return &Decoder{config: config, q: q}
}

// DecodeHeader decodes and stores the FLV header. Must be called once,
// before DecodeBodyLoop.
func (d *Decoder) DecodeHeader() (Header, error) {
	h, err := DecodeHeader(d.q)
	if err != nil {
		return Header{}, err
	}
	d.header = &h
	return h, nil
}

// DecodeBodyLoop drains `[u32 BE prev_tag_size][tag]` records until the
// queue is exhausted (non-fatal stop) or a previous-tag-size mismatch is
// found (fatal, ErrIntegrity). A record is decoded to completion or not at
// all: a short read anywhere inside it, whether in the prev_tag_size field
// itself or partway through the tag body, rewinds the queue to the start of
// the record before returning, so a caller that Appends more bytes and
// calls DecodeBodyLoop again resumes cleanly instead of re-reading a
// prev_tag_size field that was already consumed.
func (d *Decoder) DecodeBodyLoop() error {
	for {
		recordMark := d.q.Mark()

		prevSize, err := d.q.DrainU32BE()
		if err != nil {
			if errors.Is(err, bitio.ErrShortRead) {
				d.q.Reset(recordMark)
				d.config.Logger.Debug("short read on prev_tag_size, pausing for more data")
				return nil
			}
			return err
		}

		if d.haveLast && prevSize != d.lastSize {
			err := fmt.Errorf("%w: previous-tag-size expected %d got %d at stream offset 0x%X", ErrIntegrity, d.lastSize, prevSize, d.q.Offset())
			d.config.Logger.Error("previous-tag-size mismatch", "error", err)
			return err
		}

		tag, err := DecodeTag(d.q)
		if err != nil {
			if errors.Is(err, bitio.ErrShortRead) {
				d.q.Reset(recordMark)
				d.config.Logger.Debug("short read mid-tag, pausing for more data")
				return nil
			}
			d.config.Logger.Warn("tag decode failed", "error", err)
			return err
		}
		d.config.Logger.Debug("decoded tag", "type", tag.Type, "data_size", tag.DataSize, "timestamp", tag.Timestamp)
		d.lastSize = 11 + tag.DataSize
		d.haveLast = true

		if d.config.OnTag != nil {
			if err := d.config.OnTag(tag); err != nil {
				return fmt.Errorf("flv: OnTag callback: %w", err)
			}
		}

		// The record just processed will never need to be rewound into, so
		// its bytes can be reclaimed from the front of the queue.
		d.q.Compact()
	}
}
