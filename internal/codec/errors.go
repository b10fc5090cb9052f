// Package codec decodes AAC, MP3, and AVC payloads carried inside FLV audio
// and video tags into the parameters the fMP4 box writer needs: AAC
// AudioSpecificConfig bytes, MP3 frame parameters, and the AVC decoder
// configuration record plus Annex-B-to-length-prefix NALU rewriting.
package codec

import "errors"

// ErrUnsupported marks a codec id/packet type this parser does not
// implement. The remux layer reports this to the embedder as a typed
// event rather than treating it as a stream-fatal condition.
var ErrUnsupported = errors.New("codec: unsupported")

// ErrStructural marks a payload too short or otherwise malformed for the
// codec it claims to be.
var ErrStructural = errors.New("codec: structural error")
