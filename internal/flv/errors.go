package flv

import "errors"

// ErrIntegrity marks a fatal stream-integrity failure: a previous-tag-size
// field that does not match the size of the tag that preceded it, or a
// structurally invalid AMF0 tree. The stream must terminate.
var ErrIntegrity = errors.New("flv: integrity error")

// ErrUnsupportedTagType marks an unrecognized tag_type byte.
var ErrUnsupportedTagType = errors.New("flv: unsupported tag type")

// ErrUnsupportedAMF0Marker marks an AMF0 marker byte this decoder does not
// implement.
var ErrUnsupportedAMF0Marker = errors.New("flv: unsupported amf0 marker")
