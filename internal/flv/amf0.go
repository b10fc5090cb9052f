package flv

import (
	"fmt"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
)

// amf0Marker is the leading type byte of an AMF0-encoded value.
type amf0Marker uint8

const (
	amf0MarkerNumber       amf0Marker = 0
	amf0MarkerBoolean      amf0Marker = 1
	amf0MarkerString       amf0Marker = 2
	amf0MarkerObject       amf0Marker = 3
	amf0MarkerMovieClip    amf0Marker = 4
	amf0MarkerNull         amf0Marker = 5
	amf0MarkerUndefined    amf0Marker = 6
	amf0MarkerReference    amf0Marker = 7
	amf0MarkerEcmaArray    amf0Marker = 8
	amf0MarkerObjectEnd    amf0Marker = 9
	amf0MarkerStrictArray  amf0Marker = 10
	amf0MarkerDate         amf0Marker = 11
	amf0MarkerLongString   amf0Marker = 12
)

// Value is the tagged union of AMF0 value kinds used by Script tags.
type Value interface {
	isAMF0Value()
}

// Number is an AMF0 Number (IEEE-754 double).
type Number float64

func (Number) isAMF0Value() {}

// Boolean is an AMF0 Boolean.
type Boolean bool

func (Boolean) isAMF0Value() {}

// String is an AMF0 UTF-8 String (u16 length prefix).
type String string

func (String) isAMF0Value() {}

// LongString is an AMF0 UTF-8 string with a u32 length prefix.
type LongString string

func (LongString) isAMF0Value() {}

// Object is an AMF0 Object: an ordered list of named properties terminated
// by an ObjectEndMarker.
type Object struct {
	Properties []Property
}

func (Object) isAMF0Value() {}

// Property is one named (key, value) pair inside an Object or EcmaArray.
type Property struct {
	Name  string
	Value Value
}

// EcmaArray is an AMF0 associative array: a u32 count followed by count+1
// named properties. Real FLV producers vary on whether the terminator is
// implicit or an explicit ObjectEndMarker — both are tolerated, see
// decodeEcmaArray.
type EcmaArray struct {
	Properties []Property
}

func (EcmaArray) isAMF0Value() {}

// StrictArray is an AMF0 dense array: a u32 count followed by count+1
// untagged values.
type StrictArray struct {
	Values []Value
}

func (StrictArray) isAMF0Value() {}

// Date is an AMF0 Date: milliseconds since epoch plus a timezone offset in
// minutes (the offset is not applied; it is carried through verbatim).
type Date struct {
	Millis     float64
	TZOffset   int16
}

func (Date) isAMF0Value() {}

// Reference is an AMF0 object-table reference.
type Reference uint16

func (Reference) isAMF0Value() {}

// Null, Undefined, and MovieClip are sentinel values: a marker byte with no
// payload.
type Null struct{}
type Undefined struct{}
type MovieClip struct{}

func (Null) isAMF0Value()      {}
func (Undefined) isAMF0Value() {}
func (MovieClip) isAMF0Value() {}

// ObjectEndMarker terminates an Object's property list. decodeValue returns
// it for marker 9; decodeObjectProperties and decodeEcmaArray consume it as
// their terminator, so it never appears in their property lists.
type ObjectEndMarker struct{}

func (ObjectEndMarker) isAMF0Value() {}

// decodeValue dispatches on the marker byte and decodes one AMF0 value.
func decodeValue(q *bitio.Queue) (Value, error) {
	markerByte, err := q.DrainU8()
	if err != nil {
		return nil, fmt.Errorf("flv: decode amf0 marker: %w", err)
	}
	switch amf0Marker(markerByte) {
	case amf0MarkerNumber:
		f, err := q.DrainF64BE()
		if err != nil {
			return nil, fmt.Errorf("flv: decode amf0 number: %w", err)
		}
		return Number(f), nil
	case amf0MarkerBoolean:
		b, err := q.DrainU8()
		if err != nil {
			return nil, fmt.Errorf("flv: decode amf0 boolean: %w", err)
		}
		return Boolean(b != 0), nil
	case amf0MarkerString:
		s, err := decodeUTF8(q)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case amf0MarkerObject:
		props, err := decodeObjectProperties(q)
		if err != nil {
			return nil, err
		}
		return Object{Properties: props}, nil
	case amf0MarkerMovieClip:
		return MovieClip{}, nil
	case amf0MarkerNull:
		return Null{}, nil
	case amf0MarkerUndefined:
		return Undefined{}, nil
	case amf0MarkerReference:
		ref, err := q.DrainU16BE()
		if err != nil {
			return nil, fmt.Errorf("flv: decode amf0 reference: %w", err)
		}
		return Reference(ref), nil
	case amf0MarkerEcmaArray:
		arr, err := decodeEcmaArray(q)
		if err != nil {
			return nil, err
		}
		return arr, nil
	case amf0MarkerObjectEnd:
		return ObjectEndMarker{}, nil
	case amf0MarkerStrictArray:
		arr, err := decodeStrictArray(q)
		if err != nil {
			return nil, err
		}
		return arr, nil
	case amf0MarkerDate:
		millis, err := q.DrainF64BE()
		if err != nil {
			return nil, fmt.Errorf("flv: decode amf0 date: %w", err)
		}
		offset, err := q.DrainI16BE()
		if err != nil {
			return nil, fmt.Errorf("flv: decode amf0 date offset: %w", err)
		}
		return Date{Millis: millis, TZOffset: offset}, nil
	case amf0MarkerLongString:
		s, err := decodeLongUTF8(q)
		if err != nil {
			return nil, err
		}
		return LongString(s), nil
	default:
		return nil, fmt.Errorf("%w: marker=%d", ErrUnsupportedAMF0Marker, markerByte)
	}
}

func decodeUTF8(q *bitio.Queue) (string, error) {
	n, err := q.DrainU16BE()
	if err != nil {
		return "", fmt.Errorf("flv: decode amf0 string length: %w", err)
	}
	b, err := q.DrainBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("flv: decode amf0 string body (%d bytes): %w", n, err)
	}
	return string(b), nil
}

func decodeLongUTF8(q *bitio.Queue) (string, error) {
	n, err := q.DrainU32BE()
	if err != nil {
		return "", fmt.Errorf("flv: decode amf0 long string length: %w", err)
	}
	b, err := q.DrainBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("flv: decode amf0 long string body (%d bytes): %w", n, err)
	}
	return string(b), nil
}

// decodeObjectProperties reads (name, value) pairs until an
// ObjectEndMarker is encountered.
func decodeObjectProperties(q *bitio.Queue) ([]Property, error) {
	var props []Property
	for {
		name, err := decodeUTF8(q)
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(q)
		if err != nil {
			return nil, err
		}
		if _, ok := val.(ObjectEndMarker); ok {
			if name != "" {
				return nil, fmt.Errorf("%w: object-end marker with non-empty name %q", ErrIntegrity, name)
			}
			return props, nil
		}
		props = append(props, Property{Name: name, Value: val})
	}
}

// decodeEcmaArray reads a u32 count then tolerates either an explicit
// ObjectEndMarker terminator or exactly count+1 (name, value) pairs,
// matching the dual behavior real FLV producers exhibit.
func decodeEcmaArray(q *bitio.Queue) (EcmaArray, error) {
	count, err := q.DrainU32BE()
	if err != nil {
		return EcmaArray{}, fmt.Errorf("flv: decode amf0 ecma array count: %w", err)
	}

	var props []Property
	for i := uint32(0); i < count+1; i++ {
		name, err := decodeUTF8(q)
		if err != nil {
			return EcmaArray{}, err
		}
		val, err := decodeValue(q)
		if err != nil {
			return EcmaArray{}, err
		}
		if _, ok := val.(ObjectEndMarker); ok {
			return EcmaArray{Properties: props}, nil
		}
		props = append(props, Property{Name: name, Value: val})
	}
	return EcmaArray{Properties: props}, nil
}

func decodeStrictArray(q *bitio.Queue) (StrictArray, error) {
	count, err := q.DrainU32BE()
	if err != nil {
		return StrictArray{}, fmt.Errorf("flv: decode amf0 strict array count: %w", err)
	}
	values := make([]Value, 0, count+1)
	for i := uint32(0); i < count+1; i++ {
		val, err := decodeValue(q)
		if err != nil {
			return StrictArray{}, err
		}
		values = append(values, val)
	}
	return StrictArray{Values: values}, nil
}

// decodeScriptBody reads the (string_name, value) pair that makes up a
// Script tag's body. bodyLen is informational only — AMF0 values are
// self-delimiting.
func decodeScriptBody(q *bitio.Queue, bodyLen int) (*ScriptTagBody, error) {
	_ = bodyLen
	name, err := decodeUTF8(q)
	if err != nil {
		return nil, fmt.Errorf("flv: decode script tag name: %w", err)
	}
	val, err := decodeValue(q)
	if err != nil {
		return nil, fmt.Errorf("flv: decode script tag value: %w", err)
	}
	return &ScriptTagBody{Name: name, Value: val}, nil
}

// AsNumber extracts a float64 property by name from an Object or EcmaArray's
// property list, returning ok=false if absent or of the wrong type.
func AsNumber(props []Property, name string) (float64, bool) {
	for _, p := range props {
		if p.Name == name {
			if n, ok := p.Value.(Number); ok {
				return float64(n), true
			}
			return 0, false
		}
	}
	return 0, false
}

// AsBool extracts a bool property by name.
func AsBool(props []Property, name string) (bool, bool) {
	for _, p := range props {
		if p.Name == name {
			if b, ok := p.Value.(Boolean); ok {
				return bool(b), true
			}
			return false, false
		}
	}
	return false, false
}

// Properties returns the property list of an Object- or EcmaArray-valued
// onMetaData payload, or nil if v is neither.
func Properties(v Value) []Property {
	switch t := v.(type) {
	case Object:
		return t.Properties
	case EcmaArray:
		return t.Properties
	default:
		return nil
	}
}
