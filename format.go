package mpv

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Format identifies how a property or option value is laid out in memory
// (mpv_format).
type Format int32

const (
	FormatNone      Format = 0
	FormatString    Format = 1
	FormatOSDString Format = 2
	FormatFlag      Format = 3
	FormatInt64     Format = 4
	FormatDouble    Format = 5
	FormatNode      Format = 6
	FormatNodeArray Format = 7
	FormatNodeMap   Format = 8
	FormatByteArray Format = 9
)

func (f Format) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatString:
		return "string"
	case FormatOSDString:
		return "osd-string"
	case FormatFlag:
		return "flag"
	case FormatInt64:
		return "int64"
	case FormatDouble:
		return "double"
	case FormatNode:
		return "node"
	case FormatNodeArray:
		return "node-array"
	case FormatNodeMap:
		return "node-map"
	case FormatByteArray:
		return "byte-array"
	default:
		return fmt.Sprintf("format(%d)", int32(f))
	}
}

// Representable reports whether values of this format can be carried by a Value.
func (f Format) Representable() bool {
	switch f {
	case FormatString, FormatOSDString, FormatFlag, FormatInt64, FormatDouble:
		return true
	}
	return false
}

// Value is a typed property or option value. The set of implementations is
// closed: Flag, Int64, Double, String and OSDString.
type Value interface {
	// Format returns the native tag for the value's type. It does not
	// depend on the value itself.
	Format() Format
	// encode hands a pointer to the native representation to sink and
	// converts sink's status into an error.
	encode(sink func(data unsafe.Pointer) int32) error
}

type (
	// Flag is a boolean, carried natively as a C int holding 0 or 1.
	Flag bool
	// Int64 is a signed 64-bit integer.
	Int64 int64
	// Double is a double-precision float.
	Double float64
	// String is a UTF-8 string in raw (machine-readable) form.
	String string
	// OSDString is a UTF-8 string formatted for on-screen display. It can
	// only be read; the engine rejects writes in this format.
	OSDString string
)

func (Flag) Format() Format      { return FormatFlag }
func (Int64) Format() Format     { return FormatInt64 }
func (Double) Format() Format    { return FormatDouble }
func (String) Format() Format    { return FormatString }
func (OSDString) Format() Format { return FormatOSDString }

// FormatOf returns the tag used for values of type T.
func FormatOf[T Value]() Format {
	var zero T
	return zero.Format()
}

func (v Flag) encode(sink func(unsafe.Pointer) int32) error {
	var word int32
	if v {
		word = 1
	}
	code := sink(unsafe.Pointer(&word))
	runtime.KeepAlive(&word)
	return newError(code)
}

func (v Int64) encode(sink func(unsafe.Pointer) int32) error {
	word := int64(v)
	code := sink(unsafe.Pointer(&word))
	runtime.KeepAlive(&word)
	return newError(code)
}

func (v Double) encode(sink func(unsafe.Pointer) int32) error {
	word := float64(v)
	code := sink(unsafe.Pointer(&word))
	runtime.KeepAlive(&word)
	return newError(code)
}

func (v String) encode(sink func(unsafe.Pointer) int32) error {
	return encodeString(string(v), sink)
}

func (v OSDString) encode(sink func(unsafe.Pointer) int32) error {
	return encodeString(string(v), sink)
}

// encodeString passes a char** to sink. Both the buffer and the pointer
// slot stay pinned for the duration of the call.
func encodeString(s string, sink func(unsafe.Pointer) int32) error {
	buf, err := cString(s)
	if err != nil {
		return err
	}
	slot := new(*byte)
	*slot = &buf[0]

	var pinner runtime.Pinner
	pinner.Pin(&buf[0])
	pinner.Pin(slot)
	defer pinner.Unpin()

	return newError(sink(unsafe.Pointer(slot)))
}

// readValue decodes a payload owned by someone else (an event buffer).
// Strings are copied; nothing is freed.
func readValue(format Format, data unsafe.Pointer) (Value, error) {
	if format == FormatNone {
		return nil, nil
	}
	if !format.Representable() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if data == nil {
		panic(fmt.Sprintf("mpv: nil %s payload", format))
	}
	switch format {
	case FormatFlag:
		return decodeFlag(*(*int32)(data)), nil
	case FormatInt64:
		return Int64(*(*int64)(data)), nil
	case FormatDouble:
		return Double(*(*float64)(data)), nil
	case FormatString:
		return String(goString(*(**byte)(data))), nil
	default: // FormatOSDString
		return OSDString(goString(*(**byte)(data))), nil
	}
}

// fetchValue decodes a payload the caller takes ownership of. source
// receives a pointer to a zeroed slot of the right size; if it reports
// success, strings are copied and the native buffer is released with free.
// A NULL string decodes to "".
func fetchValue(format Format, free func(unsafe.Pointer), source func(data unsafe.Pointer) int32) (Value, error) {
	if !format.Representable() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	switch format {
	case FormatFlag:
		var word int32
		if err := newError(source(unsafe.Pointer(&word))); err != nil {
			return nil, err
		}
		return decodeFlag(word), nil
	case FormatInt64:
		var word int64
		if err := newError(source(unsafe.Pointer(&word))); err != nil {
			return nil, err
		}
		return Int64(word), nil
	case FormatDouble:
		var word float64
		if err := newError(source(unsafe.Pointer(&word))); err != nil {
			return nil, err
		}
		return Double(word), nil
	default: // FormatString, FormatOSDString
		slot := new(*byte)
		var pinner runtime.Pinner
		pinner.Pin(slot)
		code := source(unsafe.Pointer(slot))
		pinner.Unpin()
		if err := newError(code); err != nil {
			return nil, err
		}
		s := goString(*slot)
		if *slot != nil {
			free(unsafe.Pointer(*slot))
		}
		if format == FormatOSDString {
			return OSDString(s), nil
		}
		return String(s), nil
	}
}

func decodeFlag(word int32) Flag {
	switch word {
	case 0:
		return false
	case 1:
		return true
	default:
		panic(fmt.Sprintf("mpv: flag payload %d is neither 0 nor 1", word))
	}
}
