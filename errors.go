package mpv

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Error is a negative status code returned by the libmpv client API.
type Error int32

// Error codes from client.h. The set is dense: every value between
// ErrGeneric and ErrEventQueueFull is defined.
const (
	ErrEventQueueFull      Error = -1
	ErrNoMem               Error = -2
	ErrUninitialized       Error = -3
	ErrInvalidParameter    Error = -4
	ErrOptionNotFound      Error = -5
	ErrOptionFormat        Error = -6
	ErrOptionError         Error = -7
	ErrPropertyNotFound    Error = -8
	ErrPropertyFormat      Error = -9
	ErrPropertyUnavailable Error = -10
	ErrPropertyError       Error = -11
	ErrCommand             Error = -12
	ErrLoadingFailed       Error = -13
	ErrAOInitFailed        Error = -14
	ErrVOInitFailed        Error = -15
	ErrNothingToPlay       Error = -16
	ErrUnknownFormat       Error = -17
	ErrUnsupported         Error = -18
	ErrNotImplemented      Error = -19
	ErrGeneric             Error = -20

	errorCount = 21
)

// Go-side failures that have no native code.
var (
	// ErrClosed is returned by operations on a handle after Close.
	ErrClosed = errors.New("mpv: handle closed")
	// ErrUnsupportedFormat is returned when a payload uses a format tag
	// that has no Value representation (node, byte array, unknown tags).
	ErrUnsupportedFormat = errors.New("mpv: format not representable")
	// ErrLibraryUnavailable is returned when libmpv cannot be loaded.
	ErrLibraryUnavailable = errors.New("mpv: libmpv not available")
)

type errorMeta struct {
	Name        string
	Description string
}

// Static table indexed by -code. Descriptions match mpv_error_string and
// are only used when the native library has not been loaded.
var errorInfo = [errorCount]errorMeta{
	0:                       {"success", "success"},
	-ErrEventQueueFull:      {"event-queue-full", "event queue full"},
	-ErrNoMem:               {"nomem", "memory allocation failed"},
	-ErrUninitialized:       {"uninitialized", "core not initialized"},
	-ErrInvalidParameter:    {"invalid-parameter", "invalid parameter"},
	-ErrOptionNotFound:      {"option-not-found", "option not found"},
	-ErrOptionFormat:        {"option-format", "unsupported format for accessing option"},
	-ErrOptionError:         {"option-error", "error setting option"},
	-ErrPropertyNotFound:    {"property-not-found", "property not found"},
	-ErrPropertyFormat:      {"property-format", "unsupported format for accessing property"},
	-ErrPropertyUnavailable: {"property-unavailable", "property unavailable"},
	-ErrPropertyError:       {"property-error", "error accessing property"},
	-ErrCommand:             {"command", "error running command"},
	-ErrLoadingFailed:       {"loading-failed", "loading failed"},
	-ErrAOInitFailed:        {"ao-init-failed", "audio output initialization failed"},
	-ErrVOInitFailed:        {"vo-init-failed", "video output initialization failed"},
	-ErrNothingToPlay:       {"nothing-to-play", "no audio or video data played"},
	-ErrUnknownFormat:       {"unknown-format", "unrecognized file format"},
	-ErrUnsupported:         {"unsupported", "not supported"},
	-ErrNotImplemented:      {"not-implemented", "operation not implemented"},
	-ErrGeneric:             {"generic", "something happened"},
}

// errorStringer is installed once libmpv is loaded so descriptions come
// from the library's own table.
var errorStringer atomic.Pointer[func(code int32) string]

func setErrorStringer(fn func(code int32) string) {
	errorStringer.Store(&fn)
}

// Code returns the raw native status code.
func (e Error) Code() int32 { return int32(e) }

// Name returns the short identifier of the code, e.g. "property-not-found".
func (e Error) Name() string {
	if e > 0 || -e >= errorCount {
		return "unknown"
	}
	return errorInfo[-e].Name
}

// Description returns the human-readable text for the code. It is looked
// up on every call and has no side effects.
func (e Error) Description() string {
	if fn := errorStringer.Load(); fn != nil {
		if s := (*fn)(int32(e)); s != "" {
			return s
		}
	}
	if e > 0 || -e >= errorCount {
		return "unknown error"
	}
	return errorInfo[-e].Description
}

func (e Error) Error() string {
	return fmt.Sprintf("mpv: %s (%d)", e.Description(), int32(e))
}

// decodeError maps a negative status to its Error. The native code space
// is fixed per API version, so anything outside it is a binding defect.
func decodeError(code int32) Error {
	if code >= 0 || code <= -errorCount {
		panic(fmt.Sprintf("mpv: status code %d outside known error range", code))
	}
	return Error(code)
}

// toResult converts a native status into (v, nil) on success.
func toResult[T any](code int32, v T) (T, error) {
	if code >= 0 {
		return v, nil
	}
	var zero T
	return zero, decodeError(code)
}

// newError returns nil for a non-negative status.
func newError(code int32) error {
	_, err := toResult(code, struct{}{})
	return err
}
