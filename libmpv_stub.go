//go:build !darwin && !linux

package mpv

func loadLibmpv() (clientAPI, error) {
	return nil, ErrLibraryUnavailable
}

// NewProcAddressCallback is unavailable on this platform and returns 0.
func NewProcAddressCallback(fn func(name string) uintptr) uintptr {
	return 0
}
