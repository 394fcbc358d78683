package mpv

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"
)

// goString copies a NUL-terminated C string into Go memory.
// A nil pointer yields "".
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	var n uintptr
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice(p, n))
}

// goStringFromPtr is goString for pointers that arrive as integers,
// e.g. callback arguments. ptr must point to C memory, which the Go
// garbage collector never moves or frees, so the conversion is valid even
// though vet cannot prove it.
func goStringFromPtr(ptr uintptr) string {
	return goString((*byte)(unsafe.Pointer(ptr)))
}

// cString returns a NUL-terminated copy of s.
func cString(s string) ([]byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, fmt.Errorf("string %q contains NUL byte: %w", s, ErrInvalidParameter)
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, nil
}

// cStringArray builds a NULL-terminated char* array for argv-style calls.
// Every buffer is pinned until the returned Pinner is unpinned.
func cStringArray(args []string) (unsafe.Pointer, *runtime.Pinner, error) {
	ptrs := make([]*byte, len(args)+1)
	pinner := new(runtime.Pinner)
	for i, arg := range args {
		b, err := cString(arg)
		if err != nil {
			pinner.Unpin()
			return nil, nil, err
		}
		pinner.Pin(&b[0])
		ptrs[i] = &b[0]
	}
	pinner.Pin(&ptrs[0])
	return unsafe.Pointer(&ptrs[0]), pinner, nil
}

// cStringArrayN reads n entries of a char* array without freeing them.
func cStringArrayN(p unsafe.Pointer, n int) []string {
	if p == nil || n <= 0 {
		return nil
	}
	ptrs := unsafe.Slice((**byte)(p), n)
	out := make([]string, n)
	for i, s := range ptrs {
		out[i] = goString(s)
	}
	return out
}

// findModuleRoot walks up the directory tree from the current working directory
// to find the module root (directory containing go.mod).
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
