//go:build darwin || linux

// libmpv is loaded dynamically at runtime with purego, so the package
// builds without cgo and without mpv development headers.

package mpv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

var (
	libmpvOnce    sync.Once
	libmpvLib     *libmpv
	libmpvInitErr error
)

// libmpv function pointers, one field per client.h entry point.
type libmpv struct {
	handle uintptr

	mpvClientAPIVersion   func() uint64
	mpvErrorString        func(code int32) string
	mpvEventName          func(id int32) string
	mpvFree               func(data unsafe.Pointer)
	mpvCreate             func() uintptr
	mpvInitialize         func(ctx uintptr) int32
	mpvTerminateDestroy   func(ctx uintptr)
	mpvWakeup             func(ctx uintptr)
	mpvRequestLogMessages func(ctx uintptr, minLevel string) int32

	mpvSetOption         func(ctx uintptr, name string, format int32, data unsafe.Pointer) int32
	mpvSetProperty       func(ctx uintptr, name string, format int32, data unsafe.Pointer) int32
	mpvSetPropertyAsync  func(ctx uintptr, replyID uint64, name string, format int32, data unsafe.Pointer) int32
	mpvGetProperty       func(ctx uintptr, name string, format int32, data unsafe.Pointer) int32
	mpvGetPropertyAsync  func(ctx uintptr, replyID uint64, name string, format int32) int32
	mpvObserveProperty   func(ctx uintptr, replyID uint64, name string, format int32) int32
	mpvUnobserveProperty func(ctx uintptr, replyID uint64) int32

	mpvCommand       func(ctx uintptr, args unsafe.Pointer) int32
	mpvCommandAsync  func(ctx uintptr, replyID uint64, args unsafe.Pointer) int32
	mpvCommandString func(ctx uintptr, cmd string) int32

	mpvWaitEvent func(ctx uintptr, timeout float64) unsafe.Pointer

	mpvRenderContextCreate     func(res unsafe.Pointer, ctx uintptr, params unsafe.Pointer) int32
	mpvRenderContextRender     func(rctx uintptr, params unsafe.Pointer) int32
	mpvRenderContextReportSwap func(rctx uintptr)
	mpvRenderContextFree       func(rctx uintptr)
}

// loadLibmpv loads the libmpv shared library once per process.
func loadLibmpv() (clientAPI, error) {
	libmpvOnce.Do(func() {
		libmpvLib, libmpvInitErr = loadLibmpvLib()
		if libmpvInitErr == nil {
			setErrorStringer(libmpvLib.errorString)
			setEventNamer(libmpvLib.eventName)
		}
	})
	if libmpvInitErr != nil {
		return nil, libmpvInitErr
	}
	return libmpvLib, nil
}

func loadLibmpvLib() (*libmpv, error) {
	log := Logger()

	var lastErr error
	for _, path := range getLibmpvPaths() {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		lib := &libmpv{handle: handle}
		if err := lib.loadSymbols(); err != nil {
			purego.Dlclose(handle)
			log.Debug("libmpv missing symbols", zap.String("path", path), zap.Error(err))
			lastErr = err
			continue
		}
		log.Debug("loaded libmpv",
			zap.String("path", path),
			zap.String("api_version", formatAPIVersion(lib.clientAPIVersion())))
		return lib, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrLibraryUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: not found in any standard location", ErrLibraryUnavailable)
}

func getLibmpvPaths() []string {
	var paths []string

	libNames := []string{"libmpv.so.2", "libmpv.so", "libmpv.so.1"}
	if runtime.GOOS == "darwin" {
		libNames = []string{"libmpv.2.dylib", "libmpv.dylib"}
	}

	// Environment variable overrides
	if envPath := os.Getenv("MPV_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("MPV_SDK_LIB_PATH"); envPath != "" {
		for _, name := range libNames {
			paths = append(paths, filepath.Join(envPath, name))
		}
	}

	// Next to the executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		for _, name := range libNames {
			paths = append(paths,
				filepath.Join(exeDir, name),
				filepath.Join(exeDir, "..", "lib", name),
			)
		}
	}

	// Module root, for tests and development builds
	if root := findModuleRoot(); root != "" {
		for _, name := range libNames {
			paths = append(paths, filepath.Join(root, "build", name))
		}
	}

	// Bare names go through the dynamic loader's search path
	paths = append(paths, libNames...)

	// System paths
	switch runtime.GOOS {
	case "darwin":
		for _, name := range libNames {
			paths = append(paths,
				filepath.Join("/usr/local/lib", name),
				filepath.Join("/opt/homebrew/lib", name),
			)
		}
	case "linux":
		for _, name := range libNames {
			paths = append(paths,
				filepath.Join("/usr/local/lib", name),
				filepath.Join("/usr/lib", name),
				filepath.Join("/usr/lib/x86_64-linux-gnu", name),
				filepath.Join("/usr/lib/aarch64-linux-gnu", name),
			)
		}
	}

	return paths
}

func (l *libmpv) loadSymbols() (err error) {
	// RegisterLibFunc panics on a missing symbol.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register libmpv symbols: %v", r)
		}
	}()

	if _, err := purego.Dlsym(l.handle, "mpv_render_context_create"); err != nil {
		return errors.New("libmpv too old: render API missing")
	}

	purego.RegisterLibFunc(&l.mpvClientAPIVersion, l.handle, "mpv_client_api_version")
	purego.RegisterLibFunc(&l.mpvErrorString, l.handle, "mpv_error_string")
	purego.RegisterLibFunc(&l.mpvEventName, l.handle, "mpv_event_name")
	purego.RegisterLibFunc(&l.mpvFree, l.handle, "mpv_free")
	purego.RegisterLibFunc(&l.mpvCreate, l.handle, "mpv_create")
	purego.RegisterLibFunc(&l.mpvInitialize, l.handle, "mpv_initialize")
	purego.RegisterLibFunc(&l.mpvTerminateDestroy, l.handle, "mpv_terminate_destroy")
	purego.RegisterLibFunc(&l.mpvWakeup, l.handle, "mpv_wakeup")
	purego.RegisterLibFunc(&l.mpvRequestLogMessages, l.handle, "mpv_request_log_messages")

	// Properties and options
	purego.RegisterLibFunc(&l.mpvSetOption, l.handle, "mpv_set_option")
	purego.RegisterLibFunc(&l.mpvSetProperty, l.handle, "mpv_set_property")
	purego.RegisterLibFunc(&l.mpvSetPropertyAsync, l.handle, "mpv_set_property_async")
	purego.RegisterLibFunc(&l.mpvGetProperty, l.handle, "mpv_get_property")
	purego.RegisterLibFunc(&l.mpvGetPropertyAsync, l.handle, "mpv_get_property_async")
	purego.RegisterLibFunc(&l.mpvObserveProperty, l.handle, "mpv_observe_property")
	purego.RegisterLibFunc(&l.mpvUnobserveProperty, l.handle, "mpv_unobserve_property")

	// Commands and events
	purego.RegisterLibFunc(&l.mpvCommand, l.handle, "mpv_command")
	purego.RegisterLibFunc(&l.mpvCommandAsync, l.handle, "mpv_command_async")
	purego.RegisterLibFunc(&l.mpvCommandString, l.handle, "mpv_command_string")
	purego.RegisterLibFunc(&l.mpvWaitEvent, l.handle, "mpv_wait_event")

	// Render API
	purego.RegisterLibFunc(&l.mpvRenderContextCreate, l.handle, "mpv_render_context_create")
	purego.RegisterLibFunc(&l.mpvRenderContextRender, l.handle, "mpv_render_context_render")
	purego.RegisterLibFunc(&l.mpvRenderContextReportSwap, l.handle, "mpv_render_context_report_swap")
	purego.RegisterLibFunc(&l.mpvRenderContextFree, l.handle, "mpv_render_context_free")

	return nil
}

func (l *libmpv) clientAPIVersion() uint64      { return l.mpvClientAPIVersion() }
func (l *libmpv) errorString(code int32) string { return l.mpvErrorString(code) }
func (l *libmpv) eventName(id EventID) string   { return l.mpvEventName(int32(id)) }
func (l *libmpv) free(data unsafe.Pointer)      { l.mpvFree(data) }
func (l *libmpv) create() uintptr               { return l.mpvCreate() }
func (l *libmpv) initialize(ctx uintptr) int32  { return l.mpvInitialize(ctx) }
func (l *libmpv) terminateDestroy(ctx uintptr)  { l.mpvTerminateDestroy(ctx) }
func (l *libmpv) wakeup(ctx uintptr)            { l.mpvWakeup(ctx) }

func (l *libmpv) requestLogMessages(ctx uintptr, minLevel string) int32 {
	return l.mpvRequestLogMessages(ctx, minLevel)
}

func (l *libmpv) setOption(ctx uintptr, name string, format Format, data unsafe.Pointer) int32 {
	return l.mpvSetOption(ctx, name, int32(format), data)
}

func (l *libmpv) setProperty(ctx uintptr, name string, format Format, data unsafe.Pointer) int32 {
	return l.mpvSetProperty(ctx, name, int32(format), data)
}

func (l *libmpv) setPropertyAsync(ctx uintptr, replyID uint64, name string, format Format, data unsafe.Pointer) int32 {
	return l.mpvSetPropertyAsync(ctx, replyID, name, int32(format), data)
}

func (l *libmpv) getProperty(ctx uintptr, name string, format Format, data unsafe.Pointer) int32 {
	return l.mpvGetProperty(ctx, name, int32(format), data)
}

func (l *libmpv) getPropertyAsync(ctx uintptr, replyID uint64, name string, format Format) int32 {
	return l.mpvGetPropertyAsync(ctx, replyID, name, int32(format))
}

func (l *libmpv) observeProperty(ctx uintptr, replyID uint64, name string, format Format) int32 {
	return l.mpvObserveProperty(ctx, replyID, name, int32(format))
}

func (l *libmpv) unobserveProperty(ctx uintptr, replyID uint64) int32 {
	return l.mpvUnobserveProperty(ctx, replyID)
}

func (l *libmpv) command(ctx uintptr, args unsafe.Pointer) int32 {
	return l.mpvCommand(ctx, args)
}

func (l *libmpv) commandAsync(ctx uintptr, replyID uint64, args unsafe.Pointer) int32 {
	return l.mpvCommandAsync(ctx, replyID, args)
}

func (l *libmpv) commandString(ctx uintptr, cmd string) int32 {
	return l.mpvCommandString(ctx, cmd)
}

func (l *libmpv) waitEvent(ctx uintptr, timeout float64) unsafe.Pointer {
	return l.mpvWaitEvent(ctx, timeout)
}

func (l *libmpv) renderContextCreate(res unsafe.Pointer, ctx uintptr, params unsafe.Pointer) int32 {
	return l.mpvRenderContextCreate(res, ctx, params)
}

func (l *libmpv) renderContextRender(rctx uintptr, params unsafe.Pointer) int32 {
	return l.mpvRenderContextRender(rctx, params)
}

func (l *libmpv) renderContextReportSwap(rctx uintptr) { l.mpvRenderContextReportSwap(rctx) }
func (l *libmpv) renderContextFree(rctx uintptr)       { l.mpvRenderContextFree(rctx) }

// NewProcAddressCallback wraps fn as a C function pointer suitable for
// RenderParams.GetProcAddress. fn receives the OpenGL symbol name and
// returns its address, or 0.
//
// purego keeps a fixed number of callback slots for the whole process, so
// create the callback once and reuse it.
func NewProcAddressCallback(fn func(name string) uintptr) uintptr {
	return purego.NewCallback(func(ctx, name uintptr) uintptr {
		return fn(goStringFromPtr(name))
	})
}
