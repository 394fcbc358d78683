package mpv

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateCreated     State = iota // context allocated, not initialized
	StateInitialized              // core running
	StateRendering                // initialized with a render sub-context attached
	StateDestroyed                // all native resources released
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRendering:
		return "rendering"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Handle owns one native mpv context.
//
// The engine serializes requests internally, so a Handle may be used from
// several goroutines; the binding adds no locking of its own beyond state
// tracking. Close must not race with other calls.
//
// The hosting process must already satisfy the engine's global
// preconditions (LC_NUMERIC set to "C", signal handling) before Initialize.
type Handle struct {
	lib   clientAPI
	ctx   uintptr
	state atomic.Int32

	// render is the mpv_render_context, or 0.
	render uintptr
	// libmpvVO records that the "vo" option was set to "libmpv" before
	// initialization, which AttachRender depends on.
	libmpvVO bool

	closeOnce sync.Once
	log       *zap.Logger
}

// IsAvailable reports whether libmpv can be loaded.
func IsAvailable() bool {
	_, err := loadLibmpv()
	return err == nil
}

// ClientAPIVersion returns the MPV_CLIENT_API_VERSION of the loaded
// library: major version in the high 16 bits, minor in the low 16 bits.
func ClientAPIVersion() (uint32, error) {
	lib, err := loadLibmpv()
	if err != nil {
		return 0, err
	}
	return uint32(lib.clientAPIVersion()), nil
}

func formatAPIVersion(v uint64) string {
	return fmt.Sprintf("%d.%d", v>>16, v&0xffff)
}

// Create loads libmpv and allocates a new context in the Created state.
// Options may be set before calling Initialize.
func Create() (*Handle, error) {
	lib, err := loadLibmpv()
	if err != nil {
		return nil, err
	}
	return newHandle(lib)
}

func newHandle(lib clientAPI) (*Handle, error) {
	ctx := lib.create()
	if ctx == 0 {
		return nil, ErrNoMem
	}
	h := &Handle{
		lib: lib,
		ctx: ctx,
		log: Logger().With(zap.Uintptr("mpv", ctx)),
	}
	h.log.Debug("created mpv context")
	return h, nil
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Initialize starts the playback core. If no file is loaded the core idles.
func (h *Handle) Initialize() error {
	switch h.State() {
	case StateCreated:
	case StateDestroyed:
		return ErrClosed
	default:
		return fmt.Errorf("initialize: already %s: %w", h.State(), ErrInvalidParameter)
	}
	if err := newError(h.lib.initialize(h.ctx)); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	h.state.Store(int32(StateInitialized))
	h.log.Debug("initialized mpv context")
	return nil
}

// InitializeWithRender selects the libmpv video output, initializes the
// core and attaches an OpenGL render sub-context in one step.
func (h *Handle) InitializeWithRender(params RenderParams) error {
	switch h.State() {
	case StateCreated:
	case StateDestroyed:
		return ErrClosed
	default:
		return fmt.Errorf("initialize with render: already %s: %w", h.State(), ErrInvalidParameter)
	}
	if err := h.SetOption("vo", String("libmpv")); err != nil {
		return err
	}
	if err := h.Initialize(); err != nil {
		return err
	}
	return h.AttachRender(params)
}

// checkInit returns nil if native property and command calls are allowed.
func (h *Handle) checkInit() error {
	switch h.State() {
	case StateInitialized, StateRendering:
		return nil
	case StateDestroyed:
		return ErrClosed
	default:
		return ErrUninitialized
	}
}

// SetOption sets an engine option. Options are only reliably applied
// before Initialize; afterwards this behaves like SetProperty.
func (h *Handle) SetOption(name string, v Value) error {
	if h.State() == StateDestroyed {
		return ErrClosed
	}
	if v == nil {
		return fmt.Errorf("set option %q: nil value: %w", name, ErrInvalidParameter)
	}
	err := v.encode(func(data unsafe.Pointer) int32 {
		return h.lib.setOption(h.ctx, name, v.Format(), data)
	})
	if err != nil {
		return fmt.Errorf("set option %q: %w", name, err)
	}
	if name == "vo" && h.State() == StateCreated {
		s, ok := v.(String)
		h.libmpvVO = ok && s == "libmpv"
	}
	return nil
}

// SetProperty sets a property and blocks until the core has applied it.
func (h *Handle) SetProperty(name string, v Value) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("set property %q: nil value: %w", name, ErrInvalidParameter)
	}
	err := v.encode(func(data unsafe.Pointer) int32 {
		return h.lib.setProperty(h.ctx, name, v.Format(), data)
	})
	if err != nil {
		return fmt.Errorf("set property %q: %w", name, err)
	}
	return nil
}

// GetProperty reads a property in the given format and blocks until the
// core answers. The engine converts between formats where it can and fails
// with ErrPropertyFormat otherwise.
func (h *Handle) GetProperty(name string, format Format) (Value, error) {
	if err := h.checkInit(); err != nil {
		return nil, err
	}
	v, err := fetchValue(format, h.lib.free, func(data unsafe.Pointer) int32 {
		return h.lib.getProperty(h.ctx, name, format, data)
	})
	if err != nil {
		return nil, fmt.Errorf("get property %q: %w", name, err)
	}
	return v, nil
}

// Get reads a property as T.
//
//	pause, err := mpv.Get[mpv.Flag](h, "pause")
func Get[T Value](h *Handle, name string) (T, error) {
	var zero T
	v, err := h.GetProperty(name, zero.Format())
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("get property %q: decoded %T: %w", name, v, ErrPropertyFormat)
	}
	return t, nil
}

// Set is SetProperty with the value's type fixed at compile time.
func Set[T Value](h *Handle, name string, v T) error {
	return h.SetProperty(name, v)
}

func checkReplyID(id ReplyID) error {
	if id == 0 {
		return fmt.Errorf("reply id 0 is reserved: %w", ErrInvalidParameter)
	}
	return nil
}

// SetPropertyAsync queues a property write. The outcome arrives as a
// SetPropertyReplyEvent carrying id.
func (h *Handle) SetPropertyAsync(name string, v Value, id ReplyID) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if err := checkReplyID(id); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("set property %q: nil value: %w", name, ErrInvalidParameter)
	}
	err := v.encode(func(data unsafe.Pointer) int32 {
		return h.lib.setPropertyAsync(h.ctx, uint64(id), name, v.Format(), data)
	})
	if err != nil {
		return fmt.Errorf("set property %q: %w", name, err)
	}
	return nil
}

// GetPropertyAsync queues a property read. The value arrives as a
// GetPropertyReplyEvent carrying id.
func (h *Handle) GetPropertyAsync(name string, format Format, id ReplyID) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if err := checkReplyID(id); err != nil {
		return err
	}
	if !format.Representable() {
		return fmt.Errorf("get property %q: %w: %s", name, ErrUnsupportedFormat, format)
	}
	if err := newError(h.lib.getPropertyAsync(h.ctx, uint64(id), name, format)); err != nil {
		return fmt.Errorf("get property %q: %w", name, err)
	}
	return nil
}

// Command runs an input command, e.g. Command("loadfile", "video.mkv"),
// and blocks until it completes.
func (h *Handle) Command(args ...string) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	argv, pinner, err := cStringArray(args)
	if err != nil {
		return fmt.Errorf("command %q: %w", args, err)
	}
	defer pinner.Unpin()
	if err := newError(h.lib.command(h.ctx, argv)); err != nil {
		return fmt.Errorf("command %q: %w", args, err)
	}
	return nil
}

// CommandAsync queues a command. The outcome arrives as a
// CommandReplyEvent carrying id. There is no way to cancel it.
func (h *Handle) CommandAsync(id ReplyID, args ...string) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if err := checkReplyID(id); err != nil {
		return err
	}
	argv, pinner, err := cStringArray(args)
	if err != nil {
		return fmt.Errorf("command %q: %w", args, err)
	}
	defer pinner.Unpin()
	if err := newError(h.lib.commandAsync(h.ctx, uint64(id), argv)); err != nil {
		return fmt.Errorf("command %q: %w", args, err)
	}
	return nil
}

// CommandString runs a command written in input.conf syntax,
// e.g. "cycle pause".
func (h *Handle) CommandString(cmd string) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if _, err := cString(cmd); err != nil {
		return fmt.Errorf("command %q: %w", cmd, err)
	}
	if err := newError(h.lib.commandString(h.ctx, cmd)); err != nil {
		return fmt.Errorf("command %q: %w", cmd, err)
	}
	return nil
}

// ObserveProperty subscribes to changes of name. Each change produces a
// PropertyChangeEvent carrying id, until UnobserveProperty(id). Use
// FormatNone to be notified without a value.
func (h *Handle) ObserveProperty(name string, format Format, id ReplyID) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if err := checkReplyID(id); err != nil {
		return err
	}
	if format != FormatNone && !format.Representable() {
		return fmt.Errorf("observe %q: %w: %s", name, ErrUnsupportedFormat, format)
	}
	if err := newError(h.lib.observeProperty(h.ctx, uint64(id), name, format)); err != nil {
		return fmt.Errorf("observe %q: %w", name, err)
	}
	return nil
}

// UnobserveProperty removes every observation registered with id. Removing
// an id that has no observations is not an error.
func (h *Handle) UnobserveProperty(id ReplyID) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	// The engine returns the number of removed observers.
	if err := newError(h.lib.unobserveProperty(h.ctx, uint64(id))); err != nil {
		return fmt.Errorf("unobserve %d: %w", id, err)
	}
	return nil
}

// RequestLogMessages enables LogMessageEvents at minLevel and above.
// LogLevelNone disables them.
func (h *Handle) RequestLogMessages(minLevel LogLevel) error {
	if err := h.checkInit(); err != nil {
		return err
	}
	if err := newError(h.lib.requestLogMessages(h.ctx, minLevel.String())); err != nil {
		return fmt.Errorf("request log messages: %w", err)
	}
	return nil
}

// PollEvent waits up to timeout for the next event. A zero timeout returns
// immediately; a negative timeout waits indefinitely. It returns false when
// no event arrived.
//
// The queue has finite capacity, so callers must keep polling even if they
// ignore the events. A QueueOverflowEvent means events were dropped.
func (h *Handle) PollEvent(timeout time.Duration) (Event, bool) {
	if h.checkInit() != nil {
		return nil, false
	}
	secs := timeout.Seconds()
	if timeout < 0 {
		secs = -1
	}
	p := h.lib.waitEvent(h.ctx, secs)
	if p == nil {
		panic("mpv: mpv_wait_event returned NULL")
	}
	ev := decodeEvent((*rawEvent)(p))
	if ev == nil {
		return nil, false
	}
	if _, ok := ev.(QueueOverflowEvent); ok {
		h.log.Warn("mpv event queue overflowed; events were dropped")
	}
	return ev, true
}

// Wakeup interrupts a PollEvent blocked in another goroutine.
func (h *Handle) Wakeup() {
	if h.checkInit() == nil {
		h.lib.wakeup(h.ctx)
	}
}

// Close destroys the native context. An attached render sub-context is
// freed first. Close never fails and only the first call has an effect.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		prev := State(h.state.Swap(int32(StateDestroyed)))
		if h.render != 0 {
			h.lib.renderContextFree(h.render)
			h.render = 0
		}
		h.lib.terminateDestroy(h.ctx)
		h.ctx = 0
		h.log.Debug("destroyed mpv context", zap.Stringer("from", prev))
	})
	return nil
}

// IsShutdown reports whether ev asks the client to close its handle.
func IsShutdown(ev Event) bool {
	_, ok := ev.(ShutdownEvent)
	return ok
}
