package mpv

import "unsafe"

// clientAPI is the subset of libmpv's C client API the binding calls.
// Pointers are passed through untouched; all marshaling happens on the Go
// side of this boundary so every backend sees the same memory layouts.
type clientAPI interface {
	clientAPIVersion() uint64
	errorString(code int32) string
	eventName(id EventID) string
	free(data unsafe.Pointer)

	create() uintptr
	initialize(ctx uintptr) int32
	terminateDestroy(ctx uintptr)
	wakeup(ctx uintptr)
	requestLogMessages(ctx uintptr, minLevel string) int32

	setOption(ctx uintptr, name string, format Format, data unsafe.Pointer) int32
	setProperty(ctx uintptr, name string, format Format, data unsafe.Pointer) int32
	setPropertyAsync(ctx uintptr, replyID uint64, name string, format Format, data unsafe.Pointer) int32
	getProperty(ctx uintptr, name string, format Format, data unsafe.Pointer) int32
	getPropertyAsync(ctx uintptr, replyID uint64, name string, format Format) int32
	observeProperty(ctx uintptr, replyID uint64, name string, format Format) int32
	unobserveProperty(ctx uintptr, replyID uint64) int32

	command(ctx uintptr, args unsafe.Pointer) int32
	commandAsync(ctx uintptr, replyID uint64, args unsafe.Pointer) int32
	commandString(ctx uintptr, cmd string) int32

	// waitEvent returns a pointer to an mpv_event owned by the handle and
	// valid until the next call.
	waitEvent(ctx uintptr, timeout float64) unsafe.Pointer

	renderContextCreate(res unsafe.Pointer, ctx uintptr, params unsafe.Pointer) int32
	renderContextRender(rctx uintptr, params unsafe.Pointer) int32
	renderContextReportSwap(rctx uintptr)
	renderContextFree(rctx uintptr)
}

// Memory layouts of the client.h structs read by the event decoder.

// mpv_event
type rawEvent struct {
	EventID       EventID
	Error         int32
	ReplyUserdata uint64
	Data          unsafe.Pointer
}

// mpv_event_property
type rawEventProperty struct {
	Name   *byte
	Format Format
	Data   unsafe.Pointer
}

// mpv_event_log_message
type rawEventLogMessage struct {
	Prefix   *byte
	Level    *byte
	Text     *byte
	LogLevel LogLevel
}

// mpv_event_start_file
type rawEventStartFile struct {
	PlaylistEntryID int64
}

// mpv_event_end_file
type rawEventEndFile struct {
	Reason                   EndFileReason
	Error                    int32
	PlaylistEntryID          int64
	PlaylistInsertID         int64
	PlaylistInsertNumEntries int32
}

// mpv_event_client_message
type rawEventClientMessage struct {
	NumArgs int32
	Args    unsafe.Pointer
}

// mpv_render_param
type rawRenderParam struct {
	Type renderParamType
	Data unsafe.Pointer
}

// mpv_opengl_init_params
type rawOpenGLInitParams struct {
	GetProcAddress    uintptr
	GetProcAddressCtx unsafe.Pointer
}

// mpv_opengl_fbo
type rawOpenGLFBO struct {
	FBO            int32
	W              int32
	H              int32
	InternalFormat int32
}

type renderParamType int32

const (
	renderParamInvalid          renderParamType = 0
	renderParamAPIType          renderParamType = 1
	renderParamOpenGLInitParams renderParamType = 2
	renderParamOpenGLFBO        renderParamType = 3
	renderParamFlipY            renderParamType = 4
)
