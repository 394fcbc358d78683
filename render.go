package mpv

import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
)

// RenderParams configures the OpenGL render sub-context.
type RenderParams struct {
	// GetProcAddress is a C function pointer with the signature
	// void *(*)(void *ctx, const char *name), typically supplied by the
	// windowing toolkit or built with NewProcAddressCallback.
	GetProcAddress uintptr
	// GetProcAddressCtx is passed through to GetProcAddress unchanged.
	GetProcAddressCtx unsafe.Pointer
}

// FramebufferTarget describes where Render draws.
type FramebufferTarget struct {
	// FBO is the framebuffer object name; 0 is the default framebuffer.
	FBO int32
	// Width and Height are the framebuffer size. The whole framebuffer is
	// always used. A negative Height renders the frame flipped vertically.
	Width  int32
	Height int32
	// InternalFormat is the FBO's internal format, or 0 if unknown.
	InternalFormat int32
}

// AttachRender attaches an OpenGL render sub-context to an initialized
// handle. The "vo" option must have been set to "libmpv" before
// Initialize, otherwise the engine opens its own window and the call fails
// with ErrInvalidParameter. The caller's OpenGL context must be current.
func (h *Handle) AttachRender(params RenderParams) error {
	switch h.State() {
	case StateInitialized:
	case StateRendering:
		return fmt.Errorf("attach render: already attached: %w", ErrInvalidParameter)
	case StateDestroyed:
		return ErrClosed
	default:
		return ErrUninitialized
	}
	if !h.libmpvVO {
		return fmt.Errorf(`attach render: option vo=libmpv must be set before initialize: %w`, ErrInvalidParameter)
	}
	if params.GetProcAddress == 0 {
		return fmt.Errorf("attach render: nil GetProcAddress: %w", ErrInvalidParameter)
	}

	apiType := []byte("opengl\x00")
	initParams := &rawOpenGLInitParams{
		GetProcAddress:    params.GetProcAddress,
		GetProcAddressCtx: params.GetProcAddressCtx,
	}
	list := []rawRenderParam{
		{Type: renderParamAPIType, Data: unsafe.Pointer(&apiType[0])},
		{Type: renderParamOpenGLInitParams, Data: unsafe.Pointer(initParams)},
		{Type: renderParamInvalid},
	}
	res := new(uintptr)

	var pinner runtime.Pinner
	pinner.Pin(&apiType[0])
	pinner.Pin(initParams)
	pinner.Pin(&list[0])
	pinner.Pin(res)
	code := h.lib.renderContextCreate(unsafe.Pointer(res), h.ctx, unsafe.Pointer(&list[0]))
	pinner.Unpin()

	if err := newError(code); err != nil {
		return fmt.Errorf("attach render: %w", err)
	}
	h.render = *res
	h.state.Store(int32(StateRendering))
	h.log.Debug("attached render context", zap.Uintptr("render", h.render))
	return nil
}

// Render draws the current video frame into target and blocks until done.
// It must be called on the thread where the OpenGL context is current.
//
// Render panics if no render sub-context is attached.
func (h *Handle) Render(target FramebufferTarget) error {
	if h.State() != StateRendering {
		panic(fmt.Sprintf("mpv: Render called on %s handle", h.State()))
	}

	fbo := &rawOpenGLFBO{
		FBO:            target.FBO,
		W:              target.Width,
		H:              target.Height,
		InternalFormat: target.InternalFormat,
	}
	flip := new(int32)
	if fbo.H < 0 {
		fbo.H = -fbo.H
		*flip = 1
	}
	list := []rawRenderParam{
		{Type: renderParamOpenGLFBO, Data: unsafe.Pointer(fbo)},
		{Type: renderParamFlipY, Data: unsafe.Pointer(flip)},
		{Type: renderParamInvalid},
	}

	var pinner runtime.Pinner
	pinner.Pin(fbo)
	pinner.Pin(flip)
	pinner.Pin(&list[0])
	code := h.lib.renderContextRender(h.render, unsafe.Pointer(&list[0]))
	pinner.Unpin()

	if err := newError(code); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// ReportSwap tells the engine a frame was presented, for frame timing.
// It panics if no render sub-context is attached.
func (h *Handle) ReportSwap() {
	if h.State() != StateRendering {
		panic(fmt.Sprintf("mpv: ReportSwap called on %s handle", h.State()))
	}
	h.lib.renderContextReportSwap(h.render)
}
