// Package mpv provides Go bindings for the libmpv client API.
//
// Key pieces include:
//   - Handle, the owner of one native player context (Create, Initialize, Close)
//   - Typed property and option access through the closed Value set
//     (Flag, Int64, Double, String, OSDString)
//   - Synchronous and asynchronous commands and property requests
//   - Pull-based events decoded into typed Event values
//   - An optional OpenGL render sub-context for embedding video output
//
// # Lifecycle
//
//	h, err := mpv.Create()          // Created: options may be set
//	h.SetOption("vo", mpv.String("gpu"))
//	h.Initialize()                  // Initialized: properties and commands
//	h.Command("loadfile", "video.mkv")
//	for {
//		ev, ok := h.PollEvent(time.Second)
//		...
//	}
//	h.Close()                       // Destroyed
//
// Asynchronous requests take a ReplyID that comes back on the matching
// reply event. Replies are delivered in request order on the handle's single
// event queue, which must be drained even if the events are not needed.
//
// # Native Library
//
// libmpv is loaded at runtime with purego (no cgo required). Set
// MPV_LIB_PATH to the library file, or MPV_SDK_LIB_PATH to the directory
// containing it, to override the search.
//
// # Errors
//
// Native failures are returned as Error values (ErrPropertyNotFound,
// ErrUninitialized, ...) and can be matched with errors.Is. Misuse that
// indicates a broken integration, such as calling Render without a render
// sub-context, panics.
package mpv
