package mpv

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// fakeMPV implements clientAPI in Go. It reads and writes the same memory
// layouts libmpv does, so the codec and event decoder run unchanged
// against it. It never blocks.
type fakeMPV struct {
	calls []string

	createFails bool
	initCode    int32
	renderCode  int32

	initialized bool
	logLevel    string

	options   map[string]Value
	props     map[string]Value
	nullProps map[string]bool
	observers []fakeObserver

	queue      []fakeEvent
	capacity   int
	overflowed bool

	nextEntryID  int64
	lastTimeout  float64
	wakeups      int
	freed        []unsafe.Pointer
	handedOut    map[unsafe.Pointer]bool
	badFrees     int
	renderParams []renderParamType
	lastFBO      rawOpenGLFBO
	lastFlip     int32
	swaps        int

	// ev and keep back the pointer returned by waitEvent; both are
	// replaced on the next call like the engine's own event buffer.
	ev   rawEvent
	keep [][]byte
}

type fakeObserver struct {
	id     uint64
	name   string
	format Format
}

type fakeEvent struct {
	id      EventID
	err     int32
	replyID uint64

	propName   string
	propFormat Format
	propValue  Value

	log       *LogMessageEvent
	startFile *rawEventStartFile
	endFile   *rawEventEndFile
	args      []string
}

const fakeCtx uintptr = 0x1000
const fakeRenderCtx uintptr = 0x2000

var fakeKnownOptions = map[string]bool{
	"vo": true, "ao": true, "idle": true, "terminal": true, "config": true,
	"really-quiet": true, "hwdec": true,
}

func newFakeMPV() *fakeMPV {
	return &fakeMPV{
		options: map[string]Value{},
		props: map[string]Value{
			"pause":        Flag(false),
			"mute":         Flag(false),
			"volume":       Double(100),
			"speed":        Double(1),
			"playlist-pos": Int64(-1),
			"loop":         String("no"),
			"media-title":  String(""),
			"path":         String(""),
		},
		nullProps: map[string]bool{},
		capacity:  1000,
		handedOut: map[unsafe.Pointer]bool{},
	}
}

// newTestHandle returns an initialized handle backed by a fake.
func newTestHandle() (*Handle, *fakeMPV) {
	f := newFakeMPV()
	h, err := newHandle(f)
	if err != nil {
		panic(err)
	}
	if err := h.Initialize(); err != nil {
		panic(err)
	}
	return h, f
}

func (f *fakeMPV) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// cstr copies s into a NUL-terminated buffer kept alive by keep.
func (f *fakeMPV) cstr(keep *[][]byte, s string) *byte {
	b := append([]byte(s), 0)
	*keep = append(*keep, b)
	return &b[0]
}

func (f *fakeMPV) push(ev fakeEvent) {
	if f.overflowed {
		return
	}
	if len(f.queue) >= f.capacity {
		f.overflowed = true
		f.queue = append(f.queue, fakeEvent{id: EventQueueOverflow})
		return
	}
	f.queue = append(f.queue, ev)
}

// readNative decodes a value the way the engine reads a client's buffer.
func readNative(format Format, data unsafe.Pointer) Value {
	switch format {
	case FormatFlag:
		switch w := *(*int32)(data); w {
		case 0:
			return Flag(false)
		case 1:
			return Flag(true)
		default:
			panic(fmt.Sprintf("fake: bad flag %d", w))
		}
	case FormatInt64:
		return Int64(*(*int64)(data))
	case FormatDouble:
		return Double(*(*float64)(data))
	case FormatString:
		return String(goString(*(**byte)(data)))
	case FormatOSDString:
		return OSDString(goString(*(**byte)(data)))
	}
	panic("fake: unreadable format " + format.String())
}

func formatText(v Value) string {
	switch v := v.(type) {
	case Flag:
		if v {
			return "yes"
		}
		return "no"
	case Int64:
		return strconv.FormatInt(int64(v), 10)
	case Double:
		return strconv.FormatFloat(float64(v), 'f', 6, 64)
	case String:
		return string(v)
	case OSDString:
		return string(v)
	}
	return ""
}

// convert mimics the engine's conversions between property formats.
func convert(v Value, format Format) (Value, int32) {
	if v.Format() == format {
		return v, 0
	}
	switch format {
	case FormatString:
		return String(formatText(v)), 0
	case FormatOSDString:
		return OSDString(formatText(v)), 0
	case FormatDouble:
		if i, ok := v.(Int64); ok {
			return Double(i), 0
		}
	}
	return nil, int32(ErrPropertyFormat)
}

// parseAs converts a string write into the stored property's type.
func parseAs(s string, like Value) (Value, int32) {
	switch like.(type) {
	case Flag:
		switch s {
		case "yes":
			return Flag(true), 0
		case "no":
			return Flag(false), 0
		}
	case Int64:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int64(i), 0
		}
	case Double:
		if d, err := strconv.ParseFloat(s, 64); err == nil {
			return Double(d), 0
		}
	case String:
		return String(s), 0
	}
	return nil, int32(ErrPropertyFormat)
}

func (f *fakeMPV) store(name string, v Value) int32 {
	old, ok := f.props[name]
	if !ok {
		return int32(ErrPropertyNotFound)
	}
	if v.Format() == FormatOSDString {
		return int32(ErrPropertyFormat)
	}
	if v.Format() != old.Format() {
		s, isString := v.(String)
		if !isString {
			return int32(ErrPropertyFormat)
		}
		var code int32
		if v, code = parseAs(string(s), old); code < 0 {
			return code
		}
	}
	f.props[name] = v
	for _, o := range f.observers {
		if o.name == name {
			f.pushChange(o)
		}
	}
	return 0
}

func (f *fakeMPV) pushChange(o fakeObserver) {
	ev := fakeEvent{id: EventPropertyChange, replyID: o.id, propName: o.name, propFormat: o.format}
	if o.format != FormatNone {
		if v, code := convert(f.props[o.name], o.format); code == 0 {
			ev.propValue = v
		} else {
			ev.propFormat = FormatNone
		}
	}
	f.push(ev)
}

func (f *fakeMPV) lookup(name string, format Format) (Value, int32) {
	v, ok := f.props[name]
	if !ok {
		return nil, int32(ErrPropertyNotFound)
	}
	return convert(v, format)
}

func (f *fakeMPV) clientAPIVersion() uint64      { return 2<<16 | 1 }
func (f *fakeMPV) errorString(code int32) string { return "" }
func (f *fakeMPV) eventName(id EventID) string   { return eventNames[id] }

func (f *fakeMPV) free(data unsafe.Pointer) {
	f.record("free")
	if !f.handedOut[data] {
		f.badFrees++
		return
	}
	delete(f.handedOut, data)
	f.freed = append(f.freed, data)
}

func (f *fakeMPV) create() uintptr {
	f.record("create")
	if f.createFails {
		return 0
	}
	return fakeCtx
}

func (f *fakeMPV) initialize(ctx uintptr) int32 {
	f.record("initialize")
	if f.initCode < 0 {
		return f.initCode
	}
	f.initialized = true
	return 0
}

func (f *fakeMPV) terminateDestroy(ctx uintptr) { f.record("terminate_destroy") }

func (f *fakeMPV) wakeup(ctx uintptr) {
	f.record("wakeup")
	f.wakeups++
}

func (f *fakeMPV) requestLogMessages(ctx uintptr, minLevel string) int32 {
	f.record("request_log_messages %s", minLevel)
	f.logLevel = minLevel
	return 0
}

func (f *fakeMPV) setOption(ctx uintptr, name string, format Format, data unsafe.Pointer) int32 {
	f.record("set_option %s", name)
	v := readNative(format, data)
	if _, isProp := f.props[name]; isProp {
		return f.store(name, v)
	}
	if !fakeKnownOptions[name] {
		return int32(ErrOptionNotFound)
	}
	f.options[name] = v
	return 0
}

func (f *fakeMPV) setProperty(ctx uintptr, name string, format Format, data unsafe.Pointer) int32 {
	f.record("set_property %s", name)
	return f.store(name, readNative(format, data))
}

func (f *fakeMPV) setPropertyAsync(ctx uintptr, replyID uint64, name string, format Format, data unsafe.Pointer) int32 {
	f.record("set_property_async %s", name)
	code := f.store(name, readNative(format, data))
	f.push(fakeEvent{id: EventSetPropertyReply, err: code, replyID: replyID})
	return 0
}

func (f *fakeMPV) getProperty(ctx uintptr, name string, format Format, data unsafe.Pointer) int32 {
	f.record("get_property %s", name)
	if f.nullProps[name] {
		return 0
	}
	v, code := f.lookup(name, format)
	if code < 0 {
		return code
	}
	switch v := v.(type) {
	case Flag:
		var w int32
		if v {
			w = 1
		}
		*(*int32)(data) = w
	case Int64:
		*(*int64)(data) = int64(v)
	case Double:
		*(*float64)(data) = float64(v)
	case String, OSDString:
		var keep [][]byte
		p := f.cstr(&keep, formatText(v))
		f.handedOut[unsafe.Pointer(p)] = true
		*(**byte)(data) = p
	}
	return 0
}

func (f *fakeMPV) getPropertyAsync(ctx uintptr, replyID uint64, name string, format Format) int32 {
	f.record("get_property_async %s", name)
	v, code := f.lookup(name, format)
	ev := fakeEvent{id: EventGetPropertyReply, err: code, replyID: replyID, propName: name}
	if code == 0 {
		ev.propFormat = format
		ev.propValue = v
	}
	f.push(ev)
	return 0
}

func (f *fakeMPV) observeProperty(ctx uintptr, replyID uint64, name string, format Format) int32 {
	f.record("observe_property %s", name)
	if _, ok := f.props[name]; !ok {
		return int32(ErrPropertyNotFound)
	}
	o := fakeObserver{id: replyID, name: name, format: format}
	f.observers = append(f.observers, o)
	// The engine always reports the current value once.
	f.pushChange(o)
	return 0
}

func (f *fakeMPV) unobserveProperty(ctx uintptr, replyID uint64) int32 {
	f.record("unobserve_property %d", replyID)
	var removed int32
	kept := f.observers[:0]
	for _, o := range f.observers {
		if o.id == replyID {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	f.observers = kept
	return removed
}

// readArgv walks a NULL-terminated char* array.
func readArgv(p unsafe.Pointer) []string {
	var args []string
	for i := 0; ; i++ {
		s := *(**byte)(unsafe.Add(p, uintptr(i)*unsafe.Sizeof(uintptr(0))))
		if s == nil {
			return args
		}
		args = append(args, goString(s))
	}
}

func (f *fakeMPV) run(args []string) int32 {
	if len(args) == 0 {
		return int32(ErrInvalidParameter)
	}
	switch args[0] {
	case "loadfile":
		if len(args) < 2 {
			return int32(ErrInvalidParameter)
		}
		f.nextEntryID++
		f.props["path"] = String(args[1])
		f.push(fakeEvent{id: EventStartFile, startFile: &rawEventStartFile{PlaylistEntryID: f.nextEntryID}})
		if f.logLevel != "" && f.logLevel != "no" {
			f.push(fakeEvent{id: EventLogMessage, log: &LogMessageEvent{
				Prefix: "cplayer", Level: "info", Text: "Playing: " + args[1] + "\n", LogLevel: LogLevelInfo,
			}})
		}
		if strings.HasPrefix(args[1], "missing") {
			f.push(fakeEvent{id: EventEndFile, endFile: &rawEventEndFile{
				Reason: EndFileError, Error: int32(ErrLoadingFailed), PlaylistEntryID: f.nextEntryID,
			}})
		} else {
			f.push(fakeEvent{id: EventFileLoaded})
			f.push(fakeEvent{id: EventVideoReconfig})
			f.push(fakeEvent{id: EventAudioReconfig})
			f.push(fakeEvent{id: EventPlaybackRestart})
			f.push(fakeEvent{id: EventEndFile, endFile: &rawEventEndFile{
				Reason: EndFileEOF, PlaylistEntryID: f.nextEntryID,
			}})
		}
		f.push(fakeEvent{id: EventIdle})
		return 0
	case "set":
		if len(args) != 3 {
			return int32(ErrInvalidParameter)
		}
		return f.store(args[1], String(args[2]))
	case "cycle":
		if len(args) != 2 {
			return int32(ErrInvalidParameter)
		}
		v, ok := f.props[args[1]].(Flag)
		if !ok {
			return int32(ErrPropertyFormat)
		}
		return f.store(args[1], !v)
	case "script-message":
		f.push(fakeEvent{id: EventClientMessage, args: args[1:]})
		return 0
	case "quit":
		f.push(fakeEvent{id: EventShutdown})
		return 0
	}
	return int32(ErrCommand)
}

func (f *fakeMPV) command(ctx uintptr, args unsafe.Pointer) int32 {
	argv := readArgv(args)
	f.record("command %s", strings.Join(argv, " "))
	return f.run(argv)
}

func (f *fakeMPV) commandAsync(ctx uintptr, replyID uint64, args unsafe.Pointer) int32 {
	argv := readArgv(args)
	f.record("command_async %s", strings.Join(argv, " "))
	code := f.run(argv)
	f.push(fakeEvent{id: EventCommandReply, err: code, replyID: replyID})
	return 0
}

func (f *fakeMPV) commandString(ctx uintptr, cmd string) int32 {
	f.record("command_string %s", cmd)
	return f.run(strings.Fields(cmd))
}

// writeNative stores v in a freshly allocated slot and returns a pointer
// to it, as the engine does for event payloads.
func (f *fakeMPV) writeNative(keep *[][]byte, v Value) unsafe.Pointer {
	switch v := v.(type) {
	case Flag:
		w := new(int32)
		if v {
			*w = 1
		}
		return unsafe.Pointer(w)
	case Int64:
		w := new(int64)
		*w = int64(v)
		return unsafe.Pointer(w)
	case Double:
		w := new(float64)
		*w = float64(v)
		return unsafe.Pointer(w)
	default:
		slot := new(*byte)
		*slot = f.cstr(keep, formatText(v))
		return unsafe.Pointer(slot)
	}
}

func (f *fakeMPV) waitEvent(ctx uintptr, timeout float64) unsafe.Pointer {
	f.lastTimeout = timeout
	f.keep = nil
	f.ev = rawEvent{}
	if len(f.queue) == 0 {
		f.overflowed = false
		return unsafe.Pointer(&f.ev)
	}
	next := f.queue[0]
	f.queue = f.queue[1:]

	f.ev = rawEvent{EventID: next.id, Error: next.err, ReplyUserdata: next.replyID}
	switch {
	case next.id == EventPropertyChange || next.id == EventGetPropertyReply:
		prop := &rawEventProperty{Name: f.cstr(&f.keep, next.propName), Format: next.propFormat}
		if next.propValue != nil {
			prop.Data = f.writeNative(&f.keep, next.propValue)
		}
		f.ev.Data = unsafe.Pointer(prop)
	case next.log != nil:
		f.ev.Data = unsafe.Pointer(&rawEventLogMessage{
			Prefix:   f.cstr(&f.keep, next.log.Prefix),
			Level:    f.cstr(&f.keep, next.log.Level),
			Text:     f.cstr(&f.keep, next.log.Text),
			LogLevel: next.log.LogLevel,
		})
	case next.startFile != nil:
		f.ev.Data = unsafe.Pointer(next.startFile)
	case next.endFile != nil:
		f.ev.Data = unsafe.Pointer(next.endFile)
	case next.id == EventClientMessage:
		ptrs := make([]*byte, len(next.args)+1)
		for i, a := range next.args {
			ptrs[i] = f.cstr(&f.keep, a)
		}
		f.ev.Data = unsafe.Pointer(&rawEventClientMessage{NumArgs: int32(len(next.args)), Args: unsafe.Pointer(&ptrs[0])})
	}
	if len(f.queue) == 0 {
		f.overflowed = false
	}
	return unsafe.Pointer(&f.ev)
}

func walkRenderParams(p unsafe.Pointer) []rawRenderParam {
	var out []rawRenderParam
	for i := 0; ; i++ {
		param := *(*rawRenderParam)(unsafe.Add(p, uintptr(i)*unsafe.Sizeof(rawRenderParam{})))
		if param.Type == renderParamInvalid {
			return out
		}
		out = append(out, param)
	}
}

func (f *fakeMPV) renderContextCreate(res unsafe.Pointer, ctx uintptr, params unsafe.Pointer) int32 {
	f.record("render_context_create")
	f.renderParams = nil
	apiOK, initOK := false, false
	for _, p := range walkRenderParams(params) {
		f.renderParams = append(f.renderParams, p.Type)
		switch p.Type {
		case renderParamAPIType:
			apiOK = goString((*byte)(p.Data)) == "opengl"
		case renderParamOpenGLInitParams:
			initOK = (*rawOpenGLInitParams)(p.Data).GetProcAddress != 0
		}
	}
	if f.renderCode < 0 {
		return f.renderCode
	}
	if !apiOK || !initOK {
		return int32(ErrInvalidParameter)
	}
	*(*uintptr)(res) = fakeRenderCtx
	return 0
}

func (f *fakeMPV) renderContextRender(rctx uintptr, params unsafe.Pointer) int32 {
	f.record("render_context_render")
	if rctx != fakeRenderCtx {
		return int32(ErrInvalidParameter)
	}
	f.lastFlip = 0
	for _, p := range walkRenderParams(params) {
		switch p.Type {
		case renderParamOpenGLFBO:
			f.lastFBO = *(*rawOpenGLFBO)(p.Data)
		case renderParamFlipY:
			f.lastFlip = *(*int32)(p.Data)
		}
	}
	return 0
}

func (f *fakeMPV) renderContextReportSwap(rctx uintptr) {
	f.record("render_context_report_swap")
	f.swaps++
}

func (f *fakeMPV) renderContextFree(rctx uintptr) { f.record("render_context_free") }

// drain polls until the queue is empty and returns every event.
func drain(h *Handle) []Event {
	var out []Event
	for {
		ev, ok := h.PollEvent(0)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}
