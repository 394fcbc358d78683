package mpv

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventID identifies the kind of an engine event (mpv_event_id).
type EventID int32

const (
	EventNone                EventID = 0
	EventShutdown            EventID = 1
	EventLogMessage          EventID = 2
	EventGetPropertyReply    EventID = 3
	EventSetPropertyReply    EventID = 4
	EventCommandReply        EventID = 5
	EventStartFile           EventID = 6
	EventEndFile             EventID = 7
	EventFileLoaded          EventID = 8
	EventTracksChanged       EventID = 9  // deprecated
	EventTrackSwitched       EventID = 10 // deprecated
	EventIdle                EventID = 11
	EventPause               EventID = 12 // deprecated
	EventUnpause             EventID = 13 // deprecated
	EventTick                EventID = 14
	EventScriptInputDispatch EventID = 15 // deprecated
	EventClientMessage       EventID = 16
	EventVideoReconfig       EventID = 17
	EventAudioReconfig       EventID = 18
	EventMetadataUpdate      EventID = 19 // deprecated
	EventSeek                EventID = 20
	EventPlaybackRestart     EventID = 21
	EventPropertyChange      EventID = 22
	EventChapterChange       EventID = 23 // deprecated
	EventQueueOverflow       EventID = 24
	EventHook                EventID = 25
	eventIDCount             = EventHook + 1
)

var eventNames = [eventIDCount]string{
	EventNone:                "none",
	EventShutdown:            "shutdown",
	EventLogMessage:          "log-message",
	EventGetPropertyReply:    "get-property-reply",
	EventSetPropertyReply:    "set-property-reply",
	EventCommandReply:        "command-reply",
	EventStartFile:           "start-file",
	EventEndFile:             "end-file",
	EventFileLoaded:          "file-loaded",
	EventTracksChanged:       "tracks-changed",
	EventTrackSwitched:       "track-switched",
	EventIdle:                "idle",
	EventPause:               "pause",
	EventUnpause:             "unpause",
	EventTick:                "tick",
	EventScriptInputDispatch: "script-input-dispatch",
	EventClientMessage:       "client-message",
	EventVideoReconfig:       "video-reconfig",
	EventAudioReconfig:       "audio-reconfig",
	EventMetadataUpdate:      "metadata-update",
	EventSeek:                "seek",
	EventPlaybackRestart:     "playback-restart",
	EventPropertyChange:      "property-change",
	EventChapterChange:       "chapter-change",
	EventQueueOverflow:       "event-queue-overflow",
	EventHook:                "hook",
}

// eventNamer is installed once libmpv is loaded so names come from
// mpv_event_name.
var eventNamer atomic.Pointer[func(EventID) string]

func setEventNamer(fn func(EventID) string) {
	eventNamer.Store(&fn)
}

// String returns the engine's name for the event.
func (id EventID) String() string {
	if fn := eventNamer.Load(); fn != nil {
		if s := (*fn)(id); s != "" {
			return s
		}
	}
	if id < 0 || id >= eventIDCount {
		return fmt.Sprintf("event(%d)", int32(id))
	}
	return eventNames[id]
}

// EndFileReason says why playback of a file stopped (mpv_end_file_reason).
type EndFileReason int32

const (
	EndFileEOF      EndFileReason = 0
	EndFileStop     EndFileReason = 2
	EndFileQuit     EndFileReason = 3
	EndFileError    EndFileReason = 4
	EndFileRedirect EndFileReason = 5
)

func (r EndFileReason) String() string {
	switch r {
	case EndFileEOF:
		return "eof"
	case EndFileStop:
		return "stop"
	case EndFileQuit:
		return "quit"
	case EndFileError:
		return "error"
	case EndFileRedirect:
		return "redirect"
	default:
		return fmt.Sprintf("reason(%d)", int32(r))
	}
}

// LogLevel is the numeric severity of an engine log message (mpv_log_level).
type LogLevel int32

const (
	LogLevelNone  LogLevel = 0
	LogLevelFatal LogLevel = 10
	LogLevelError LogLevel = 20
	LogLevelWarn  LogLevel = 30
	LogLevelInfo  LogLevel = 40
	LogLevelV     LogLevel = 50
	LogLevelDebug LogLevel = 60
	LogLevelTrace LogLevel = 70
)

// String returns the name accepted by RequestLogMessages.
func (l LogLevel) String() string {
	switch l {
	case LogLevelNone:
		return "no"
	case LogLevelFatal:
		return "fatal"
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelV:
		return "v"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// ZapLevel maps the engine level to the closest zap level. Fatal engine
// messages are logged as errors; verbose, debug and trace map to DebugLevel.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch {
	case l <= LogLevelError:
		return zapcore.ErrorLevel
	case l <= LogLevelWarn:
		return zapcore.WarnLevel
	case l <= LogLevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ReplyID is the caller-chosen token that pairs an asynchronous request or
// a property observation with the events it produces. The engine echoes it
// back unchanged. Zero means "not a reply" and cannot be used for requests.
type ReplyID uint64

// Event is one decoded engine event. The concrete type tells which kind.
//
// Strings in events are copied out of the engine's buffer while decoding,
// so events stay valid after the next PollEvent.
type Event interface {
	EventID() EventID
}

type (
	// ShutdownEvent asks the client to destroy its handle.
	ShutdownEvent struct{}

	// LogMessageEvent carries one engine log line. It is only produced
	// after RequestLogMessages.
	LogMessageEvent struct {
		Prefix   string // module, e.g. "cplayer"
		Level    string // level name, e.g. "warn"
		Text     string // message, usually ending in a newline
		LogLevel LogLevel
	}

	// GetPropertyReplyEvent answers GetPropertyAsync. Value is set only
	// when Err is nil.
	GetPropertyReplyEvent struct {
		Name    string
		Value   Value
		Err     error
		ReplyID ReplyID
	}

	// SetPropertyReplyEvent answers SetPropertyAsync.
	SetPropertyReplyEvent struct {
		Err     error
		ReplyID ReplyID
	}

	// CommandReplyEvent answers CommandAsync.
	CommandReplyEvent struct {
		Err     error
		ReplyID ReplyID
	}

	// StartFileEvent is sent before a file starts loading.
	StartFileEvent struct {
		PlaylistEntryID int64
	}

	// EndFileEvent is sent when a file stops playing. Err is non-nil
	// exactly when Reason is EndFileError.
	EndFileEvent struct {
		Reason          EndFileReason
		Err             error
		PlaylistEntryID int64
	}

	// FileLoadedEvent is sent once a file is loaded and playback begins.
	FileLoadedEvent struct{}

	// IdleEvent is sent when the player enters idle mode.
	IdleEvent struct{}

	// TickEvent is sent on each video frame or audio chunk. Only older
	// engine versions emit it.
	TickEvent struct{}

	// ClientMessageEvent carries a script-message addressed to this client.
	ClientMessageEvent struct {
		Args []string
	}

	VideoReconfigEvent   struct{}
	AudioReconfigEvent   struct{}
	SeekEvent            struct{}
	PlaybackRestartEvent struct{}

	// PropertyChangeEvent reports an observed property's new value. Value
	// is nil if the property is unavailable or was observed with
	// FormatNone. Err is set when the payload format has no Value form.
	PropertyChangeEvent struct {
		Name    string
		Value   Value
		Err     error
		ReplyID ReplyID
	}

	// QueueOverflowEvent means the event queue filled up and later events
	// were dropped. Re-read any state tracked from events.
	QueueOverflowEvent struct{}

	// UnusedEvent stands for any event the binding does not decode
	// (deprecated and future ids). It still consumed one queue slot.
	UnusedEvent struct {
		ID EventID
	}
)

func (ShutdownEvent) EventID() EventID         { return EventShutdown }
func (LogMessageEvent) EventID() EventID       { return EventLogMessage }
func (GetPropertyReplyEvent) EventID() EventID { return EventGetPropertyReply }
func (SetPropertyReplyEvent) EventID() EventID { return EventSetPropertyReply }
func (CommandReplyEvent) EventID() EventID     { return EventCommandReply }
func (StartFileEvent) EventID() EventID        { return EventStartFile }
func (EndFileEvent) EventID() EventID          { return EventEndFile }
func (FileLoadedEvent) EventID() EventID       { return EventFileLoaded }
func (IdleEvent) EventID() EventID             { return EventIdle }
func (TickEvent) EventID() EventID             { return EventTick }
func (ClientMessageEvent) EventID() EventID    { return EventClientMessage }
func (VideoReconfigEvent) EventID() EventID    { return EventVideoReconfig }
func (AudioReconfigEvent) EventID() EventID    { return EventAudioReconfig }
func (SeekEvent) EventID() EventID             { return EventSeek }
func (PlaybackRestartEvent) EventID() EventID  { return EventPlaybackRestart }
func (PropertyChangeEvent) EventID() EventID   { return EventPropertyChange }
func (QueueOverflowEvent) EventID() EventID    { return EventQueueOverflow }
func (e UnusedEvent) EventID() EventID         { return e.ID }

// Log writes the message to l at the mapped zap level.
func (e LogMessageEvent) Log(l *zap.Logger) {
	text := e.Text
	if n := len(text); n > 0 && text[n-1] == '\n' {
		text = text[:n-1]
	}
	if ce := l.Check(e.LogLevel.ZapLevel(), text); ce != nil {
		ce.Write(zap.String("prefix", e.Prefix), zap.String("level", e.Level))
	}
}

// decodeEvent turns one mpv_event into an Event. It returns nil for
// EventNone. raw and everything it points to may be reused by the engine
// after this returns.
func decodeEvent(raw *rawEvent) Event {
	replyID := ReplyID(raw.ReplyUserdata)

	switch raw.EventID {
	case EventNone:
		return nil
	case EventShutdown:
		return ShutdownEvent{}
	case EventLogMessage:
		msg := (*rawEventLogMessage)(mustPayload(raw))
		return LogMessageEvent{
			Prefix:   goString(msg.Prefix),
			Level:    goString(msg.Level),
			Text:     goString(msg.Text),
			LogLevel: msg.LogLevel,
		}
	case EventGetPropertyReply:
		ev := GetPropertyReplyEvent{ReplyID: replyID}
		if raw.Data != nil {
			ev.Name = goString((*rawEventProperty)(raw.Data).Name)
		}
		if ev.Err = newError(raw.Error); ev.Err != nil {
			return ev
		}
		prop := (*rawEventProperty)(mustPayload(raw))
		ev.Value, ev.Err = readValue(prop.Format, prop.Data)
		return ev
	case EventSetPropertyReply:
		return SetPropertyReplyEvent{Err: newError(raw.Error), ReplyID: replyID}
	case EventCommandReply:
		return CommandReplyEvent{Err: newError(raw.Error), ReplyID: replyID}
	case EventStartFile:
		ev := StartFileEvent{}
		// Engines before API 1.108 send no payload.
		if raw.Data != nil {
			ev.PlaylistEntryID = (*rawEventStartFile)(raw.Data).PlaylistEntryID
		}
		return ev
	case EventEndFile:
		end := (*rawEventEndFile)(mustPayload(raw))
		ev := EndFileEvent{Reason: end.Reason, PlaylistEntryID: end.PlaylistEntryID}
		if end.Reason == EndFileError {
			ev.Err = decodeError(end.Error)
		}
		return ev
	case EventFileLoaded:
		return FileLoadedEvent{}
	case EventIdle:
		return IdleEvent{}
	case EventTick:
		return TickEvent{}
	case EventClientMessage:
		msg := (*rawEventClientMessage)(mustPayload(raw))
		return ClientMessageEvent{Args: cStringArrayN(msg.Args, int(msg.NumArgs))}
	case EventVideoReconfig:
		return VideoReconfigEvent{}
	case EventAudioReconfig:
		return AudioReconfigEvent{}
	case EventSeek:
		return SeekEvent{}
	case EventPlaybackRestart:
		return PlaybackRestartEvent{}
	case EventPropertyChange:
		prop := (*rawEventProperty)(mustPayload(raw))
		ev := PropertyChangeEvent{Name: goString(prop.Name), ReplyID: replyID}
		ev.Value, ev.Err = readValue(prop.Format, prop.Data)
		return ev
	case EventQueueOverflow:
		return QueueOverflowEvent{}
	default:
		return UnusedEvent{ID: raw.EventID}
	}
}

func mustPayload(raw *rawEvent) unsafe.Pointer {
	if raw.Data == nil {
		panic(fmt.Sprintf("mpv: %s event without payload", raw.EventID))
	}
	return raw.Data
}
