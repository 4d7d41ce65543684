package render

import "fmt"

// EventKind identifies an engine event.
type EventKind int

const (
	// EventNone means the event queue is empty.
	EventNone EventKind = iota
	EventShutdown
	EventLogMessage
	EventGeneric
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventShutdown:
		return "shutdown"
	case EventLogMessage:
		return "log-message"
	case EventGeneric:
		return "generic"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// LogMessage is the payload of an EventLogMessage.
type LogMessage struct {
	Prefix string
	Level  string
	Text   string
}

// Event is a record polled from the engine.
type Event struct {
	Kind EventKind
	// Name is the engine's name for the event ("shutdown", "end-file", ...).
	Name string
	Log  *LogMessage
}

// ShutdownEvent returns the event an engine queues when it terminates.
func ShutdownEvent() Event {
	return Event{Kind: EventShutdown, Name: "shutdown"}
}

// NamedEvent returns a generic event.
func NamedEvent(name string) Event {
	return Event{Kind: EventGeneric, Name: name}
}

// LogEvent returns a log-message event.
func LogEvent(prefix, level, text string) Event {
	return Event{
		Kind: EventLogMessage,
		Name: "log-message",
		Log:  &LogMessage{Prefix: prefix, Level: level, Text: text},
	}
}
