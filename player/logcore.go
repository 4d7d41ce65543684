package player

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/njyeung/vlayer/render"
)

// eventCore is a zapcore.Core that turns log entries into log-message
// events. The engine never writes to the process log itself; the client
// decides what to do with its messages.
type eventCore struct {
	zapcore.LevelEnabler
	events *eventQueue
	fields []zapcore.Field
}

var _ zapcore.Core = (*eventCore)(nil)

func newEventCore(events *eventQueue, level zapcore.LevelEnabler) zapcore.Core {
	return &eventCore{LevelEnabler: level, events: events}
}

func (c *eventCore) With(fields []zapcore.Field) zapcore.Core {
	c2 := *c
	c2.fields = append(slices.Clip(c.fields), fields...)
	return &c2
}

func (c *eventCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *eventCore) Write(e zapcore.Entry, fs []zapcore.Field) error {
	prefix := e.LoggerName
	if prefix == "" {
		prefix = "cplayer"
	}
	c.events.push(render.LogEvent(prefix, engineLevel(e.Level), formatEntry(e.Message, c.fields, fs)))
	return nil
}

func (c *eventCore) Sync() error { return nil }

func engineLevel(l zapcore.Level) string {
	switch {
	case l >= zapcore.ErrorLevel:
		return "error"
	case l == zapcore.WarnLevel:
		return "warn"
	case l == zapcore.InfoLevel:
		return "info"
	default:
		return "debug"
	}
}

// formatEntry renders the message followed by its fields as sorted
// key=value pairs.
func formatEntry(msg string, groups ...[]zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, fs := range groups {
		for _, f := range fs {
			f.AddTo(enc)
		}
	}
	if len(enc.Fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
