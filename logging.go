package settings

import (
	"fmt"

	"github.com/pypeclub/OpenPype/schema"
)

// Logger records notable events of an entity tree. It is shared with the
// schema loader so a single sink observes both.
type Logger = schema.Logger

// LoggerFunc adapts a function to Logger.
type LoggerFunc = schema.LoggerFunc

// LogEvent describes a single log record.
type LogEvent = schema.LogEvent

func (r *Root) warnf(path, format string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Log(schema.LogEvent{
		Level:   schema.LogLevelWarn,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *Root) debugf(path, format string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Log(schema.LogEvent{
		Level:   schema.LogLevelDebug,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}
