package schema

// LogLevel classifies a LogEvent.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelWarn  LogLevel = "warn"
)

// LogEvent describes a notable, non-fatal situation met while loading a
// schema or driving an entity tree.
type LogEvent struct {
	Level   LogLevel
	Path    string
	Message string
}

// Logger records log events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

// NoopLogger drops every event.
type NoopLogger struct{}

// Log implements Logger.
func (NoopLogger) Log(LogEvent) {}
