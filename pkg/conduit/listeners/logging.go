// Package listeners provides reusable wrappers for conduit event listeners:
// logging for debugging and demonstration, and asynchronous decoupling for
// slow consumers.
package listeners

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// LoggingListener logs every event it receives and optionally forwards to a
// wrapped listener. With a nil wrapped listener it acts as a standalone
// logging sink. Register Listen with Client.On and StateListen with
// Client.OnStateChange.
type LoggingListener struct {
	wrapped  conduit.Listener // The listener to wrap (can be nil)
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string // Optional name for identification in logs
}

// NewLoggingListener creates a LoggingListener that wraps another listener.
// If wrapped is nil, it acts as a standalone logging listener.
func NewLoggingListener(wrapped conduit.Listener, logger *zap.Logger, logLevel zapcore.Level) *LoggingListener {
	return &LoggingListener{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
		name:     "LoggingListener",
	}
}

// NewNamedLoggingListener creates a LoggingListener with a custom name for
// identification in logs.
func NewNamedLoggingListener(wrapped conduit.Listener, logger *zap.Logger, logLevel zapcore.Level, name string) *LoggingListener {
	return &LoggingListener{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
		name:     name,
	}
}

// Listen logs the event and forwards it to the wrapped listener if present.
func (l *LoggingListener) Listen(event conduit.Event) {
	l.logger.Log(l.logLevel, "Event received",
		zap.String("listener", l.name),
		zap.String("type", event.Type),
		zap.Any("data", event.Data),
		zap.Bool("hasWrapped", l.wrapped != nil),
	)

	if l.wrapped != nil {
		l.wrapped(event)
	}
}

// StateListen logs connection state transitions.
func (l *LoggingListener) StateListen(change conduit.StateChange) {
	fields := []zap.Field{
		zap.String("listener", l.name),
		zap.Stringer("from", change.From),
		zap.Stringer("to", change.To),
	}
	if change.Err != nil {
		fields = append(fields, zap.Error(change.Err))
	}
	l.logger.Log(l.logLevel, "State changed", fields...)
}
