// Package ops provides task-scoped structured logging, in the style of a
// gazette consumer application: every log line carries the identity of
// the task or unit it concerns, added once and reused across many calls
// rather than repeated at each call site.
package ops

import (
	log "github.com/sirupsen/logrus"
)

// Logger publishes log events, optionally filtered by level.
type Logger interface {
	// Log writes one event. The event may be filtered by a publisher,
	// typically based on level.
	Log(level log.Level, fields log.Fields, message string) error
	// Level returns the current configured level filter.
	Level() log.Level
}

// NewLoggerWithFields wraps delegate, adding fields to every event it
// forwards. Used to attach task/unit identity once at a call boundary
// instead of threading it through every log call beneath it.
func NewLoggerWithFields(delegate Logger, add log.Fields) Logger {
	return &withFieldsLogger{delegate: delegate, add: add}
}

type withFieldsLogger struct {
	delegate Logger
	add      log.Fields
}

func (l *withFieldsLogger) Level() log.Level { return l.delegate.Level() }

func (l *withFieldsLogger) Log(level log.Level, fields log.Fields, message string) error {
	if level > l.Level() {
		return nil
	}
	var merged = make(log.Fields, len(l.add)+len(fields))
	for k, v := range l.add {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return l.delegate.Log(level, merged, message)
}

type stdLogAppender struct{}

func (stdLogAppender) Level() log.Level { return log.GetLevel() }

func (l stdLogAppender) Log(level log.Level, fields log.Fields, message string) error {
	if level > l.Level() {
		return nil
	}
	log.WithFields(fields).Log(level, message)
	return nil
}

// StdLogger returns a Logger that forwards directly to the logrus
// standard logger.
func StdLogger() Logger { return stdLogAppender{} }
