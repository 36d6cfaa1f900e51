// Package definition carries the small pieces of ambient machinery
// every instance needs but that the core protocol treats as external:
// the default logger implementation, backed by logrus so every line
// carries structured fields instead of a formatted string.
package definition

import "github.com/sirupsen/logrus"

// DefaultLogger is the logrus-backed types.Logger used when a caller
// does not supply their own. debug gates Debug/Debugf output via
// ToggleDebug.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewDefaultLogger builds a logger tagged with the given mutex name so
// log lines from several instances sharing a process are distinguishable.
func NewDefaultLogger(mutexName string) *DefaultLogger {
	log := logrus.New()
	return &DefaultLogger{
		entry: log.WithField("mutex", mutexName),
	}
}

func (l *DefaultLogger) Info(v ...interface{})  { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})  { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{}) { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(v...)
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debugf(format, v...)
	}
}

// ToggleDebug enables or disables Debug/Debugf output, returning the
// new value.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}
