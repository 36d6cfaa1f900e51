package core

import (
	"io"
	"log"
)

// ioLogger is the minimal types.Logger that NewTCPTransport builds over
// its logOutput parameter; the transport always logs through it. It
// intentionally does nothing fancy: it exists so the
// transport can be constructed standalone against any io.Writer, such
// as os.Stdout in a test.
type ioLogger struct {
	*log.Logger
}

func newIOLogger(out io.Writer) *ioLogger {
	return &ioLogger{Logger: log.New(out, "", log.LstdFlags)}
}

func (l *ioLogger) Info(v ...interface{})                 { l.Print(v...) }
func (l *ioLogger) Infof(format string, v ...interface{})  { l.Printf(format, v...) }
func (l *ioLogger) Warn(v ...interface{})                 { l.Print(v...) }
func (l *ioLogger) Warnf(format string, v ...interface{})  { l.Printf(format, v...) }
func (l *ioLogger) Error(v ...interface{})                { l.Print(v...) }
func (l *ioLogger) Errorf(format string, v ...interface{}) { l.Printf(format, v...) }
func (l *ioLogger) Debug(v ...interface{})                { l.Print(v...) }
func (l *ioLogger) Debugf(format string, v ...interface{}) { l.Printf(format, v...) }
