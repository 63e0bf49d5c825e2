// Package log provides a narrow logging interface used throughout the hub,
// so call sites never import logrus directly.
package log

// Log is the logging surface every subsystem depends on.
type Log interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Infoln(v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Debugln(v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Errorln(v ...interface{})

	// WithField returns a derived logger that attaches key to every
	// subsequent message, for per-provider or per-request context.
	WithField(key string, value interface{}) Log
}
