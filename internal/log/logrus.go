package log

import (
	"io"
	"os"

	lg "github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the subset of [daemon] config that drives log output.
type Config struct {
	Level string // trace, debug, info, warn, error
	File  string // "-" for stderr, otherwise a rotated log file path
}

type logrusLog struct {
	*lg.Entry
}

// WithLogrus builds a Log backed by sirupsen/logrus, rotating to disk via
// lumberjack unless cfg.File is "-".
func WithLogrus(cfg Config) Log {
	logger := lg.New()

	var writer io.Writer
	if cfg.File == "" || cfg.File == "-" {
		writer = os.Stderr
	} else {
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     28,
		}
	}

	logger.Out = writer
	logger.Formatter = &lg.TextFormatter{FullTimestamp: true}

	switch cfg.Level {
	case "trace":
		logger.Level = lg.TraceLevel
	case "debug":
		logger.Level = lg.DebugLevel
	case "warn":
		logger.Level = lg.WarnLevel
	case "error":
		logger.Level = lg.ErrorLevel
	default:
		logger.Level = lg.InfoLevel
	}

	return logrusLog{Entry: lg.NewEntry(logger)}
}

func (l logrusLog) Print(args ...interface{})                 { l.Entry.Info(args...) }
func (l logrusLog) Printf(format string, args ...interface{}) { l.Entry.Infof(format, args...) }
func (l logrusLog) Println(args ...interface{})               { l.Entry.Infoln(args...) }

func (l logrusLog) Info(args ...interface{})                 { l.Entry.Info(args...) }
func (l logrusLog) Infof(format string, args ...interface{}) { l.Entry.Infof(format, args...) }
func (l logrusLog) Infoln(args ...interface{})                { l.Entry.Infoln(args...) }

func (l logrusLog) Debug(args ...interface{})                 { l.Entry.Debug(args...) }
func (l logrusLog) Debugf(format string, args ...interface{}) { l.Entry.Debugf(format, args...) }
func (l logrusLog) Debugln(args ...interface{})               { l.Entry.Debugln(args...) }

func (l logrusLog) Error(args ...interface{})                 { l.Entry.Error(args...) }
func (l logrusLog) Errorf(format string, args ...interface{}) { l.Entry.Errorf(format, args...) }
func (l logrusLog) Errorln(args ...interface{})               { l.Entry.Errorln(args...) }

func (l logrusLog) WithField(key string, value interface{}) Log {
	return logrusLog{Entry: l.Entry.WithField(key, value)}
}
