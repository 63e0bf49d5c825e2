package log

import "fmt"

// Std is a minimal Log implementation over fmt, used by tests that don't
// care about log output but need a non-nil logger.
type Std struct {
	prefix string
}

// NewStd returns a Log that writes nothing of consequence; useful as a
// test double.
func NewStd() Log { return Std{} }

func (s Std) Print(v ...interface{})                 { _ = fmt.Sprint(v...) }
func (s Std) Printf(format string, v ...interface{}) { _ = fmt.Sprintf(format, v...) }
func (s Std) Println(v ...interface{})               { fmt.Sprintln(v...) }

func (s Std) Info(v ...interface{})                 { _ = fmt.Sprint(v...) }
func (s Std) Infof(format string, v ...interface{}) { _ = fmt.Sprintf(format, v...) }
func (s Std) Infoln(v ...interface{})               { fmt.Sprintln(v...) }

func (s Std) Debug(v ...interface{})                 { _ = fmt.Sprint(v...) }
func (s Std) Debugf(format string, v ...interface{}) { _ = fmt.Sprintf(format, v...) }
func (s Std) Debugln(v ...interface{})               { fmt.Sprintln(v...) }

func (s Std) Error(v ...interface{})                 { _ = fmt.Sprint(v...) }
func (s Std) Errorf(format string, v ...interface{}) { _ = fmt.Sprintf(format, v...) }
func (s Std) Errorln(v ...interface{})               { fmt.Sprintln(v...) }

func (s Std) WithField(key string, value interface{}) Log { return s }
