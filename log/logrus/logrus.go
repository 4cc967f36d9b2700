package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/strictenc"
)

var _ strictenc.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

func New(l *logrus.Logger) Logger { return Logger{E: logrus.NewEntry(l)} }

func (l Logger) Debug(msg string, f strictenc.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f strictenc.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f strictenc.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f strictenc.Fields) { l.entry(f).Error(msg) }

// entry moves an "err" field to logrus' error key so formatters render it
// as one.
func (l Logger) entry(f strictenc.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			fields[logrus.ErrorKey] = err
			continue
		}
		fields[k] = v
	}
	return l.E.WithFields(fields)
}
