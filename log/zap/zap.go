package zap

import (
	"github.com/unkn0wn-root/strictenc"
	"go.uber.org/zap"
)

var _ strictenc.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger { return Logger{L: l} }

func (z Logger) Debug(msg string, f strictenc.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f strictenc.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f strictenc.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f strictenc.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f strictenc.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
