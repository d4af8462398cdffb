// Package zap adapts a zap logger to scalecache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/scalecache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ scalecache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "scalecache".
func New(l *zap.Logger) Logger { return Logger{L: l.Named("scalecache")} }

func (z Logger) Debug(msg string, f scalecache.Fields) { z.log(zapcore.DebugLevel, msg, f) }
func (z Logger) Info(msg string, f scalecache.Fields)  { z.log(zapcore.InfoLevel, msg, f) }
func (z Logger) Warn(msg string, f scalecache.Fields)  { z.log(zapcore.WarnLevel, msg, f) }
func (z Logger) Error(msg string, f scalecache.Fields) { z.log(zapcore.ErrorLevel, msg, f) }

func (z Logger) log(level zapcore.Level, msg string, f scalecache.Fields) {
	if z.L == nil {
		return
	}
	if ce := z.L.Check(level, msg); ce != nil {
		ce.Write(zf(f)...)
	}
}

// zf converts f in key order so output is stable.
func zf(f scalecache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
