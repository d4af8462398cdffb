// Package logrus adapts a logrus entry to scalecache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/scalecache"
)

var _ scalecache.Logger = Logger{}

// Logger writes cache events through E. Fields are only materialised when
// the level is enabled.
type Logger struct{ E *logrus.Entry }

// New tags every event with component=scalecache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "scalecache")}
}

func (l Logger) Debug(msg string, f scalecache.Fields) { l.log(logrus.DebugLevel, msg, f) }
func (l Logger) Info(msg string, f scalecache.Fields)  { l.log(logrus.InfoLevel, msg, f) }
func (l Logger) Warn(msg string, f scalecache.Fields)  { l.log(logrus.WarnLevel, msg, f) }
func (l Logger) Error(msg string, f scalecache.Fields) { l.log(logrus.ErrorLevel, msg, f) }

func (l Logger) log(level logrus.Level, msg string, f scalecache.Fields) {
	if l.E == nil || !l.E.Logger.IsLevelEnabled(level) {
		return
	}
	l.E.WithFields(logrus.Fields(f)).Log(level, msg)
}
