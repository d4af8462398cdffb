package scalecache

// Fields carries structured context for one log event.
type Fields map[string]any

// Logger receives the cache's own events (original set, cleared, generate
// failures, duplicate and stale inserts). Adapters live in log/logrus,
// log/zap and log/slog; a nil Logger in Options means NopLogger.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
