package hokkaido

// Logger is the subset of *slog.Logger the tree and its tooling use, so a
// *slog.Logger can be passed as is. Package logger adapts zap and logrus.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// DiscardLogger drops every record. It is the default.
type DiscardLogger struct{}

func (DiscardLogger) Error(string, ...any) {}

func (DiscardLogger) Warn(string, ...any) {}

func (DiscardLogger) Info(string, ...any) {}

func (DiscardLogger) Debug(string, ...any) {}
