package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/talDoFlemis/hokkaido"
)

// Backends accepted by New.
const (
	BackendZap    = "zap"
	BackendLogrus = "logrus"
)

var ErrUnknownBackend = errors.New("unknown logger backend")

// New builds a hokkaido.Logger writing to w at level ("debug", "info",
// "warn" or "error") with the named backend. The returned func flushes
// buffered entries and should be called before exit.
func New(backend, level string, w io.Writer) (hokkaido.Logger, func() error, error) {
	switch strings.ToLower(backend) {
	case BackendZap:
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)
		z := NewZap(zap.New(core)).(*Zap)
		return z, z.Sync, nil

	case BackendLogrus:
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		return NewLogrus(l), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
