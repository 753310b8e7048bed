package reader

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the reader's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs a process-wide logger for decoders created without
// an explicit Options.Logger. Call before the first decode.
func SetLogger(l *zap.Logger) {
	logger = l
}
