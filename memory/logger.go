package memory

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the memory package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the memory package's logger.
// This must be called before any allocations are made.
func SetLogger(l *zap.Logger) {
	logger = l
}

func zapPtr(ptr uint32) zap.Field {
	return zap.Uint32("ptr", ptr)
}

func zapErr(err error) zap.Field {
	return zap.Error(err)
}
