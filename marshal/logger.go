package marshal

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the marshal package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the marshal package's logger.
// This must be called before any conversions run.
func SetLogger(l *zap.Logger) {
	logger = l
}

// trace logs one conversion at debug level.
func trace(op, marshaler, goType string, ptr Ptr) {
	if ce := Logger().Check(zap.DebugLevel, op); ce != nil {
		ce.Write(
			zap.String("marshaler", marshaler),
			zap.String("type", goType),
			zap.Uint32("ptr", uint32(ptr)),
		)
	}
}
