package obs

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

// Logger returns the shared structured logger used across the service. The
// CONCEPTLAB_LOG_MODE variable selects the production JSON encoder; anything
// else gets the development console encoder.
func Logger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		var cfg zap.Config
		switch strings.ToLower(os.Getenv("CONCEPTLAB_LOG_MODE")) {
		case "prod", "production":
			cfg = zap.NewProductionConfig()
		default:
			cfg = zap.NewDevelopmentConfig()
		}
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l.Sugar()
	})
	return logger
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
