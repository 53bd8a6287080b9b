package utils

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnv overrides the configured log level when set
const LogLevelEnv = "VYBIUM_LOG"

// NewLogger builds a zap logger from cfg. The VYBIUM_LOG environment variable
// takes precedence over cfg.Level.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := cfg.Level
	if env := os.Getenv(LogLevelEnv); env != "" {
		level = env
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, errors.Wrap(err, "create logger")
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := zcfg.Build()
	return logger, errors.Wrap(err, "create logger")
}
