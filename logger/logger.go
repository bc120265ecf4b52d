package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 全局日志, Init 之前为 no-op
var Log = zap.NewNop().Sugar()

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Init builds the production logger at the given level ("debug", "info", "warn", "error").
// An empty level means info.
func Init(lvl string) error {
	if err := SetLevel(lvl); err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

// SetLevel changes the level of the logger built by Init without rebuilding it.
// An empty level means info.
func SetLevel(lvl string) error {
	if lvl == "" {
		level.SetLevel(zapcore.InfoLevel)
		return nil
	}
	l, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}
