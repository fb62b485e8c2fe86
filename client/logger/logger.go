package logger

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	zapLogger, err := config.Build()
	if err != nil {
		log.Panic(err)
	}

	// flushes buffer, if any
	defer zapLogger.Sync()

	return zapLogger.Sugar()
}

// NewNopLogger is used in tests, where log output is just noise.
func NewNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
