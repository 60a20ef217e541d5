package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
)

// Init configures the global logger. When path is empty, logs go to stdout
// only; otherwise a rotated JSON file is written alongside.
func Init(level, path string) {
	once.Do(func() {
		var lvl zapcore.Level
		switch level {
		case "debug":
			lvl = zapcore.DebugLevel
		case "warn":
			lvl = zapcore.WarnLevel
		case "error":
			lvl = zapcore.ErrorLevel
		default:
			lvl = zapcore.InfoLevel
		}

		encoderConfig := zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		consoleCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			lvl,
		)

		core := consoleCore
		if path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				panic(err)
			}

			fileWriter := zapcore.AddSync(&lumberjack.Logger{
				Filename:   path,
				MaxSize:    100, // MB
				MaxBackups: 5,
				MaxAge:     30, // days
				Compress:   true,
			})

			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				fileWriter,
				lvl,
			)
			core = zapcore.NewTee(consoleCore, fileCore)
		}

		global = zap.New(core,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		sugar = global.Sugar()
	})
}

// L returns the global structured logger.
func L() *zap.Logger {
	if global == nil {
		Init("info", "")
	}
	return global
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("info", "")
	}
	return sugar
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if global != nil {
		global.Sync()
	}
}
