// Package applog wraps a package-level *zap.SugaredLogger the same way
// cppla-moto's utils/log.go builds its global Logger: a zapcore.Tee over a
// JSON encoder backed by lumberjack rotation. Unlike moto, which wires a
// compile-time JSON config package directly into init(), this wrapper is
// parameterized by Options so it can be driven by this module's own
// key=value config file, and additionally tees to stdout — the teacher's
// server/client processes are interactive command-line tools, not daemons
// with no attached terminal.
package applog

import (
	"os"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures Init. Path is the rotating log file; empty disables
// file output. Level is one of debug/info/warn/error; unrecognised values
// fall back to info.
type Options struct {
	Path  string
	Level string
	Stdout bool
}

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger
)

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// Init (re)configures the package-level logger. Safe to call once at
// process startup, before any goroutine calls L().
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	level, ok := levelMap[opts.Level]
	if !ok {
		level = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level })

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	var cores []zapcore.Core
	if opts.Path != "" {
		hook := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(hook), enabler))
	}
	if opts.Stdout || opts.Path == "" {
		consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), enabler))
	}

	core := zapcore.NewTee(cores...)
	logger = zap.New(core, zap.AddCaller()).Sugar()
}

// L returns the package-level logger, initializing a stdout-only default
// if Init was never called (so library code and tests never see a nil
// logger).
func L() *zap.SugaredLogger {
	mu.Lock()
	needsInit := logger == nil
	mu.Unlock()
	if needsInit {
		Init(Options{Stdout: true, Level: "info"})
	}
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Sync flushes any buffered log entries; call it before process exit.
func Sync() {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}
