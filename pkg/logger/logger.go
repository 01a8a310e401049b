// Package logger writes every run to a JSON log file and echoes the important
// part to the console.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultDir holds run log files.
const DefaultDir = ".logs"

// Options configures Init.
type Options struct {
	Dir     string // DefaultDir when empty
	RunID   string // names the file run-<RunID>.log
	Verbose bool   // console shows info and above
	Debug   bool   // console shows everything
	Console io.Writer
}

var (
	globalLogger *zap.Logger
	logFile      *os.File
	logPath      string
	mu           sync.Mutex
)

// ConsoleLevel is the console threshold for opts: errors only unless verbose
// or debug output is requested.
func ConsoleLevel(opts Options) zapcore.Level {
	switch {
	case opts.Debug:
		return zapcore.DebugLevel
	case opts.Verbose:
		return zapcore.InfoLevel
	default:
		return zapcore.ErrorLevel
	}
}

// New builds a logger teeing a debug-level JSON core on file with a console
// core on w.
func New(file, w io.Writer, consoleLevel zapcore.Level) *zap.Logger {
	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEnc.EncodeCaller = nil

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(file), zapcore.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(zapcore.AddSync(w)), consoleLevel),
	)
	return zap.New(core)
}

// Init initializes the global logger with a new run log file and returns it.
func Init(opts Options) (*zap.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	closeLocked()

	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run-%s.log", opts.RunID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	logFile = f
	logPath = path
	globalLogger = New(f, console, ConsoleLevel(opts)).With(zap.String("runId", opts.RunID))
	return globalLogger, nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
		globalLogger = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logPath = ""
}

// L returns the global logger, a no-op logger before Init.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Path returns the current log file path, empty before Init.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}
