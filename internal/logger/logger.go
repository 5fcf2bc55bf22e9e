package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Options configures the process wide log sinks.
type Options struct {
	Level  string
	Format string
	// Path is a directory; a timestamped log file is created inside it.
	Path string
	// Dev mirrors every record to Console.
	Dev bool
	// Console receives records when Dev is set or Always is set. Defaults to stderr.
	Console io.Writer
	Always  bool
}

// Logger is a component scoped logger. Records carry the tag as "component".
type Logger struct {
	*slog.Logger
	tag string
}

var (
	mu      sync.RWMutex
	root    = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
	once    sync.Once
)

// InitLogger installs the root logger. Only the first call has an effect.
func InitLogger(opts Options) error {
	var initErr error
	once.Do(func() {
		var sinks []io.Writer

		if opts.Dev || opts.Always {
			console := opts.Console
			if console == nil {
				console = os.Stderr
			}
			sinks = append(sinks, console)
		}

		if opts.Path != "" {
			timestamp := time.Now().Format("20060102_150405")
			fileName := fmt.Sprintf("chatrelay_log_%s.log", timestamp)
			file, err := os.OpenFile(filepath.Join(opts.Path, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
			if err != nil {
				initErr = fmt.Errorf("open log file: %w", err)
				return
			}
			logFile = file
			sinks = append(sinks, file)
		}

		if len(sinks) == 0 {
			return
		}

		mu.Lock()
		root = slog.New(newHandler(io.MultiWriter(sinks...), opts))
		mu.Unlock()
	})
	return initErr
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	if strings.EqualFold(opts.Format, "json") {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the root logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

func NewLogger(tag string) *Logger {
	return &Logger{
		Logger: L().With(slog.String("component", tag)),
		tag:    tag,
	}
}

func (l *Logger) Tag() string {
	return l.tag
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	Close()
	os.Exit(1)
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
