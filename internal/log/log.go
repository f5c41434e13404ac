// Package log provides leveled, structured logging of commands, errors and
// engine activity to separate files.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"habitat/internal/model"
)

// Fields carries structured key/value context for a log entry.
type Fields map[string]interface{}

// LogMessage is a queued log entry.
type LogMessage struct {
	Level   LogLevel
	Message string
	Fields  Fields
	Context context.Context
}

// Logger writes entries asynchronously. Commands go to the command log,
// errors to the error log, and everything within the configured level to
// the info log.
type Logger struct {
	commandLogger *slog.Logger
	errorLogger   *slog.Logger
	infoLogger    *slog.Logger
	closers       []io.Closer
	logChan       chan LogMessage
	done          chan struct{}
	wg            sync.WaitGroup
	level         atomic.Int32
	closeOnce     sync.Once
}

// NewLogger opens the log files named in cfg, creating the folder if needed.
func NewLogger(cfg model.LogConfig, level LogLevel) (*Logger, error) {
	if err := os.MkdirAll(cfg.Folder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, name := range []string{cfg.CommandLog, cfg.ErrorLog, cfg.InfoLog} {
		f, err := os.OpenFile(filepath.Join(cfg.Folder, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		files = append(files, f)
	}

	l := NewWriterLogger(files[0], files[1], files[2], level)
	for _, f := range files {
		l.closers = append(l.closers, f)
	}
	return l, nil
}

// NewWriterLogger creates a logger writing JSON lines to the given writers.
func NewWriterLogger(command, errs, info io.Writer, level LogLevel) *Logger {
	l := &Logger{
		commandLogger: slog.New(slog.NewJSONHandler(command, &slog.HandlerOptions{Level: slog.LevelInfo})),
		errorLogger:   slog.New(slog.NewJSONHandler(errs, &slog.HandlerOptions{Level: slog.LevelError})),
		infoLogger:    slog.New(slog.NewJSONHandler(info, &slog.HandlerOptions{Level: slog.LevelDebug})),
		logChan:       make(chan LogMessage, 100),
		done:          make(chan struct{}),
	}
	l.level.Store(int32(level))

	l.wg.Add(1)
	go l.processLogs()
	return l
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() *Logger {
	return NewWriterLogger(io.Discard, io.Discard, io.Discard, LevelCommand)
}

func (l *Logger) processLogs() {
	defer l.wg.Done()
	for {
		select {
		case msg := <-l.logChan:
			l.write(msg)
		case <-l.done:
			for {
				select {
				case msg := <-l.logChan:
					l.write(msg)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(msg LogMessage) {
	ctx := msg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	args := msg.Fields.args()
	switch msg.Level {
	case LevelCommand:
		l.commandLogger.InfoContext(ctx, msg.Message, args...)
	case LevelError:
		l.errorLogger.ErrorContext(ctx, msg.Message, args...)
	}
	if msg.Level != LevelCommand && l.Enabled(msg.Level) {
		l.infoLogger.Log(ctx, msg.Level.toSlogLevel(), msg.Message, args...)
	}
}

func (f Fields) args() []any {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, slog.Any(k, f[k]))
	}
	return args
}

func (l *Logger) log(ctx context.Context, level LogLevel, msg string, fields Fields) {
	if level != LevelCommand && level != LevelError && !l.Enabled(level) {
		return
	}
	select {
	case l.logChan <- LogMessage{Level: level, Message: msg, Fields: fields, Context: ctx}:
	case <-l.done:
	}
}

// Command records a user command.
func (l *Logger) Command(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelCommand, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, LevelDebug, msg, fields)
}

// Enabled reports whether entries at level reach the info log.
func (l *Logger) Enabled(level LogLevel) bool {
	return level <= LogLevel(l.level.Load())
}

// SetLevel changes the info log threshold.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// Close flushes queued entries and closes the log files.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		for _, c := range l.closers {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close log file: %w", cerr)
			}
		}
	})
	return err
}
