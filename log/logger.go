package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a leveled printf-style logger shared by the engine and its
// collaborators. Named sub-loggers share the writer of their parent.
type Logger struct {
	mu     *sync.Mutex
	writer io.Writer
	exit   func(int)

	Name  string
	Level LogLevel

	TimeFormat string
	NoColor    bool
	JSON       bool
}

// LoggerConfig describes where and how log lines are written.
type LoggerConfig struct {
	Level      LogLevel
	File       string
	NoTerminal bool
	NoColor    bool
	JSON       bool
	Rotation   *LoggerRotation
}

type LoggerRotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

// DefaultRotation keeps five 128MB files for up to 16 days.
func DefaultRotation() *LoggerRotation {
	return &LoggerRotation{
		MaxSize:    128,
		MaxBackups: 5,
		MaxAge:     16,
		Compress:   false,
	}
}

// NewLogger creates a logger writing to stdout and, if file is set, to a
// rotated log file.
func NewLogger(name string, level LogLevel, file string, noTerminal bool) *Logger {
	return New(name, LoggerConfig{
		Level:      level,
		File:       file,
		NoTerminal: noTerminal,
	})
}

// New creates a logger from a full configuration.
func New(name string, cfg LoggerConfig) *Logger {
	var writers []io.Writer

	if !cfg.NoTerminal {
		writers = append(writers, os.Stdout)
	}

	if cfg.File != "" {
		rotation := cfg.Rotation
		if rotation == nil {
			rotation = DefaultRotation()
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    rotation.MaxSize,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAge,
			Compress:   rotation.Compress,
		})
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l := NewWithWriter(name, cfg.Level, io.MultiWriter(writers...))
	// Colors only make sense on a terminal without a file sink
	l.NoColor = cfg.NoColor || cfg.NoTerminal || cfg.File != ""
	l.JSON = cfg.JSON

	return l
}

// NewWithWriter creates an uncolored logger writing to w.
func NewWithWriter(name string, level LogLevel, w io.Writer) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		writer: w,
		exit:   os.Exit,

		Name:  name,
		Level: level,

		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter("", Fatal+1, io.Discard)
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	formattedMsg := fmt.Sprintf(msg, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   l.Name,
			Message:   formattedMsg,
		}

		jsonBytes, _ := json.Marshal(entry)
		fmt.Fprintf(l.writer, "%s\n", jsonBytes)
	} else {
		prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
		if l.Name != "" {
			prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
		}

		if !l.NoColor {
			fmt.Fprintf(l.writer, "%s%s %s%s\n", level.color(), prefix, formattedMsg, colorReset)
		} else {
			fmt.Fprintf(l.writer, "%s %s\n", prefix, formattedMsg)
		}
	}

	if level == Fatal {
		l.exit(1)
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}

// Named returns a child logger whose name is appended to the parent's.
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.Name != "" {
		child.Name = fmt.Sprintf("%s/%s", l.Name, name)
	} else {
		child.Name = name
	}

	return &child
}
