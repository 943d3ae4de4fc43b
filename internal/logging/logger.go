// Package logging provides a per-component leveled logger shared across
// the daemon orchestrator and its collaborators.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// Config holds logging configuration, normally decoded from the on-disk
// daemon config.
type Config struct {
	Level      string            `yaml:"level,omitempty"`
	Components map[string]string `yaml:"components,omitempty"`
	Directory  string            `yaml:"directory,omitempty"`
}

// ParseLevel converts a level name to a Level, defaulting to LevelInfo
// for unrecognized input.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off", "none":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Hook receives every message that passes level filtering. None is
// installed unless SetHook is called; the daemon does not call it.
type Hook func(level Level, tag, message string)

// Logger provides per-component log level filtering with a lock-free
// cache of resolved levels.
type Logger struct {
	globalLevel Level
	components  map[string]Level // lowercase component -> level, immutable after New
	levelCache  sync.Map         // tag -> Level
	hook        atomic.Pointer[Hook]
	logFile     *os.File
}

// New creates a Logger from cfg. If cfg.Directory is non-empty a
// date-stamped log file is opened there in addition to stderr.
func New(cfg Config) *Logger {
	l := &Logger{
		globalLevel: ParseLevel(cfg.Level),
		components:  make(map[string]Level, len(cfg.Components)),
	}
	for name, level := range cfg.Components {
		l.components[strings.ToLower(name)] = ParseLevel(level)
	}

	if cfg.Directory != "" {
		if f := openLogFile(cfg.Directory); f != nil {
			l.logFile = f
			log.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	}

	return l
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() {
	if l.logFile != nil {
		l.logFile.Sync()
		l.logFile.Close()
		l.logFile = nil
	}
}

func openLogFile(dir string) *os.File {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	name := fmt.Sprintf("vpnguard-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	return f
}

func (l *Logger) levelFor(tag string) Level {
	if v, ok := l.levelCache.Load(tag); ok {
		return v.(Level)
	}
	lvl := l.globalLevel
	if cl, ok := l.components[strings.ToLower(tag)]; ok {
		lvl = cl
	}
	l.levelCache.Store(tag, lvl)
	return lvl
}

// SetHook installs a callback invoked for every message passing level
// filtering. Pass nil to remove it.
func (l *Logger) SetHook(h Hook) {
	if h == nil {
		l.hook.Store(nil)
		return
	}
	l.hook.Store(&h)
}

func (l *Logger) emit(level Level, tag, msg string) {
	if hp := l.hook.Load(); hp != nil {
		(*hp)(level, tag, msg)
	}
}

func (l *Logger) Debugf(tag, format string, args ...any) { l.logAt(LevelDebug, tag, format, args...) }
func (l *Logger) Infof(tag, format string, args ...any)  { l.logAt(LevelInfo, tag, format, args...) }
func (l *Logger) Warnf(tag, format string, args ...any)  { l.logAt(LevelWarn, tag, format, args...) }
func (l *Logger) Errorf(tag, format string, args ...any) { l.logAt(LevelError, tag, format, args...) }

func (l *Logger) logAt(level Level, tag, format string, args ...any) {
	if l.levelFor(tag) > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", tag, msg)
	l.emit(level, tag, msg)
}

// Log is the package-level default logger, usable before a daemon-specific
// one is constructed from config.
var Log = New(Config{})
