package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a LOG_LEVEL value to a level. Unknown values fall back to info.
func ParseLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	logger *log.Logger
}

func NewLogger(level LogLevel) *Logger {
	return New(level, os.Stdout)
}

// New creates a logger writing to out.
func New(level LogLevel, out io.Writer) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(out, "", 0),
	}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	l.logger.SetOutput(out)
	l.mu.Unlock()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(2, LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(2, LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(2, LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.output(2, LevelError, format, args...)
}

// Fatal logs and exits the process with status 1.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.output(2, LevelFatal, format, args...)
	os.Exit(1)
}

// output writes one line. skip is the number of frames between output and
// the call site being reported.
func (l *Logger) output(skip int, level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(skip)
	fileName := "unknown"
	if ok {
		fileName = filepath.Base(file)
	}

	l.logger.Println(fmt.Sprintf("[%s] [%s] [%s:%d] %s",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		fileName,
		line,
		fmt.Sprintf(format, args...)))
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

func InitLogger(level LogLevel) {
	globalMu.Lock()
	globalLogger = NewLogger(level)
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// SetOutput redirects the global logger.
func SetOutput(out io.Writer) {
	GetLogger().SetOutput(out)
}

func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

func Debug(format string, args ...interface{}) {
	GetLogger().output(2, LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().output(2, LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().output(2, LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().output(2, LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().output(2, LevelFatal, format, args...)
	os.Exit(1)
}
