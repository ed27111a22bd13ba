package util

import (
	"log"
	"os"
	"sync"
)

type Logger struct {
	logLevel int
	logger   *log.Logger
	lock     sync.Mutex
}

const (
	// error levels that should almost always be printed
	LevelFatal = iota // error that must stop the program (panics)
	LevelError        // error that does not need to stop execution

	// debugging levels, okay to disable
	LevelWarn // something may be wrong, but not necessarily an error
	LevelInfo // nothing wrong, informational only

	// Production code by default only shows warnings and above.
	LogLevelDefault = LevelWarn

	// min, max levels for setting print level
	levelMin = LevelFatal
	levelMax = LevelInfo
)

var (
	levelToPrefix = []string{
		"FATAL ",
		"ERROR ",
		"WARN ",
		"INFO ",
	}
)

func NewLogger() *Logger {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	return &Logger{logLevel: LogLevelDefault, logger: logger}
}

func (l *Logger) LogLevel() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.logLevel
}

// SetLogLevel returns the old level.
func (l *Logger) SetLogLevel(level int) int {
	if level < levelMin || level > levelMax {
		panic("trying to set invalid log level")
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	old := l.logLevel
	l.logLevel = level
	return old
}

// SetOutput redirects the logger, mostly for tests.
func (l *Logger) SetOutput(logger *log.Logger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.logger = logger
}

func (l *Logger) output(level int, f func(*log.Logger, ...any), v ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if level > l.logLevel {
		return
	}
	l.logger.SetPrefix(levelToPrefix[level])
	f(l.logger, v...)
}

func (l *Logger) outputf(level int, f func(*log.Logger, string, ...any), format string, v ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if level > l.logLevel {
		return
	}
	l.logger.SetPrefix(levelToPrefix[level])
	f(l.logger, format, v...)
}

func (l *Logger) Info(v ...any) {
	l.output(LevelInfo, (*log.Logger).Println, v...)
}

func (l *Logger) Infof(format string, v ...any) {
	l.outputf(LevelInfo, (*log.Logger).Printf, format, v...)
}

func (l *Logger) Warn(v ...any) {
	l.output(LevelWarn, (*log.Logger).Println, v...)
}

func (l *Logger) Warnf(format string, v ...any) {
	l.outputf(LevelWarn, (*log.Logger).Printf, format, v...)
}

func (l *Logger) Error(v ...any) {
	l.output(LevelError, (*log.Logger).Println, v...)
}

func (l *Logger) Errorf(format string, v ...any) {
	l.outputf(LevelError, (*log.Logger).Printf, format, v...)
}

func (l *Logger) Fatal(v ...any) {
	l.output(LevelFatal, (*log.Logger).Fatalln, v...)
}

func (l *Logger) Fatalf(format string, v ...any) {
	l.outputf(LevelFatal, (*log.Logger).Fatalf, format, v...)
}
