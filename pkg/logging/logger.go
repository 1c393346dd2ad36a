package logging

import (
	"fmt"
	"log"

	"github.com/fatih/color"
)

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything, so that components can
// accept a *Logger without having to guard against a caller that doesn't
// want logging. It is designed to use the standard logger provided by the
// log package, so it respects any flags set for that logger. It is safe for
// concurrent usage.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
	// level is the minimum level at which this logger (and its subloggers)
	// will emit output.
	level Level
}

// RootLogger is the root logger from which all other loggers derive. It logs
// at LevelInfo by default.
var RootLogger = &Logger{level: LevelInfo}

// NewLogger creates a new root logger at the specified level.
func NewLogger(level Level) *Logger {
	return &Logger{level: level}
}

// Sublogger creates a new sublogger with the specified name. The sublogger
// inherits its parent's level.
func (l *Logger) Sublogger(name string) *Logger {
	// If the logger is nil, then the sublogger will be as well.
	if l == nil {
		return nil
	}

	// Compute the new prefix.
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{
		prefix: prefix,
		level:  l.level,
	}
}

// Level returns the logger's current minimum level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelDisabled
	}
	return l.level
}

// output is the internal logging method.
func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// enabled returns whether or not the logger should emit at the given level.
func (l *Logger) enabled(level Level) bool {
	return l != nil && l.level >= level
}

// Error logs error information with an error prefix and red color.
func (l *Logger) Error(v ...interface{}) {
	if l.enabled(LevelError) {
		l.output(3, color.RedString("Error: %s", fmt.Sprint(v...)))
	}
}

// Errorf logs error information with Printf semantics.
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.enabled(LevelError) {
		l.output(3, color.RedString("Error: %s", fmt.Sprintf(format, v...)))
	}
}

// Warn logs warning information with a warning prefix and yellow color.
func (l *Logger) Warn(v ...interface{}) {
	if l.enabled(LevelWarn) {
		l.output(3, color.YellowString("Warning: %s", fmt.Sprint(v...)))
	}
}

// Warnf logs warning information with Printf semantics.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.enabled(LevelWarn) {
		l.output(3, color.YellowString("Warning: %s", fmt.Sprintf(format, v...)))
	}
}

// Info logs information with semantics equivalent to fmt.Print, but only if
// info logging is enabled.
func (l *Logger) Info(v ...interface{}) {
	if l.enabled(LevelInfo) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Infof logs information with semantics equivalent to fmt.Printf, but only if
// info logging is enabled.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l.enabled(LevelInfo) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Debug logs information with semantics equivalent to fmt.Print, but only if
// debug logging is enabled.
func (l *Logger) Debug(v ...interface{}) {
	if l.enabled(LevelDebug) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Debugf logs information with semantics equivalent to fmt.Printf, but only
// if debug logging is enabled.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.enabled(LevelDebug) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Trace logs information with semantics equivalent to fmt.Print, but only if
// trace logging is enabled.
func (l *Logger) Trace(v ...interface{}) {
	if l.enabled(LevelTrace) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Tracef logs information with semantics equivalent to fmt.Printf, but only
// if trace logging is enabled.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if l.enabled(LevelTrace) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}
