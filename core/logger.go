package core

import (
	"fmt"
	"log"
)

// Logger is any service that can report application events.
// expected args: error, map[string]interface{}, user.User
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// StdLogger writes to a std log.Logger only. Used in tests and by the admin CLI.
type StdLogger struct {
	std   *log.Logger
	quiet bool
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std}
}

// NewDiscardLogger returns a Logger that drops everything but Fatal.
func NewDiscardLogger() *StdLogger {
	return &StdLogger{std: log.New(log.Writer(), "", log.LstdFlags), quiet: true}
}

func (l *StdLogger) print(level, msg string, args []interface{}) {
	if l.quiet {
		return
	}
	l.std.Println(level + " " + msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l *StdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l *StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l *StdLogger) Fatal(msg string, args ...interface{}) {
	l.quiet = false
	l.print("FATAL", msg, args)
	l.std.Fatal(fmt.Sprint(msg))
}
