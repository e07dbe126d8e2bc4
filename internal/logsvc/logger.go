package logsvc

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is the logging service used across the app.
// args are extra context values (errors, maps) printed after msg.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Std logs through a *log.Logger.
type Std struct {
	std *log.Logger
}

var _ Logger = (*Std)(nil)

// NewStd creates a logger writing to w with the given prefix.
func NewStd(w io.Writer, prefix string) *Std {
	return &Std{std: log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)}
}

// Default logs to stderr.
func Default() *Std {
	return NewStd(os.Stderr, "EDUREG : ")
}

// Discard drops everything; handy in tests.
func Discard() *Std {
	return NewStd(io.Discard, "")
}

func (l *Std) print(level, msg string, args []interface{}) {
	line := level + " " + msg
	for _, arg := range args {
		line += fmt.Sprintf(" | %+v", arg)
	}
	l.std.Println(line)
}

func (l *Std) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l *Std) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l *Std) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l *Std) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }
