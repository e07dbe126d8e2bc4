package logsvc

import (
	"github.com/rollbar/rollbar-go"
)

// Rollbar reports warnings and errors to rollbar and mirrors everything to a Std logger.
type Rollbar struct {
	std *Std
}

var _ Logger = (*Rollbar)(nil)

// NewRollbar configures the global rollbar client.
func NewRollbar(std *Std, token, env, codeVersion string) *Rollbar {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetCodeVersion(codeVersion)
	rollbar.SetServerRoot("edureg")
	return &Rollbar{std: std}
}

// Enable toggles delivery to rollbar.
func (l *Rollbar) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close flushes queued items.
func (l *Rollbar) Close() {
	rollbar.Close()
}

func (l *Rollbar) prepare(msg string, args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	for _, arg := range args {
		switch arg.(type) {
		case error, map[string]interface{}:
			out = append(out, arg)
		}
	}
	return out
}

func (l *Rollbar) Debug(msg string, args ...interface{}) {
	l.std.Debug(msg, args...)
}

func (l *Rollbar) Info(msg string, args ...interface{}) {
	l.std.Info(msg, args...)
}

func (l *Rollbar) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.std.Warn(msg, args...)
}

func (l *Rollbar) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.std.Error(msg, args...)
}

// New picks the rollbar logger when a token is configured.
func New(std *Std, rollbarToken, env string) Logger {
	if rollbarToken == "" {
		return std
	}
	return NewRollbar(std, rollbarToken, env, "")
}

// Close flushes l when it reports to rollbar. Other loggers need no cleanup.
func Close(l Logger) {
	if rb, ok := l.(*Rollbar); ok {
		rb.Close()
	}
}
