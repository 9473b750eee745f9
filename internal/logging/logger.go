package logging

import (
	"log"

	"github.com/rollbar/rollbar-go"
)

// Logger writes to a std logger and, when a Rollbar token is configured,
// forwards warnings and errors to Rollbar.
type Logger struct {
	std     *log.Logger
	rollbar bool
}

// Options configure the Rollbar reporter.
type Options struct {
	RollbarToken string
	Env          string
	CodeVersion  string
	Host         string
}

// New builds a logger. Rollbar stays disabled without a token.
func New(std *log.Logger, opts Options) *Logger {
	if std == nil {
		std = log.Default()
	}
	l := &Logger{std: std}
	if opts.RollbarToken != "" {
		rollbar.SetToken(opts.RollbarToken)
		rollbar.SetEnvironment(opts.Env)
		rollbar.SetCodeVersion(opts.CodeVersion)
		if opts.Host != "" {
			rollbar.SetServerHost(opts.Host)
		}
		rollbar.SetEnabled(true)
		l.rollbar = true
	}
	return l
}

// Printf keeps the std logger's signature for call sites ported from log.Printf.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.std.Printf(format, args...)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.print("INFO", msg, nil, fields)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	if l.rollbar {
		rollbar.Warning(msg, fields)
	}
	l.print("WARN", msg, nil, fields)
}

// Error logs err with context. Nil errors are logged as plain messages.
func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	if l.rollbar {
		if err != nil {
			rollbar.Error(err, withMessage(fields, msg))
		} else {
			rollbar.Error(msg, fields)
		}
	}
	l.print("ERROR", msg, err, fields)
}

// Close flushes pending Rollbar items.
func (l *Logger) Close() {
	if l.rollbar {
		rollbar.Wait()
	}
}

func (l *Logger) print(level, msg string, err error, fields map[string]interface{}) {
	switch {
	case err != nil && len(fields) > 0:
		l.std.Printf("%s %s: %v %v", level, msg, err, fields)
	case err != nil:
		l.std.Printf("%s %s: %v", level, msg, err)
	case len(fields) > 0:
		l.std.Printf("%s %s %v", level, msg, fields)
	default:
		l.std.Printf("%s %s", level, msg)
	}
}

func withMessage(fields map[string]interface{}, msg string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["message"] = msg
	return out
}
