// Package log is a small leveled logger with prefix chaining and context
// carriage.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

type contextKey int

var (
	key   contextKey
	level uint32
)

// Level stores the global verbosity for the package.
func Level(l uint32) { atomic.StoreUint32(&level, l) }

// ContextGetLogger returns the logger stored in ctx, or a zero logger.
func ContextGetLogger(ctx context.Context) Logger {
	if v, ok := ctx.Value(key).(Logger); ok {
		return v
	}
	return Logger{}
}

// ContextWithLogger returns a new context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, key, l)
}

// Logger writes timestamped lines when its level is within the global
// verbosity. The zero value logs to stdout at level 0.
type Logger struct {
	level  uint32
	prefix string
	output io.Writer
}

// Output returns a copy of the logger writing to out.
func (l Logger) Output(out io.Writer) Logger {
	l.output = out
	return l
}

// V returns a copy of the logger that only logs when the global level is at
// least v.
func (l Logger) V(v uint32) Logger {
	l.level = v
	return l
}

// Prefix returns a copy of the logger with a bracketed prefix.
func (l Logger) Prefix(prefix string) Logger {
	l.prefix = "[" + prefix + "] "
	return l
}

// Print writes one message line.
func (l Logger) Print(msg string) { l.write(msg) }

// Printf formats and writes one message line.
func (l Logger) Printf(msg string, args ...interface{}) { l.write(msg, args...) }

func (l Logger) write(s string, args ...interface{}) {
	if l.level > atomic.LoadUint32(&level) {
		return
	}
	output := l.output
	if output == nil {
		output = os.Stdout
	}
	t := time.Now().UTC()
	fmt.Fprintf(output, "["+t.Format(time.RFC3339)+"] "+l.prefix+s+"\n", args...)
}
