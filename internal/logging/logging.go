// Package logging configures the zerolog logger the rest of envguard
// reports through: a reopenable, level-filtered multi-writer so a
// SIGHUP (or any operator-triggered reload) can rotate the log file
// without losing in-flight writers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/envguard/envguard/internal/config"
)

// writerLevel wraps an io.Writer (or zerolog.LevelWriter) with a
// minimum level and a mutex guarding in-place swaps.
type writerLevel struct {
	w io.Writer
	l zerolog.Level
	m sync.Mutex
}

var _ zerolog.LevelWriter = (*writerLevel)(nil)

func newWriterLevel(w io.Writer, l zerolog.Level) *writerLevel {
	return &writerLevel{w: w, l: l}
}

func (wl *writerLevel) Write(p []byte) (n int, err error) {
	wl.m.Lock()
	defer wl.m.Unlock()
	if wl.w != nil {
		return wl.w.Write(p)
	}
	return len(p), nil
}

func (wl *writerLevel) WriteLevel(l zerolog.Level, p []byte) (n int, err error) {
	if l < wl.l {
		return len(p), nil
	}
	wl.m.Lock()
	defer wl.m.Unlock()
	if wl.w == nil {
		return len(p), nil
	}
	if lw, ok := wl.w.(zerolog.LevelWriter); ok {
		return lw.WriteLevel(l, p)
	}
	return wl.w.Write(p)
}

func (wl *writerLevel) SwapWriter(fn func(io.Writer) io.Writer) {
	wl.m.Lock()
	defer wl.m.Unlock()
	wl.w = fn(wl.w)
}

// Logger bundles the configured zerolog.Logger with a Reopen hook for
// the log file writer. Reopen is not bound to any signal; the
// cmd/envguard entry point does not call it.
type Logger struct {
	zerolog.Logger
	Reopen func()
}

// Configure builds a Logger from c: always logs to stderr at c.LogLevel;
// additionally logs to c.LogFile, if set, reopening it via Reopen.
func Configure(c *config.PolicyConfig) (Logger, error) {
	var outputs []io.Writer
	outputs = append(outputs, newWriterLevel(os.Stderr, c.LogLevel))

	reopen := func() {}
	if fn := c.LogFile; fn != "" {
		abs, err := filepath.Abs(fn)
		if err != nil {
			return Logger{}, fmt.Errorf("logging: resolve log file: %w", err)
		}
		x := newWriterLevel(nil, c.LogLevel)
		reopen = func() {
			x.SwapWriter(func(old io.Writer) io.Writer {
				if o, ok := old.(io.Closer); ok {
					o.Close()
				}
				f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
				if err != nil {
					fmt.Fprintf(os.Stderr, "envguard: open log file: %v\n", err)
					return nil
				}
				return f
			})
		}
		outputs = append(outputs, x)
		reopen()
	}

	l := zerolog.New(zerolog.MultiLevelWriter(outputs...)).
		Level(c.LogLevel).
		With().
		Timestamp().
		Logger()

	return Logger{Logger: l, Reopen: reopen}, nil
}
