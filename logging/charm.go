package logging

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

// CharmLogger is the default Logger implementation, backed by the same
// github.com/charmbracelet/log library kloset ships its CLI logger with.
type CharmLogger struct {
	lvl     level
	infoOn  atomic.Bool
	traces  *traceSet
	backend *charmlog.Logger
}

var _ Logger = (*CharmLogger)(nil)

func New(w io.Writer, lvl level) *CharmLogger {
	if w == nil {
		w = os.Stderr
	}
	backend := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Level:           charmlog.InfoLevel,
	})

	l := &CharmLogger{
		lvl:     lvl,
		traces:  newTraceSet(""),
		backend: backend,
	}
	if lvl >= LevelInfo {
		l.infoOn.Store(true)
	}
	switch {
	case lvl >= LevelDebug:
		backend.SetLevel(charmlog.DebugLevel)
	case lvl == LevelWarn:
		backend.SetLevel(charmlog.WarnLevel)
	case lvl == LevelError:
		backend.SetLevel(charmlog.ErrorLevel)
	}
	return l
}

func (l *CharmLogger) SetOutput(w io.Writer) { l.backend.SetOutput(w) }

func (l *CharmLogger) Printf(format string, args ...any) {
	l.backend.Printf(format, args...)
}

func (l *CharmLogger) Stdout(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

func (l *CharmLogger) Stderr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (l *CharmLogger) Info(format string, args ...any) {
	l.backend.Infof(format, args...)
}

func (l *CharmLogger) Warn(format string, args ...any) {
	l.backend.Warnf(format, args...)
}

func (l *CharmLogger) Error(format string, args ...any) {
	l.backend.Errorf(format, args...)
}

func (l *CharmLogger) Debug(format string, args ...any) {
	l.backend.Debugf(format, args...)
}

func (l *CharmLogger) Trace(subsystem string, format string, args ...any) {
	if !l.traces.enabled(subsystem) {
		return
	}
	l.backend.Debugf("["+subsystem+"] "+format, args...)
}

func (l *CharmLogger) EnableInfo() {
	l.infoOn.Store(true)
	l.backend.SetLevel(charmlog.InfoLevel)
}

func (l *CharmLogger) EnableTracing(traces string) {
	l.traces.configure(traces)
	l.backend.SetLevel(charmlog.DebugLevel)
}

func (l *CharmLogger) InfoEnabled() bool { return l.infoOn.Load() }

func (l *CharmLogger) TracingEnabled() string { return l.traces.String() }
