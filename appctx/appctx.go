// Package appctx carries the process-wide state every dwarfs-go command
// threads through its subsystems: cancellation, concurrency, the logger,
// the progress counters, and a per-run identity used to correlate log
// lines and progress snapshots from the same build.
//
// Grounded on kloset's kcontext.KContext: a struct embedding a cancellable
// context.Context plus ambient fields (hostname, home dir, cache dir,
// identity), exposing Deadline/Done/Err/Value so it satisfies
// context.Context itself. dwarfs-go has no repository config, cookies, or
// remote management to carry, so BuildContext drops everything
// appcontext.AppContext adds on top of kcontext for those concerns and
// keeps kcontext's flatter shape, substituting this repo's own logging
// and progress packages for kloset's events/logging.
package appctx

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/dwarfs-go/dwarfs/logging"
	"github.com/dwarfs-go/dwarfs/progress"
)

// BuildContext is created once per command run; the commands hand its
// Context, Logger and Progress fields on to the scanner, segmenter, writer
// and recompress configurations (those packages do not import appctx).
// The zero value is not ready to use; call New.
type BuildContext struct {
	Context context.Context
	Cancel  context.CancelFunc

	// ID identifies this build or recompress run, so a logged line or a
	// progress snapshot can be correlated back to the run that produced
	// it when several are interleaved (e.g. in a daemon that serves more
	// than one request).
	ID uuid.UUID

	Logger   logging.Logger
	Progress *progress.Counters

	Hostname       string
	CacheDir       string
	MaxConcurrency int
}

// New returns a BuildContext derived from context.Background(), with a
// fresh identity, the host's CPU count as the default concurrency, and
// logger/progress set to the values supplied (both may be nil; nil
// Progress means no counters are tracked).
func New(logger logging.Logger, prog *progress.Counters) *BuildContext {
	ctx, cancel := context.WithCancel(context.Background())

	hostname, _ := os.Hostname()

	return &BuildContext{
		Context:        ctx,
		Cancel:         cancel,
		ID:             uuid.New(),
		Logger:         logger,
		Progress:       prog,
		Hostname:       hostname,
		CacheDir:       defaultCacheDir(),
		MaxConcurrency: runtime.NumCPU(),
	}
}

// WithCancel returns a derived BuildContext whose Context is cancelled
// either when the parent is cancelled or when the returned Cancel is
// called, sharing every other field with bc.
func (bc *BuildContext) WithCancel() *BuildContext {
	child := *bc
	child.Context, child.Cancel = context.WithCancel(bc.Context)
	return &child
}

// Deadline, Done, Err and Value let BuildContext itself be passed
// anywhere a context.Context is expected.
func (bc *BuildContext) Deadline() (time.Time, bool) { return bc.Context.Deadline() }
func (bc *BuildContext) Done() <-chan struct{}       { return bc.Context.Done() }
func (bc *BuildContext) Err() error                  { return bc.Context.Err() }
func (bc *BuildContext) Value(key any) any           { return bc.Context.Value(key) }

// Close cancels the context. Safe to call more than once.
func (bc *BuildContext) Close() {
	bc.Cancel()
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + "/dwarfs-go"
}
