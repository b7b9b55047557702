// Package runtime wires config, the history backends, and the scheduler
// into a single-node instance, and owns the periodic history maintenance.
package runtime

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	cfgpkg "github.com/westor7/ircd/internal/config"
	"github.com/westor7/ircd/internal/history"
	"github.com/westor7/ircd/internal/history/diskback"
	"github.com/westor7/ircd/internal/history/memback"
	"github.com/westor7/ircd/internal/sched"
	pebblestore "github.com/westor7/ircd/internal/storage/pebble"
	logpkg "github.com/westor7/ircd/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config  cfgpkg.Config
	DataDir string
	Logger  logpkg.Logger
	// Now overrides the clock for the scheduler and backends; nil means
	// time.Now.
	Now func() time.Time
}

// Runtime is the wired single-node instance.
type Runtime struct {
	cfg      cfgpkg.Config
	log      logpkg.Logger
	db       *pebblestore.DB
	backends *history.Registry
	sch      *sched.Scheduler
	owner    *sched.Owner
	targets  []target
}

// target is one conversation key under retention maintenance.
type target struct {
	key      string
	maxLines int
	maxAge   time.Duration
}

// Open validates the config, registers the history backends, and schedules
// the periodic trim task.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	r := &Runtime{
		cfg:      opts.Config,
		log:      logger,
		backends: history.NewRegistry(),
	}

	mem := memback.New(memback.Options{
		ServerName: opts.Config.ServerName,
		Logger:     logger.WithComponent("history"),
		Now:        opts.Now,
	})
	if err := r.backends.Register("mem", mem); err != nil {
		return nil, err
	}

	if opts.Config.History.Backend == "disk" {
		dataDir := opts.DataDir
		if dataDir == "" {
			dataDir = cfgpkg.DefaultDataDir()
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir: filepath.Join(dataDir, "history"),
			Fsync:   pebblestore.FsyncModeInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("runtime: open history db: %w", err)
		}
		r.db = db
		disk := diskback.New(diskback.Options{
			DB:         db,
			ServerName: opts.Config.ServerName,
			Logger:     logger.WithComponent("history"),
			Now:        opts.Now,
		})
		if err := r.backends.Register("disk", disk); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	r.sch = sched.New(logger.WithComponent("sched"))
	if opts.Now != nil {
		r.sch.SetClock(opts.Now)
	}
	r.owner = sched.NewOwner("history")
	if _, err := r.sch.Register(r.owner, "history-trim", r.trimTask, nil,
		opts.Config.History.TrimInterval(), 0); err != nil {
		r.closeDB()
		return nil, err
	}
	return r, nil
}

// Close removes the runtime's scheduled tasks and releases storage.
func (r *Runtime) Close() error {
	r.sch.UnloadOwner(r.owner)
	return r.closeDB()
}

func (r *Runtime) closeDB() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// CheckHealth performs a simple liveness check of the wired parts.
func (r *Runtime) CheckHealth() error {
	if _, ok := r.backends.Lookup(r.cfg.History.Backend); !ok {
		return errors.New("runtime: active history backend missing")
	}
	if _, ok := r.sch.FindByName("history-trim"); !ok {
		return errors.New("runtime: trim task missing")
	}
	return nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.cfg }

// Scheduler returns the task scheduler the reactor ticks.
func (r *Runtime) Scheduler() *sched.Scheduler { return r.sch }

// Backends returns the history backend registry.
func (r *Runtime) Backends() *history.Registry { return r.backends }

// Backend returns the configured active history backend.
func (r *Runtime) Backend() history.Backend {
	b, _ := r.backends.Lookup(r.cfg.History.Backend)
	return b
}

// Track puts a conversation key under retention maintenance. Non-positive
// limits fall back to the configured defaults. Re-tracking a key replaces
// its limits.
func (r *Runtime) Track(key string, maxLines int, maxAge time.Duration) {
	if maxLines <= 0 {
		maxLines = r.cfg.History.MaxLines
	}
	if maxAge <= 0 {
		maxAge = r.cfg.History.MaxAge()
	}
	folded := history.Fold(history.Bound(key))
	for i, t := range r.targets {
		if history.Fold(history.Bound(t.key)) == folded {
			r.targets[i] = target{key: key, maxLines: maxLines, maxAge: maxAge}
			return
		}
	}
	r.targets = append(r.targets, target{key: key, maxLines: maxLines, maxAge: maxAge})
}

// Untrack removes a key from maintenance. Reports whether it was tracked.
func (r *Runtime) Untrack(key string) bool {
	folded := history.Fold(history.Bound(key))
	for i, t := range r.targets {
		if history.Fold(history.Bound(t.key)) == folded {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			return true
		}
	}
	return false
}

// trimTask is the scheduled maintenance pass: it walks the tracked keys in
// registration order and enforces their retention on the active backend.
func (r *Runtime) trimTask(any) {
	b := r.Backend()
	if b == nil {
		return
	}
	for _, t := range r.targets {
		b.Trim(t.key, t.maxLines, t.maxAge)
	}
}
