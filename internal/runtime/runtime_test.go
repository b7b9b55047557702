package runtime

import (
	"testing"
	"time"

	cfgpkg "github.com/westor7/ircd/internal/config"
	"github.com/westor7/ircd/internal/history"
	"github.com/westor7/ircd/internal/history/memback"
	"github.com/westor7/ircd/internal/msgtag"
	logpkg "github.com/westor7/ircd/pkg/log"
)

var base = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	rt  *Runtime
	now time.Time
}

func openTestRuntime(t *testing.T, mutate func(*cfgpkg.Config)) *fixture {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.History.TrimIntervalMs = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{now: base}
	rt, err := Open(Options{
		Config:  cfg,
		DataDir: t.TempDir(),
		Logger:  logpkg.NewRecorder(),
		Now:     func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	f.rt = rt
	return f
}

func addAt(t *testing.T, b history.Backend, key string, at time.Time, text string) {
	t.Helper()
	tags := msgtag.List{{Name: "time", Value: msgtag.FormatServerTime(at)}}
	if err := b.Add(key, tags, text); err != nil {
		t.Fatalf("add: %v", err)
	}
}

func TestOpenRegistersMemBackend(t *testing.T) {
	f := openTestRuntime(t, nil)
	if f.rt.Backend() == nil {
		t.Fatalf("active backend missing")
	}
	names := f.rt.Backends().Names()
	if len(names) != 1 || names[0] != "mem" {
		t.Fatalf("backends: %v", names)
	}
	if err := f.rt.CheckHealth(); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestOpenWithDiskBackend(t *testing.T) {
	f := openTestRuntime(t, func(c *cfgpkg.Config) { c.History.Backend = "disk" })
	names := f.rt.Backends().Names()
	if len(names) != 2 || names[1] != "disk" {
		t.Fatalf("disk backend not registered: %v", names)
	}
	if f.rt.Backend() == nil {
		t.Fatalf("active backend missing")
	}
	addAt(t, f.rt.Backend(), "#chan", base, "persisted")
	if !f.rt.Backend().Destroy("#chan") {
		t.Fatalf("disk backend not functional")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.History.Backend = "tape"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("invalid config must be rejected")
	}
}

func TestScheduledTrimEnforcesRetention(t *testing.T) {
	f := openTestRuntime(t, func(c *cfgpkg.Config) {
		c.History.MaxLines = 2
		c.History.MaxAgeSeconds = 3600
	})
	b := f.rt.Backend()
	addAt(t, b, "#chan", base.Add(-2*time.Hour), "expired")
	addAt(t, b, "#chan", base.Add(-time.Minute), "a")
	addAt(t, b, "#chan", base.Add(-30*time.Second), "b")
	addAt(t, b, "#chan", base.Add(-time.Second), "c")

	f.rt.Track("#chan", 0, 0) // defaults from config
	f.rt.Scheduler().Tick()

	mem := b.(*memback.Store)
	h, ok := mem.Find("#chan")
	if !ok || h.Len() != 2 {
		t.Fatalf("trim task did not enforce retention: %d lines", h.Len())
	}
	lines := h.Lines()
	if lines[0].Text() != "b" || lines[1].Text() != "c" {
		t.Fatalf("trim kept wrong lines")
	}
}

func TestTrackReplacesAndUntracks(t *testing.T) {
	f := openTestRuntime(t, nil)
	f.rt.Track("#Chan", 5, time.Hour)
	f.rt.Track("#chan", 10, time.Hour) // same key, case-folded
	if len(f.rt.targets) != 1 {
		t.Fatalf("re-track must replace, have %d targets", len(f.rt.targets))
	}
	if f.rt.targets[0].maxLines != 10 {
		t.Fatalf("limits not replaced")
	}
	if !f.rt.Untrack("#CHAN") {
		t.Fatalf("untrack failed")
	}
	if f.rt.Untrack("#chan") {
		t.Fatalf("second untrack must report absent")
	}
}

func TestCloseRemovesScheduledTasks(t *testing.T) {
	f := openTestRuntime(t, nil)
	if _, ok := f.rt.Scheduler().FindByName("history-trim"); !ok {
		t.Fatalf("trim task not scheduled")
	}
	if err := f.rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := f.rt.Scheduler().FindByName("history-trim"); ok {
		t.Fatalf("trim task survived close")
	}
}
