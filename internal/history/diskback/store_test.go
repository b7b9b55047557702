package diskback

import (
	"strings"
	"testing"
	"time"

	"github.com/westor7/ircd/internal/history"
	"github.com/westor7/ircd/internal/msgtag"
	pebblestore "github.com/westor7/ircd/internal/storage/pebble"
	logpkg "github.com/westor7/ircd/pkg/log"
)

var base = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

type testStore struct {
	*Store
	now time.Time
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
	})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ts := &testStore{now: base}
	ts.Store = New(Options{
		DB:         db,
		ServerName: "irc.test.net",
		Logger:     logpkg.NewRecorder(),
		Now:        func() time.Time { return ts.now },
	})
	return ts
}

func (ts *testStore) addAt(t *testing.T, key string, at time.Time, text string) {
	t.Helper()
	tags := msgtag.List{{Name: "time", Value: msgtag.FormatServerTime(at)}}
	if err := ts.Add(key, tags, text); err != nil {
		t.Fatalf("add %q: %v", text, err)
	}
}

type sent struct {
	tags msgtag.List
	line string
}

type fakeClient struct {
	caps map[string]bool
	out  []sent
}

func (c *fakeClient) HasCapability(name string) bool { return c.caps[name] }
func (c *fakeClient) Send(tags msgtag.List, line string) {
	c.out = append(c.out, sent{tags: tags.Dup(), line: line})
}

func client(caps ...string) *fakeClient {
	m := make(map[string]bool)
	for _, c := range caps {
		m[c] = true
	}
	return &fakeClient{caps: m}
}

func replayedTexts(ts *testStore, key string) []string {
	c := client(history.CapServerTime)
	ts.Request(c, key, nil)
	var out []string
	for _, s := range c.out {
		out = append(out, s.line)
	}
	return out
}

func TestAddAndReplayOrder(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base.Add(10*time.Second), "a")
	ts.addAt(t, "#chan", base.Add(20*time.Second), "b")
	ts.addAt(t, "#chan", base.Add(30*time.Second), "c")

	got := replayedTexts(ts, "#chan")
	if strings.Join(got, "") != "abc" {
		t.Fatalf("arrival order broken: %v", got)
	}
}

func TestTagsSurviveTheCodec(t *testing.T) {
	ts := newTestStore(t)
	at := base.Add(time.Second)
	tags := msgtag.List{
		{Name: "msgid", Value: "m1"},
		{Name: "time", Value: msgtag.FormatServerTime(at)},
		{Name: "account", Value: "syzop"},
	}
	if err := ts.Add("#chan", tags, "hello"); err != nil {
		t.Fatalf("add: %v", err)
	}

	c := client(history.CapServerTime)
	ts.Request(c, "#chan", nil)
	if len(c.out) != 1 {
		t.Fatalf("expected one line, got %d", len(c.out))
	}
	got := c.out[0].tags
	if len(got) != 3 || got[0].Name != "msgid" || got[2].Value != "syzop" {
		t.Fatalf("tag order or content lost: %v", got)
	}
}

func TestKeysFoldAcrossCase(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#Chan", base, "x")
	ts.addAt(t, "#chan", base, "y")
	if got := replayedTexts(ts, "#CHAN"); len(got) != 2 {
		t.Fatalf("case-equivalent keys must share a log: %v", got)
	}
}

func TestTrimBySize(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base.Add(10*time.Second), "a")
	ts.addAt(t, "#chan", base.Add(20*time.Second), "b")
	ts.addAt(t, "#chan", base.Add(30*time.Second), "c")

	if !ts.Trim("#chan", 2, 0) {
		t.Fatalf("trim of known key reported not-found")
	}
	if got := replayedTexts(ts, "#chan"); strings.Join(got, "") != "bc" {
		t.Fatalf("size trim kept wrong lines: %v", got)
	}
}

func TestTrimByAgeThenSize(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base.Add(-3*time.Hour), "ancient")
	ts.addAt(t, "#chan", base.Add(-30*time.Minute), "a")
	ts.addAt(t, "#chan", base.Add(-20*time.Minute), "b")
	ts.addAt(t, "#chan", base.Add(-10*time.Minute), "c")
	ts.now = base

	ts.Trim("#chan", 2, time.Hour)
	if got := replayedTexts(ts, "#chan"); strings.Join(got, "") != "bc" {
		t.Fatalf("dual-pass trim kept wrong lines: %v", got)
	}
}

func TestTrimUnknownKey(t *testing.T) {
	ts := newTestStore(t)
	if ts.Trim("#nowhere", 2, time.Hour) {
		t.Fatalf("trim of unknown key must report not-found")
	}
}

func TestDestroy(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base, "a")
	ts.addAt(t, "#other", base, "keep")

	if !ts.Destroy("#chan") {
		t.Fatalf("destroy failed")
	}
	if ts.Destroy("#chan") {
		t.Fatalf("second destroy must report not-found")
	}
	if c := client(history.CapServerTime); ts.Request(c, "#chan", nil) {
		t.Fatalf("destroyed key must replay nothing")
	}
	if got := replayedTexts(ts, "#other"); strings.Join(got, "") != "keep" {
		t.Fatalf("unrelated key disturbed: %v", got)
	}
}

func TestBatchFraming(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base, "a")
	c := client(history.CapServerTime, history.CapBatch)

	if !ts.Request(c, "#chan", nil) {
		t.Fatalf("request failed")
	}
	if len(c.out) != 3 {
		t.Fatalf("expected open + line + close: %v", c.out)
	}
	if !strings.HasPrefix(c.out[0].line, ":irc.test.net BATCH +") {
		t.Fatalf("bad open frame: %q", c.out[0].line)
	}
	if v, ok := c.out[1].tags.Find("batch"); !ok || v == "" {
		t.Fatalf("line missing batch tag")
	}
	if !strings.HasPrefix(c.out[2].line, ":irc.test.net BATCH -") {
		t.Fatalf("bad close frame: %q", c.out[2].line)
	}
}

func TestRequestGatedOnServerTime(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base, "a")
	c := client()
	if ts.Request(c, "#chan", nil) || len(c.out) != 0 {
		t.Fatalf("incapable client must receive nothing")
	}
}

func TestRequestLimitAndFilter(t *testing.T) {
	ts := newTestStore(t)
	ts.addAt(t, "#chan", base.Add(10*time.Second), "a")
	ts.addAt(t, "#chan", base.Add(20*time.Second), "b")
	ts.addAt(t, "#chan", base.Add(30*time.Second), "c")

	c := client(history.CapServerTime)
	ts.Request(c, "#chan", &history.Filter{Limit: 2, Expr: `text != "b"`})
	if len(c.out) != 1 || c.out[0].line != "c" {
		t.Fatalf("limit+filter mismatch: %v", c.out)
	}
}
