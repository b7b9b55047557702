package history

import (
	"strings"
	"testing"
	"time"

	"github.com/westor7/ircd/internal/msgtag"
)

type nullBackend struct{}

func (nullBackend) Add(string, msgtag.List, string) error { return nil }
func (nullBackend) Trim(string, int, time.Duration) bool  { return false }
func (nullBackend) Request(Client, string, *Filter) bool  { return false }
func (nullBackend) Destroy(string) bool                   { return false }

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("mem", nullBackend{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("mem", nullBackend{}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
	if err := r.Register("", nullBackend{}); err == nil {
		t.Fatalf("empty name must fail")
	}
	if err := r.Register("disk", nullBackend{}); err != nil {
		t.Fatalf("register disk: %v", err)
	}

	if _, ok := r.Lookup("mem"); !ok {
		t.Fatalf("lookup mem failed")
	}
	if _, ok := r.Lookup("null"); ok {
		t.Fatalf("lookup of unknown backend succeeded")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "mem" || names[1] != "disk" {
		t.Fatalf("names out of order: %v", names)
	}

	if !r.Deregister("mem") {
		t.Fatalf("deregister mem failed")
	}
	if r.Deregister("mem") {
		t.Fatalf("second deregister should report absent")
	}
	if _, ok := r.Lookup("mem"); ok {
		t.Fatalf("mem still resolvable after deregister")
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"#Chan":     "#chan",
		"Nick[a]":   "nick{a}",
		`back\tick`: "back|tick",
		"wave~":     "wave^",
		"#plain":    "#plain",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBound(t *testing.T) {
	long := "#" + strings.Repeat("x", 64)
	if got := Bound(long); len(got) != MaxKeyLen {
		t.Fatalf("long key not truncated: %d", len(got))
	}
	if got := Bound("#chan"); got != "#chan" {
		t.Fatalf("short key altered: %q", got)
	}
}

func TestNewBatchIDUnique(t *testing.T) {
	a, b := NewBatchID(), NewBatchID()
	if a == "" || a == b {
		t.Fatalf("batch ids must be non-empty and distinct: %q %q", a, b)
	}
}

func TestLineFilter(t *testing.T) {
	f, err := NewLineFilter(`text.contains("hello") && tags["account"] == "syzop"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	tags := msgtag.List{{Name: "account", Value: "syzop"}}
	if !f.Match("well hello there", tags, time.Now()) {
		t.Fatalf("expected match")
	}
	if f.Match("goodbye", tags, time.Now()) {
		t.Fatalf("expected reject on text")
	}
	if f.Match("well hello there", nil, time.Now()) {
		t.Fatalf("expected reject on missing tag")
	}

	identity, err := NewLineFilter("  ")
	if err != nil {
		t.Fatalf("empty filter: %v", err)
	}
	if !identity.Match("anything", nil, time.Now()) {
		t.Fatalf("empty filter must be identity")
	}

	if _, err := NewLineFilter("not ( valid"); err == nil {
		t.Fatalf("bad expression must fail to compile")
	}
}

func TestLineFilterTimeWindow(t *testing.T) {
	f, err := NewLineFilter("now_ms - ts_ms < 60000")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match("x", nil, time.Now()) {
		t.Fatalf("fresh line should pass the window")
	}
	if f.Match("x", nil, time.Now().Add(-2*time.Minute)) {
		t.Fatalf("stale line should fail the window")
	}
}
