// Package memback is the in-memory history backend. It is optimized for
// speed: per conversation key it caches the line count and the oldest
// stored timestamp so the periodic retention passes ("drop anything older
// than T", "keep at most N lines") touch as little as possible.
package memback

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/dchest/siphash"

	"github.com/westor7/ircd/internal/history"
	"github.com/westor7/ircd/internal/msgtag"
	logpkg "github.com/westor7/ircd/pkg/log"
)

// tableSize is the fixed prime size of the key index.
const tableSize = 1019

var _ history.Backend = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// ServerName is the source prefix on replay batch frames.
	ServerName string
	Logger     logpkg.Logger
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Store is the in-memory backend. It is confined to the reactor thread and
// does no locking; the hash key is randomized per Store to resist
// hash-flooding.
type Store struct {
	serverName string
	log        logpkg.Logger
	now        func() time.Time
	k0, k1     uint64
	table      [tableSize][]*LogObject
}

// New returns an empty store with a freshly randomized hash key.
func New(opts Options) *Store {
	s := &Store{
		serverName: opts.ServerName,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logpkg.NewLogger()
	}
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// The process has no recovery path without entropy.
		panic("memback: cannot seed hash key: " + err.Error())
	}
	s.k0 = binary.LittleEndian.Uint64(seed[0:8])
	s.k1 = binary.LittleEndian.Uint64(seed[8:16])
	return s
}

// LogObject is the per-key container: an ordered line sequence (index 0 is
// the earliest line) plus cached aggregates.
type LogObject struct {
	name        string
	lines       []*LogLine
	oldest      time.Time
	oldestKnown bool
}

// Name returns the object's key as first seen (bounded, original case).
func (h *LogObject) Name() string { return h.name }

// Len returns the number of stored lines.
func (h *LogObject) Len() int { return len(h.lines) }

// Oldest returns the cached oldest timestamp. ok is false when the log is
// empty or the cache is pending recomputation.
func (h *LogObject) Oldest() (time.Time, bool) { return h.oldest, h.oldestKnown }

// Lines returns the stored lines in arrival order.
func (h *LogObject) Lines() []*LogLine {
	return append([]*LogLine(nil), h.lines...)
}

// LogLine is one stored message. All fields are immutable after insertion.
type LogLine struct {
	t    time.Time
	tags msgtag.List
	text string
}

// Time returns the timestamp extracted at insertion.
func (l *LogLine) Time() time.Time { return l.t }

// Text returns the raw message text.
func (l *LogLine) Text() string { return l.text }

// Tags returns a copy of the line's tag set.
func (l *LogLine) Tags() msgtag.List { return l.tags.Dup() }

// hash buckets a key. Folding before hashing keeps differently-cased keys
// on one chain.
func (s *Store) hash(key string) int {
	folded := history.Fold(key)
	return int(siphash.Hash(s.k0, s.k1, []byte(folded)) % tableSize)
}

func (s *Store) find(key string) *LogObject {
	key = history.Bound(key)
	for _, h := range s.table[s.hash(key)] {
		if history.Fold(h.name) == history.Fold(key) {
			return h
		}
	}
	return nil
}

func (s *Store) findOrAdd(key string) *LogObject {
	key = history.Bound(key)
	hashv := s.hash(key)
	for _, h := range s.table[hashv] {
		if history.Fold(h.name) == history.Fold(key) {
			return h
		}
	}
	h := &LogObject{name: key}
	s.table[hashv] = append(s.table[hashv], h)
	return h
}

// Find returns the log object for key.
func (s *Store) Find(key string) (*LogObject, bool) {
	h := s.find(key)
	return h, h != nil
}

// Add stores one line under key, creating the log object on first use. The
// tag set is duplicated; a missing "time" tag is synthesized from the wall
// clock and the line's timestamp is parsed back from the tag either way.
func (s *Store) Add(key string, tags msgtag.List, line string) error {
	h := s.findOrAdd(key)
	dup, ts, err := msgtag.Stamp(tags, s.now())
	if err != nil {
		// Suspicious but recoverable: keep the tag for display, order the
		// line by arrival instead.
		s.log.Warn("history line carries unparseable time tag",
			logpkg.Str("key", h.name), logpkg.Err(err))
		ts = s.now()
	}
	l := &LogLine{t: ts, tags: dup, text: line}
	h.lines = append(h.lines, l)
	if !h.oldestKnown || ts.Before(h.oldest) {
		h.oldest = ts
		h.oldestKnown = true
	}
	return nil
}

// Trim enforces retention in two passes, age before size, so the size pass
// operates on an already-reduced sequence. Both passes prefer keeping the
// most recent lines and leave the oldest-timestamp cache recomputed from
// the survivors. Reports whether the key had a log object; an empty object
// is kept, never auto-removed.
func (s *Store) Trim(key string, maxLines int, maxAge time.Duration) bool {
	h := s.find(key)
	if h == nil {
		return false
	}
	if maxAge > 0 {
		cutoff := s.now().Add(-maxAge)
		// An unknown cache may hide expired lines, so it forces the pass.
		if !h.oldestKnown || h.oldest.Before(cutoff) {
			h.trimAge(cutoff)
		}
	}
	if maxLines > 0 && len(h.lines) > maxLines {
		h.trimSize(maxLines)
	}
	return true
}

func (h *LogObject) trimAge(cutoff time.Time) {
	kept := h.lines[:0]
	var oldest time.Time
	known := false
	for _, l := range h.lines {
		if l.t.Before(cutoff) {
			continue
		}
		if !known || l.t.Before(oldest) {
			oldest = l.t
			known = true
		}
		kept = append(kept, l)
	}
	for i := len(kept); i < len(h.lines); i++ {
		h.lines[i] = nil
	}
	h.lines = kept
	h.oldest = oldest
	h.oldestKnown = known
}

func (h *LogObject) trimSize(maxLines int) {
	drop := len(h.lines) - maxLines
	copy(h.lines, h.lines[drop:])
	for i := maxLines; i < len(h.lines); i++ {
		h.lines[i] = nil
	}
	h.lines = h.lines[:maxLines]

	var oldest time.Time
	known := false
	for _, l := range h.lines {
		if !known || l.t.Before(oldest) {
			oldest = l.t
			known = true
		}
	}
	h.oldest = oldest
	h.oldestKnown = known
}

// Destroy releases the key's log object and every line in it. Reports
// whether the key was known.
func (s *Store) Destroy(key string) bool {
	key = history.Bound(key)
	hashv := s.hash(key)
	chain := s.table[hashv]
	for i, h := range chain {
		if history.Fold(h.name) == history.Fold(key) {
			s.table[hashv] = append(chain[:i], chain[i+1:]...)
			return true
		}
	}
	return false
}
