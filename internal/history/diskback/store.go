// Package diskback is the disk-backed history backend. It implements the
// same contract as memback over a Pebble keyspace, so deployments that want
// history to survive a restart can swap it in through the backend registry.
package diskback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/westor7/ircd/internal/history"
	"github.com/westor7/ircd/internal/msgtag"
	pebblestore "github.com/westor7/ircd/internal/storage/pebble"
	logpkg "github.com/westor7/ircd/pkg/log"
)

var _ history.Backend = (*Store)(nil)

// Options configures a Store.
type Options struct {
	DB *pebblestore.DB
	// ServerName is the source prefix on replay batch frames.
	ServerName string
	Logger     logpkg.Logger
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Store is the pebble-backed backend.
type Store struct {
	db         *pebblestore.DB
	serverName string
	log        logpkg.Logger
	now        func() time.Time
}

// New returns a Store over the given database.
func New(opts Options) *Store {
	s := &Store{
		db:         opts.DB,
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
	return s
}

// object canonicalizes a conversation key for the keyspace.
func object(key string) string {
	return history.Fold(history.Bound(key))
}

func (s *Store) lastSeq(obj string) (uint64, bool) {
	meta, err := s.db.Get(keyMeta(obj))
	if err != nil || len(meta) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(meta[:8]), true
}

// Add appends one line under key, assigning the next sequence number.
func (s *Store) Add(key string, tags msgtag.List, line string) error {
	obj := object(key)
	dup, ts, err := msgtag.Stamp(tags, s.now())
	if err != nil {
		s.log.Warn("history line carries unparseable time tag",
			logpkg.Str("key", obj), logpkg.Err(err))
		ts = s.now()
	}
	rec, err := encodeRecord(ts, dup, line)
	if err != nil {
		return fmt.Errorf("diskback: encode line: %w", err)
	}

	seq, _ := s.lastSeq(obj)
	seq++
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEntry(obj, seq), rec, nil); err != nil {
		return err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(keyMeta(obj), meta[:], nil); err != nil {
		return err
	}
	return s.db.CommitBatch(context.Background(), b)
}

// Trim enforces retention: an age pass deleting lines older than maxAge,
// then a size pass reducing the count to maxLines from the oldest end.
// Reports whether the key has a log at all.
func (s *Store) Trim(key string, maxLines int, maxAge time.Duration) bool {
	obj := object(key)
	if _, ok := s.lastSeq(obj); !ok {
		return false
	}

	if maxAge > 0 {
		cutoff := s.now().Add(-maxAge)
		s.deleteWhere(obj, func(l decodedLine) bool { return l.t.Before(cutoff) })
	}
	if maxLines > 0 {
		if n := s.count(obj); n > maxLines {
			drop := n - maxLines
			s.deleteWhere(obj, func(decodedLine) bool {
				if drop > 0 {
					drop--
					return true
				}
				return false
			})
		}
	}
	return true
}

func (s *Store) count(obj string) int {
	low, high := entryBounds(obj)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n
}

// deleteWhere walks the object's lines in arrival order and deletes those
// the predicate selects.
func (s *Store) deleteWhere(obj string, del func(decodedLine) bool) {
	low, high := entryBounds(obj)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		s.log.Error("history trim iterator", logpkg.Str("key", obj), logpkg.Err(err))
		return
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		l, okDec := decodeRecord(iter.Value())
		if !okDec {
			// A corrupt record is dead weight either way.
			s.log.Warn("dropping corrupt history record", logpkg.Str("key", obj))
		} else if !del(l) {
			continue
		}
		if err := b.Delete(iter.Key(), nil); err != nil {
			s.log.Error("history trim delete", logpkg.Str("key", obj), logpkg.Err(err))
			return
		}
		n++
	}
	if n == 0 {
		return
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		s.log.Error("history trim commit", logpkg.Str("key", obj), logpkg.Err(err))
	}
}

// Destroy removes the object's meta and every stored line. Reports whether
// the key was known.
func (s *Store) Destroy(key string) bool {
	obj := object(key)
	if _, ok := s.lastSeq(obj); !ok {
		return false
	}
	low, high := entryBounds(obj)
	if err := s.db.DeleteRange(low, high); err != nil {
		s.log.Error("history destroy", logpkg.Str("key", obj), logpkg.Err(err))
		return false
	}
	if err := s.db.Delete(keyMeta(obj)); err != nil {
		if !errors.Is(err, pebblestore.ErrNotFound) {
			s.log.Error("history destroy meta", logpkg.Str("key", obj), logpkg.Err(err))
		}
	}
	return true
}

// Request replays the key's stored lines to the client, with the same
// gating and framing as the memory backend.
func (s *Store) Request(client history.Client, key string, filter *history.Filter) bool {
	obj := object(key)
	if _, ok := s.lastSeq(obj); !ok {
		return false
	}
	if !history.CanReceiveHistory(client) {
		return false
	}

	var lf *history.LineFilter
	if filter != nil && filter.Expr != "" {
		compiled, err := history.NewLineFilter(filter.Expr)
		if err != nil {
			s.log.Warn("rejecting history request with bad filter",
				logpkg.Str("key", obj), logpkg.Err(err))
			return false
		}
		lf = compiled
	}

	lines := s.readAll(obj)
	if filter != nil && filter.Limit > 0 && len(lines) > filter.Limit {
		lines = lines[len(lines)-filter.Limit:]
	}

	batch := ""
	if client.HasCapability(history.CapBatch) {
		batch = history.NewBatchID()
		client.Send(nil, fmt.Sprintf(":%s BATCH +%s chathistory %s", s.serverName, batch, key))
	}
	for _, l := range lines {
		if !lf.Match(l.text, l.tags, l.t) {
			continue
		}
		tags := l.tags
		if batch != "" {
			tags = tags.With("batch", batch)
		}
		client.Send(tags, l.text)
	}
	if batch != "" {
		client.Send(nil, fmt.Sprintf(":%s BATCH -%s", s.serverName, batch))
	}
	return true
}

func (s *Store) readAll(obj string) []decodedLine {
	low, high := entryBounds(obj)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil
	}
	defer iter.Close()
	var out []decodedLine
	for ok := iter.First(); ok; ok = iter.Next() {
		if l, okDec := decodeRecord(iter.Value()); okDec {
			out = append(out, l)
		}
	}
	return out
}
