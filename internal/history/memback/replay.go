package memback

import (
	"fmt"

	"github.com/westor7/ircd/internal/history"
	logpkg "github.com/westor7/ircd/pkg/log"
)

// Request replays the key's stored lines to the client in arrival order.
// Nothing is sent when the key is unknown or the client cannot receive
// timestamped history. When the client supports batches the lines are
// bracketed by open/close frames sharing a fresh batch identifier, and each
// line carries a batch tag for that send only; the stored copy is never
// touched.
func (s *Store) Request(client history.Client, key string, filter *history.Filter) bool {
	h := s.find(key)
	if h == nil || !history.CanReceiveHistory(client) {
		return false
	}

	lines := h.lines
	var lf *history.LineFilter
	if filter != nil {
		if filter.Expr != "" {
			compiled, err := history.NewLineFilter(filter.Expr)
			if err != nil {
				s.log.Warn("rejecting history request with bad filter",
					logpkg.Str("key", h.name), logpkg.Err(err))
				return false
			}
			lf = compiled
		}
		if filter.Limit > 0 && len(lines) > filter.Limit {
			lines = lines[len(lines)-filter.Limit:]
		}
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
		s.sendLine(client, l, batch)
	}

	if batch != "" {
		client.Send(nil, fmt.Sprintf(":%s BATCH -%s", s.serverName, batch))
	}
	return true
}

func (s *Store) sendLine(client history.Client, l *LogLine, batch string) {
	if batch == "" {
		client.Send(l.tags, l.text)
		return
	}
	// The batch tag is scoped to this send; With copies, the stored tags
	// stay as appended.
	client.Send(l.tags.With("batch", batch), l.text)
}
