// Package history defines the contract a chat-history backend satisfies and
// the registry that lets backends be swapped. Storage backends live in the
// memback and diskback subpackages.
package history

import (
	"strings"
	"time"

	"github.com/westor7/ircd/internal/msgtag"
)

// Capability names consumed by replay.
const (
	// CapServerTime gates receiving timestamped history at all.
	CapServerTime = "server-time"
	// CapBatch enables wrapping replayed lines in a batch frame.
	CapBatch = "batch"
)

// MaxKeyLen bounds conversation keys: the larger of the nick and channel
// name limits.
const MaxKeyLen = 32

// Client is the connection abstraction replay emits to. Implemented by the
// connection layer; tests use fakes.
type Client interface {
	// HasCapability reports whether the client advertised support for the
	// named capability.
	HasCapability(name string) bool
	// Send delivers one line with the given tags attached.
	Send(tags msgtag.List, line string)
}

// CanReceiveHistory reports whether replaying stored lines to the client is
// useful at all. Without server-time, playback is more confusing than
// helpful, so it is skipped.
func CanReceiveHistory(c Client) bool {
	return c.HasCapability(CapServerTime)
}

// Filter narrows a replay. The zero value (or nil) replays everything.
type Filter struct {
	// Limit, when positive, replays only the trailing Limit lines.
	Limit int
	// Expr is an optional CEL expression evaluated per line; lines it
	// rejects are not sent. See NewLineFilter for the variables exposed.
	Expr string
}

// Backend is the contract every history backend implements. Keys are
// conversation keys (channel or user), compared case-insensitively and
// bounded at MaxKeyLen.
type Backend interface {
	// Add stores one line under key, duplicating tags and deriving the
	// line's timestamp from its "time" tag (synthesized when absent).
	Add(key string, tags msgtag.List, line string) error
	// Trim enforces retention: first every line older than maxAge is
	// dropped, then the count is reduced to maxLines from the oldest end.
	// A non-positive limit disables that pass. Reports whether the key had
	// a log at all.
	Trim(key string, maxLines int, maxAge time.Duration) bool
	// Request replays the key's lines to the client in arrival order,
	// batch-framed when the client supports it. Reports whether anything
	// could be replayed.
	Request(client Client, key string, filter *Filter) bool
	// Destroy releases the key's log entirely. Reports whether it existed.
	Destroy(key string) bool
}

// Fold maps a key to its canonical case-insensitive form. IRC casemapping
// is rfc1459: []\~ are the uppercase forms of {}|^.
func Fold(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '[':
			return '{'
		case r == ']':
			return '}'
		case r == '\\':
			return '|'
		case r == '~':
			return '^'
		}
		return r
	}, s)
}

// Bound truncates a key to MaxKeyLen bytes.
func Bound(s string) string {
	if len(s) > MaxKeyLen {
		return s[:MaxKeyLen]
	}
	return s
}
