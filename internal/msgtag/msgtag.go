// Package msgtag holds the ordered name/value message tags attached to
// stored history lines, plus the server-time wire format.
package msgtag

import (
	"time"
)

// Tag is a single name/value annotation.
type Tag struct {
	Name  string
	Value string
}

// List is an ordered set of tags. Order is insertion order. Uniqueness per
// name is a caller responsibility.
type List []Tag

// Find returns the value of the first tag with the given name.
func (l List) Find(name string) (string, bool) {
	for _, t := range l {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Dup returns an independent copy of the list.
func (l List) Dup() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// With returns a copy of the list with an extra tag appended. The receiver
// is never modified; replay uses this to attach a batch tag for the duration
// of a single send.
func (l List) With(name, value string) List {
	out := make(List, 0, len(l)+1)
	out = append(out, l...)
	return append(out, Tag{Name: name, Value: value})
}

// ServerTimeLayout is the wire form of the "time" tag: UTC with millisecond
// precision, e.g. 2019-04-02T19:30:05.003Z.
const ServerTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatServerTime renders t in server-time wire form.
func FormatServerTime(t time.Time) string {
	return t.UTC().Format(ServerTimeLayout)
}

// ParseServerTime parses a server-time value.
func ParseServerTime(s string) (time.Time, error) {
	return time.Parse(ServerTimeLayout, s)
}

// Stamp duplicates tags and guarantees the copy carries a "time" entry,
// synthesizing one from now when absent. The returned timestamp is parsed
// back from that entry so display metadata and ordering agree. When an
// existing "time" value does not parse, the tag is left as-is and the error
// is returned together with the duplicate; the caller decides the fallback.
func Stamp(tags List, now time.Time) (List, time.Time, error) {
	dup := tags.Dup()
	v, ok := dup.Find("time")
	if !ok {
		v = FormatServerTime(now)
		dup = append(dup, Tag{Name: "time", Value: v})
	}
	t, err := ParseServerTime(v)
	if err != nil {
		return dup, time.Time{}, err
	}
	return dup, t, nil
}
