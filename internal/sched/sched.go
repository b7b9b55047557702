// Package sched implements the periodic task scheduler driving server
// maintenance. An external reactor loop calls Tick at a bounded interval;
// everything here runs on that single control thread with no locking.
package sched

import (
	"errors"
	"time"

	logpkg "github.com/westor7/ircd/pkg/log"
)

// MinInterval is the floor for task intervals. Requests below it are
// clamped up and logged as a defect, never rejected.
const MinInterval = 100 * time.Millisecond

// countRemove marks a task for lazy removal on the next pass.
const countRemove = -1

// ErrInvalidArgument reports a missing or out-of-range input to Register
// or Modify.
var ErrInvalidArgument = errors.New("sched: invalid argument")

// Callback is a task body. Callbacks run on the reactor thread and must not
// block.
type Callback func(data any)

// Event is one registered periodic task. The Scheduler exclusively owns
// every Event; callers hold the pointer only as a handle.
type Event struct {
	name    string
	fn      Callback
	data    any
	every   time.Duration
	count   int
	lastRun time.Time
	ran     bool
	owner   *Owner
	removed bool
}

// Name returns the task's unique name.
func (e *Event) Name() string { return e.name }

// Interval returns the current firing interval.
func (e *Event) Interval() time.Duration { return e.every }

// Count returns the remaining-fire count (0 = infinite).
func (e *Event) Count() int { return e.count }

// EventChange is a sparse update for Modify. Nil fields are left unchanged.
// Data is only applied when SetData is true, since nil is a valid data value.
type EventChange struct {
	Every   *time.Duration
	Count   *int
	Name    *string
	Fn      Callback
	Data    any
	SetData bool
}

// Scheduler holds the task list and advances it once per Tick. Tasks run in
// registration order; a newly registered task runs after older ones within
// the same tick.
type Scheduler struct {
	log   logpkg.Logger
	now   func() time.Time
	tasks []*Event
}

// New returns an empty scheduler.
func New(logger logpkg.Logger) *Scheduler {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Scheduler{log: logger, now: time.Now}
}

// SetClock overrides the time source. Tests use this to drive intervals.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Register adds a periodic task. count of 0 means fire forever; count N > 0
// fires N times and then auto-removes. Intervals below MinInterval are
// clamped up to it. When owner is non-nil the task is linked into the
// owner's handle set so UnloadOwner can cascade removal, and any argument
// error is also recorded as the owner's last error.
func (s *Scheduler) Register(owner *Owner, name string, fn Callback, data any, every time.Duration, count int) (*Event, error) {
	if name == "" || fn == nil || every < 0 || count < 0 {
		if owner != nil {
			owner.err = ErrInvalidArgument
		}
		return nil, ErrInvalidArgument
	}
	if every < MinInterval {
		s.log.Warn("task interval below floor, clamping",
			logpkg.Str("event", name),
			logpkg.Dur("requested", every),
			logpkg.Dur("floor", MinInterval))
		every = MinInterval
	}
	ev := &Event{
		name:    name,
		fn:      fn,
		data:    data,
		every:   every,
		count:   count,
		lastRun: s.now(),
		owner:   owner,
	}
	s.tasks = append(s.tasks, ev)
	if owner != nil {
		owner.events = append(owner.events, ev)
		owner.err = nil
	}
	return ev, nil
}

// MarkForRemoval flags the task so the next pass that reaches it removes
// it. Safe to call from inside a running callback. Returns the event for
// chaining.
func (s *Scheduler) MarkForRemoval(ev *Event) *Event {
	ev.count = countRemove
	return ev
}

// RemoveImmediately unlinks the task synchronously, detaching it from its
// owner's handle set. A task not present in the list is a no-op.
func (s *Scheduler) RemoveImmediately(ev *Event) {
	for i, t := range s.tasks {
		if t == ev {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			ev.removed = true
			if ev.owner != nil {
				ev.owner.drop(ev)
			}
			return
		}
	}
}

// FindByName returns the task with the given name.
func (s *Scheduler) FindByName(name string) (*Event, bool) {
	for _, t := range s.tasks {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

// Modify applies a sparse changeset to the task. Modify does not clamp the
// interval; callers that want the floor go through Register.
func (s *Scheduler) Modify(ev *Event, ch *EventChange) error {
	if ev == nil || ch == nil {
		if ev != nil && ev.owner != nil {
			ev.owner.err = ErrInvalidArgument
		}
		return ErrInvalidArgument
	}
	if ch.Every != nil {
		ev.every = *ch.Every
	}
	if ch.Count != nil {
		ev.count = *ch.Count
	}
	if ch.Name != nil {
		ev.name = *ch.Name
	}
	if ch.Fn != nil {
		ev.fn = ch.Fn
	}
	if ch.SetData {
		ev.data = ch.Data
	}
	if ev.owner != nil {
		ev.owner.err = nil
	}
	return nil
}

// Len reports the number of registered tasks, including ones marked for
// lazy removal that no pass has reached yet.
func (s *Scheduler) Len() int { return len(s.tasks) }

// Tick runs one scheduling pass. It walks a snapshot of the task list so a
// callback that removes tasks (itself included) can never skip or re-visit
// an entry. A task fires when it has never run, when its interval is zero,
// or when at least the interval has elapsed since its last run; a finite
// count reaching zero removes the task right after the call. Tick never
// blocks.
func (s *Scheduler) Tick() {
	now := s.now()
	snapshot := make([]*Event, len(s.tasks))
	copy(snapshot, s.tasks)
	for _, ev := range snapshot {
		if ev.removed {
			continue
		}
		if ev.count == countRemove {
			s.RemoveImmediately(ev)
			continue
		}
		if ev.ran && ev.every != 0 && now.Sub(ev.lastRun) < ev.every {
			continue
		}
		ev.fn(ev.data)
		ev.ran = true
		ev.lastRun = now
		if ev.count > 0 {
			ev.count--
			if ev.count == 0 {
				s.RemoveImmediately(ev)
			}
		}
	}
}
