package sched

// Owner groups tasks registered by one dynamically loadable unit so they can
// be removed together when the unit unloads. The owner holds handles to the
// tasks it registered; the scheduler's list stays the single owner of the
// Events themselves.
type Owner struct {
	name   string
	events []*Event
	err    error
}

// NewOwner returns an owner with the given name.
func NewOwner(name string) *Owner { return &Owner{name: name} }

// Name returns the owner's name.
func (o *Owner) Name() string { return o.name }

// Err returns the error recorded by the owner's last Register or Modify,
// or nil when it succeeded.
func (o *Owner) Err() error { return o.err }

// Events returns the owner's live task handles.
func (o *Owner) Events() []*Event {
	return append([]*Event(nil), o.events...)
}

func (o *Owner) drop(ev *Event) {
	for i, e := range o.events {
		if e == ev {
			o.events = append(o.events[:i], o.events[i+1:]...)
			return
		}
	}
}

// UnloadOwner removes every task the owner registered.
func (s *Scheduler) UnloadOwner(o *Owner) {
	if o == nil {
		return
	}
	// RemoveImmediately mutates o.events via drop, so work on a copy.
	for _, ev := range o.Events() {
		s.RemoveImmediately(ev)
	}
}
