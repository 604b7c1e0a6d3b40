// Package tracker keeps the lifecycle state and value snapshots of records
// attached to a unit of work.
//
// Dirty checking is snapshot based and retroactive: field writes are not
// observed, DetectChanges compares every Unchanged entry field by field
// against its original snapshot. That is O(entries × fields) per call, which
// is fine for the short-lived, small units of work this package serves.
package tracker

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
)

// State is the lifecycle state of a tracked record.
type State int

const (
	Unchanged State = iota + 1
	Added
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle identifies an entry. Handles are assigned in tracking order and
// never reused within a tracker.
type Handle uint64

// Snapshot maps field names to values.
type Snapshot map[string]any

// Snapshotter reads the current field values of a record of a named type.
type Snapshotter interface {
	Snapshot(typ string, rec any) (Snapshot, error)
}

// ErrUnknownHandle is returned for handles that are not, or no longer, tracked.
var ErrUnknownHandle = errors.New("tracker: unknown handle")

// Entry is one tracked record.
type Entry struct {
	Handle   Handle
	Type     string
	Record   any
	State    State
	Original Snapshot
	current  Snapshot
}

// Current returns the snapshot taken by the last dirty scan, if any.
func (e *Entry) Current() Snapshot { return e.current }

// Tracker is not safe for concurrent use; it belongs to a single unit of work.
type Tracker struct {
	snap     Snapshotter
	next     Handle
	entries  map[Handle]*Entry
	byRecord map[any]Handle
}

func New(snap Snapshotter) *Tracker {
	return &Tracker{
		snap:     snap,
		entries:  map[Handle]*Entry{},
		byRecord: map[any]Handle{},
	}
}

// Track attaches rec with the given state. Tracking an already tracked
// record returns its existing handle and leaves its state untouched. rec
// must be a pointer.
func (t *Tracker) Track(typ string, rec any, state State) (Handle, error) {
	if h, ok := t.byRecord[rec]; ok {
		return h, nil
	}
	original, err := t.snap.Snapshot(typ, rec)
	if err != nil {
		return 0, err
	}
	t.next++
	e := &Entry{Handle: t.next, Type: typ, Record: rec, State: state, Original: original}
	t.entries[e.Handle] = e
	t.byRecord[rec] = e.Handle
	return e.Handle, nil
}

// SetState forces the state of rec, tracking it first if needed. Forcing
// Unchanged takes a fresh original snapshot.
func (t *Tracker) SetState(typ string, rec any, state State) (Handle, error) {
	h, err := t.Track(typ, rec, state)
	if err != nil {
		return 0, err
	}
	e := t.entries[h]
	if state == Unchanged {
		if err := t.resnapshot(e); err != nil {
			return 0, err
		}
	}
	e.State = state
	return h, nil
}

// DetectChanges flips every Unchanged entry whose current values differ from
// its original snapshot to Modified and returns how many were flipped.
func (t *Tracker) DetectChanges() (int, error) {
	flipped := 0
	for _, e := range t.ordered() {
		if e.State != Unchanged {
			continue
		}
		cur, err := t.snap.Snapshot(e.Type, e.Record)
		if err != nil {
			return flipped, err
		}
		e.current = cur
		if !equalSnapshots(e.Original, cur) {
			e.State = Modified
			flipped++
		}
	}
	return flipped, nil
}

// AcceptChanges re-snapshots the entry and marks it Unchanged.
func (t *Tracker) AcceptChanges(h Handle) error {
	e, ok := t.entries[h]
	if !ok {
		return ErrUnknownHandle
	}
	if err := t.resnapshot(e); err != nil {
		return err
	}
	e.State = Unchanged
	return nil
}

// Detach stops tracking the entry.
func (t *Tracker) Detach(h Handle) {
	e, ok := t.entries[h]
	if !ok {
		return
	}
	delete(t.byRecord, e.Record)
	delete(t.entries, h)
}

// Clear detaches everything.
func (t *Tracker) Clear() {
	t.entries = map[Handle]*Entry{}
	t.byRecord = map[any]Handle{}
}

// Lookup returns the handle of a tracked record.
func (t *Tracker) Lookup(rec any) (Handle, bool) {
	h, ok := t.byRecord[rec]
	return h, ok
}

func (t *Tracker) Entry(h Handle) (*Entry, bool) {
	e, ok := t.entries[h]
	return e, ok
}

func (t *Tracker) Len() int { return len(t.entries) }

// Entries returns entries in the given states, or all entries when none are
// given, in tracking order.
func (t *Tracker) Entries(states ...State) []*Entry {
	all := t.ordered()
	if len(states) == 0 {
		return all
	}
	out := all[:0]
	for _, e := range all {
		for _, s := range states {
			if e.State == s {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (t *Tracker) resnapshot(e *Entry) error {
	snap, err := t.snap.Snapshot(e.Type, e.Record)
	if err != nil {
		return err
	}
	e.Original = snap
	e.current = nil
	return nil
}

func (t *Tracker) ordered() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for h := Handle(1); h <= t.next && len(out) < len(t.entries); h++ {
		if e, ok := t.entries[h]; ok {
			out = append(out, e)
		}
	}
	return out
}

func equalSnapshots(a, b Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !equalValues(av, bv) {
			return false
		}
	}
	return true
}

// equalValues compares by value: pointers by pointee, times by instant.
func equalValues(a, b any) bool {
	return cmp.Equal(a, b)
}
