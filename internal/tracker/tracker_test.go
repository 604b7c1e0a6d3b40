package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string
	Score *int64
	Seen  time.Time
}

type itemSnapshotter struct {
	err error
}

func (s itemSnapshotter) Snapshot(_ string, rec any) (Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	it := rec.(*item)
	var score any
	if it.Score != nil {
		score = *it.Score
	}
	return Snapshot{"Name": it.Name, "Score": score, "Seen": it.Seen}, nil
}

func TestTrackIsIdempotent(t *testing.T) {
	tr := New(itemSnapshotter{})
	rec := &item{Name: "a"}

	h1, err := tr.Track("item", rec, Added)
	require.NoError(t, err)
	h2, err := tr.Track("item", rec, Unchanged)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, tr.Len())
	e, ok := tr.Entry(h1)
	require.True(t, ok)
	assert.Equal(t, Added, e.State)
}

func TestIdentityIsByReference(t *testing.T) {
	tr := New(itemSnapshotter{})
	a := &item{Name: "same"}
	b := &item{Name: "same"}

	ha, err := tr.Track("item", a, Unchanged)
	require.NoError(t, err)
	hb, err := tr.Track("item", b, Unchanged)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
	assert.Equal(t, 2, tr.Len())
}

func TestDetectChangesFlipsOnlyChangedUnchanged(t *testing.T) {
	tr := New(itemSnapshotter{})
	seen := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clean := &item{Name: "clean", Seen: seen}
	dirty := &item{Name: "dirty"}
	added := &item{Name: "added"}
	deleted := &item{Name: "deleted"}

	hClean, _ := tr.Track("item", clean, Unchanged)
	hDirty, _ := tr.Track("item", dirty, Unchanged)
	hAdded, _ := tr.Track("item", added, Added)
	hDeleted, _ := tr.Track("item", deleted, Deleted)

	n := int64(10)
	dirty.Score = &n
	added.Name = "changed"
	deleted.Name = "changed"
	clean.Seen = seen.In(time.FixedZone("CET", 3600))

	flipped, err := tr.DetectChanges()
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	state := func(h Handle) State {
		e, ok := tr.Entry(h)
		require.True(t, ok)
		return e.State
	}
	assert.Equal(t, Unchanged, state(hClean), "same instant in another zone is not a change")
	assert.Equal(t, Modified, state(hDirty))
	assert.Equal(t, Added, state(hAdded))
	assert.Equal(t, Deleted, state(hDeleted))

	e, _ := tr.Entry(hDirty)
	assert.Equal(t, int64(10), e.Current()["Score"])
	assert.Nil(t, e.Original["Score"])
}

func TestMutationIsNotObservedUntilScan(t *testing.T) {
	tr := New(itemSnapshotter{})
	rec := &item{Name: "a"}
	h, _ := tr.Track("item", rec, Unchanged)

	rec.Name = "b"
	e, _ := tr.Entry(h)
	assert.Equal(t, Unchanged, e.State)

	_, err := tr.DetectChanges()
	require.NoError(t, err)
	assert.Equal(t, Modified, e.State)
}

func TestSetStateUnchangedResnapshots(t *testing.T) {
	tr := New(itemSnapshotter{})
	rec := &item{Name: "a"}
	h, _ := tr.Track("item", rec, Unchanged)

	rec.Name = "b"
	_, err := tr.SetState("item", rec, Unchanged)
	require.NoError(t, err)

	flipped, err := tr.DetectChanges()
	require.NoError(t, err)
	assert.Zero(t, flipped)
	e, _ := tr.Entry(h)
	assert.Equal(t, "b", e.Original["Name"])

	untracked := &item{Name: "x"}
	h2, err := tr.SetState("item", untracked, Deleted)
	require.NoError(t, err)
	e2, _ := tr.Entry(h2)
	assert.Equal(t, Deleted, e2.State)
}

func TestAcceptDetachClear(t *testing.T) {
	tr := New(itemSnapshotter{})
	a := &item{Name: "a"}
	b := &item{Name: "b"}
	ha, _ := tr.Track("item", a, Added)
	hb, _ := tr.Track("item", b, Modified)

	a.Name = "a2"
	require.NoError(t, tr.AcceptChanges(ha))
	e, _ := tr.Entry(ha)
	assert.Equal(t, Unchanged, e.State)
	assert.Equal(t, "a2", e.Original["Name"])

	tr.Detach(hb)
	_, ok := tr.Lookup(b)
	assert.False(t, ok)
	assert.ErrorIs(t, tr.AcceptChanges(hb), ErrUnknownHandle)

	tr.Clear()
	assert.Zero(t, tr.Len())
	_, ok = tr.Lookup(a)
	assert.False(t, ok)
}

func TestEntriesKeepTrackingOrder(t *testing.T) {
	tr := New(itemSnapshotter{})
	recs := []*item{{Name: "1"}, {Name: "2"}, {Name: "3"}, {Name: "4"}}
	states := []State{Modified, Added, Deleted, Added}
	for i, r := range recs {
		_, err := tr.Track("item", r, states[i])
		require.NoError(t, err)
	}
	h, _ := tr.Lookup(recs[0])
	tr.Detach(h)

	var names []string
	for _, e := range tr.Entries(Added) {
		names = append(names, e.Record.(*item).Name)
	}
	assert.Equal(t, []string{"2", "4"}, names)
	assert.Len(t, tr.Entries(), 3)
	assert.Len(t, tr.Entries(Added, Deleted), 3)
}

func TestSnapshotErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	tr := New(itemSnapshotter{err: boom})
	_, err := tr.Track("item", &item{}, Added)
	assert.ErrorIs(t, err, boom)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Modified", Modified.String())
	assert.Equal(t, "State(9)", State(9).String())
}
