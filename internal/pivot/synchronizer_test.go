package pivot

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	rows      map[string][]string
	loadErr   error
	deleteErr error
	deletes   int
}

func newMemStore() *memStore { return &memStore{rows: map[string][]string{}} }

func (m *memStore) key(parent string, t Target) string { return t.Table + "/" + parent }

func (m *memStore) LoadChildKeys(_ context.Context, parentID string, target Target) ([]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]string(nil), m.rows[m.key(parentID, target)]...), nil
}

func (m *memStore) DeleteRows(_ context.Context, parentID string, target Target, keys []string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes++
	drop := toSet(keys)
	k := m.key(parentID, target)
	kept := m.rows[k][:0]
	for _, existing := range m.rows[k] {
		if _, ok := drop[existing]; !ok {
			kept = append(kept, existing)
		}
	}
	m.rows[k] = kept
	return nil
}

func (m *memStore) insert(parentID string, target Target, keys []string) {
	k := m.key(parentID, target)
	m.rows[k] = append(m.rows[k], keys...)
}

var tagsTarget = Target{Table: "product_tags", ParentColumn: "product_id", KeyColumn: "tag_id"}

func TestSynchronizeDeletesObsoleteAndReportsNew(t *testing.T) {
	store := newMemStore()
	store.insert("p1", tagsTarget, []string{"t1", "t2", "t3"})
	store.insert("p2", tagsTarget, []string{"t1"})
	sync := Synchronizer{Store: store}

	changes, err := sync.Synchronize(context.Background(), "p1", tagsTarget, []string{"t2", "t4"})
	require.NoError(t, err)
	sort.Strings(changes.Removable)
	require.Equal(t, []string{"t1", "t3"}, changes.Removable)
	require.Equal(t, []string{"t4"}, changes.NewEntries)
	require.Equal(t, []string{"t2"}, store.rows["product_tags/p1"])
	require.Equal(t, []string{"t1"}, store.rows["product_tags/p2"], "other parents are untouched")
}

func TestSynchronizeIsIdempotentOnceCallerInserts(t *testing.T) {
	store := newMemStore()
	store.insert("p1", tagsTarget, []string{"a", "b"})
	sync := Synchronizer{Store: store}
	submitted := []string{"b", "c"}

	first, err := sync.Synchronize(context.Background(), "p1", tagsTarget, submitted)
	require.NoError(t, err)
	require.False(t, first.Empty())
	store.insert("p1", tagsTarget, first.NewEntries)

	second, err := sync.Synchronize(context.Background(), "p1", tagsTarget, submitted)
	require.NoError(t, err)
	require.Empty(t, second.Removable)
	require.Empty(t, second.NewEntries)
	require.Equal(t, 1, store.deletes, "no delete issued when nothing is removable")
}

func TestSynchronizePropagatesLoadError(t *testing.T) {
	boom := errors.New("connection reset")
	store := newMemStore()
	store.loadErr = boom
	_, err := Synchronizer{Store: store}.Synchronize(context.Background(), "p1", tagsTarget, []string{"x"})
	require.ErrorIs(t, err, boom)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "load", se.Op)
	require.Equal(t, "product_tags", se.Table)
}

func TestSynchronizePropagatesDeleteError(t *testing.T) {
	boom := errors.New("deadlock detected")
	store := newMemStore()
	store.insert("p1", tagsTarget, []string{"old"})
	store.deleteErr = boom
	_, err := Synchronizer{Store: store}.Synchronize(context.Background(), "p1", tagsTarget, nil)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "delete", se.Op)
	require.ErrorIs(t, err, boom)
}

func TestSynchronizeRejectsIncompleteTarget(t *testing.T) {
	_, err := Synchronizer{Store: newMemStore()}.Synchronize(context.Background(), "p1", Target{Table: "x"}, nil)
	require.Error(t, err)

	_, err = Synchronizer{}.Synchronize(context.Background(), "p1", tagsTarget, nil)
	require.Error(t, err)
}
