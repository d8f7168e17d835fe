package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AddFillsIdentity(t *testing.T) {
	s := newStore(t)
	r, err := s.Add(Record{Direction: "send", Name: "a.txt", Size: 5, Status: StatusCompleted})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		_, err := s.Add(Record{Name: name, Status: StatusCompleted, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Name)
	assert.Equal(t, "first", all[2].Name)
	assert.True(t, all[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	limited, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "second", limited[1].Name)
}

func TestStore_Clear(t *testing.T) {
	s := newStore(t)
	_, err := s.Add(Record{Name: "gone", Status: StatusFailed, Error: "declined"})
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	records, err := s.List(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, time.Hour)
	require.NoError(t, err)
	_, err = s.Add(Record{Name: "kept", Status: StatusCompleted})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, time.Hour)
	require.NoError(t, err)
	defer s.Close()
	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].Name)
}
