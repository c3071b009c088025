package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreTurnAndHistory(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.StoreTurn("sess-1", 1, "user", "hello"))
	require.NoError(t, s.StoreTurn("sess-1", 2, "assistant", "hi there"))
	require.NoError(t, s.StoreTurn("sess-2", 1, "user", "other session"))

	history, err := s.History("sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.False(t, history[0].CreatedAt.IsZero())
}

func TestStoreTurnIdempotent(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.StoreTurn("sess-1", 1, "user", "hello"))
	require.NoError(t, s.StoreTurn("sess-1", 1, "user", "replayed"))

	history, err := s.History("sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}

func TestHistoryLimitKeepsMostRecent(t *testing.T) {
	s := testStore(t)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.StoreTurn("sess-1", i, "user", "turn"))
	}

	history, err := s.History("sess-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].TurnNumber)
	assert.Equal(t, 5, history[1].TurnNumber)
}

func TestSessions(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.StoreTurn("a", 1, "user", "x"))
	require.NoError(t, s.StoreTurn("b", 1, "user", "y"))

	sessions, err := s.Sessions(0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Contains(t, sessions, "a")
	assert.Contains(t, sessions, "b")
}

func TestSessionsLimit(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.StoreTurn("a", 1, "user", "x"))
	require.NoError(t, s.StoreTurn("b", 1, "user", "y"))
	require.NoError(t, s.StoreTurn("c", 1, "user", "z"))

	sessions, err := s.Sessions(2)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}
