package leaderboard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAppendsUntilCapacity(t *testing.T) {
	s := New()
	for i := 0; i < MaxScores; i++ {
		accepted := s.Add(uint16(i), "p", int32(i), "")
		assert.True(t, accepted)
	}
	assert.Equal(t, MaxScores, s.Len())
}

func TestAddSortedStrictlyDescending(t *testing.T) {
	s := New()
	s.Add(1, "a", 50, "")
	s.Add(2, "b", 200, "")
	s.Add(3, "c", 10, "")
	top := s.Top(3)
	require.Len(t, top, 3)
	assert.Contains(t, top[0], "b")
	assert.Contains(t, top[2], "c")
}

func TestAddAtCapacityRejectsLowerScore(t *testing.T) {
	s := New()
	for i := 0; i < MaxScores; i++ {
		s.Add(uint16(i), "p", 100, "")
	}
	accepted := s.Add(999, "low", 1, "")
	assert.False(t, accepted)
	assert.Equal(t, MaxScores, s.Len())
}

func TestAddAtCapacityReplacesLastWhenHigher(t *testing.T) {
	s := New()
	for i := 0; i < MaxScores; i++ {
		s.Add(uint16(i), "p", int32(100-i), "") // descending scores 100..81
	}
	accepted := s.Add(999, "better", 90, "")
	assert.True(t, accepted)
	assert.Equal(t, MaxScores, s.Len())
	top := s.Top(MaxScores)
	assert.Contains(t, top[len(top)-1], " 82") // old last place (81) replaced, list re-sorted
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	s.Add(1, "alice", 500, "2026-01-01")
	s.Add(2, "bob", 300, "2026-01-02")

	dir := t.TempDir()
	path := filepath.Join(dir, "leaderboard.bin")
	require.NoError(t, s.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, s.Top(MaxScores), loaded.Top(MaxScores))
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	s := New()
	err := s.Load(filepath.Join(t.TempDir(), "missing.bin"))
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoadTruncatedFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644))

	s := New()
	err := s.Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
