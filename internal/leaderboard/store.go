// Package leaderboard implements the top-N score store (§4.8): a
// fixed-size, strictly-descending-by-score array with raw binary
// persistence. Grounded in the teacher's mutex-guarded shared state
// pattern (Server.mu around Players) applied to a single protected
// resource instead of a map, per §5's "Leaderboard (all ops under its own
// mutex)".
package leaderboard

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync"
)

// MaxScores bounds the leaderboard array (§3).
const MaxScores = 20

// Entry is one leaderboard record: id, an 8-byte name field, the score,
// and a 20-byte timestamp field, matching §3's layout.
type Entry struct {
	ID        uint16
	Name      [8]byte
	Score     int32
	Timestamp [20]byte
}

const entrySize = 2 + 8 + 4 + 20

// Store is the mutex-guarded leaderboard (§5: "Leaderboard (all ops under
// its own mutex)").
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty leaderboard.
func New() *Store {
	return &Store{}
}

// Add inserts or replaces an entry (§4.8). If fewer than MaxScores entries
// exist, the new entry is appended; otherwise it replaces the last entry
// only if its score beats the current last place. Either path re-sorts
// strictly descending by score. Returns whether the entry was accepted.
func (s *Store) Add(id uint16, name string, score int32, timestamp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{ID: id, Score: score}
	copy(e.Name[:], name)
	copy(e.Timestamp[:], timestamp)

	accepted := false
	switch {
	case len(s.entries) < MaxScores:
		s.entries = append(s.entries, e)
		accepted = true
	case score > s.entries[len(s.entries)-1].Score:
		s.entries[len(s.entries)-1] = e
		accepted = true
	}
	if accepted {
		sort.SliceStable(s.entries, func(i, j int) bool {
			return s.entries[i].Score > s.entries[j].Score
		})
	}
	return accepted
}

// Top returns formatted strings for up to n entries, for presentation
// (§4.8: "top(n) -> list<string>").
func (s *Store) Top(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		e := s.entries[i]
		out[i] = fmt.Sprintf("%2d. %-8s %d", i+1, nullTerminated(e.Name[:]), e.Score)
	}
	return out
}

// Len reports the current entry count, used by invariant checks and
// metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Save writes the current leaderboard as a raw binary dump (§4.8, §6:
// "Persisted state... atomically overwrite on save"). Writes to a temp
// file in the same directory then renames over path, so a crash mid-write
// never corrupts the persisted file.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	buf := make([]byte, 0, len(s.entries)*entrySize)
	for _, e := range s.entries {
		buf = append(buf, encodeEntry(e)...)
	}
	s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("leaderboard: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("leaderboard: rename into place: %w", err)
	}
	return nil
}

// Load reads a previously-saved leaderboard. A missing file, or one whose
// length is not a whole number of entries (truncated mid-entry, or shorter
// than one entry), leaves the leaderboard empty and is not an error
// (§4.8: "Truncated or short files leave the leaderboard empty and are
// not fatal").
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.entries = nil
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("leaderboard: read file: %w", err)
	}
	if len(data)%entrySize != 0 {
		s.mu.Lock()
		s.entries = nil
		s.mu.Unlock()
		return nil
	}

	count := len(data) / entrySize
	if count > MaxScores {
		count = MaxScores
	}
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		chunk := data[i*entrySize : (i+1)*entrySize]
		entries = append(entries, decodeEntry(chunk))
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, entrySize)
	off := 0
	binary.LittleEndian.PutUint16(buf[off:], e.ID)
	off += 2
	copy(buf[off:off+8], e.Name[:])
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(e.Score))
	off += 4
	copy(buf[off:off+20], e.Timestamp[:])
	return buf
}

func decodeEntry(b []byte) Entry {
	var e Entry
	off := 0
	e.ID = binary.LittleEndian.Uint16(b[off:])
	off += 2
	copy(e.Name[:], b[off:off+8])
	off += 8
	e.Score = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	copy(e.Timestamp[:], b[off:off+20])
	return e
}
