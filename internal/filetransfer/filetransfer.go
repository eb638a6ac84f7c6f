// Package filetransfer implements the bulk file-transfer flow (§4.10):
// a TCP control plane for DOWNLOAD_REQ/RSP/ERR (supplemented with
// REQ_LISTFILES/RSP_LISTFILES per original_source's Server_Project/server.cpp)
// and a UDP SR data plane reusing internal/transport on a dedicated
// ephemeral socket per session, so bulk traffic never contends with the
// game endpoint's window.
package filetransfer

import (
	"io"
	"os"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/dpasteros/asteroids-net/internal/idgen"
	"github.com/dpasteros/asteroids-net/internal/wire"
)

// Limits from §4.10.
const (
	MaxRetries   = 10
	SessionLimit = 5 * time.Minute
)

// ErrFileMissing corresponds to §7's FileMissing error kind.
var ErrFileMissing = errors.New("filetransfer: file not found")

// ErrTransferFailed corresponds to §7's TransferFailed error kind.
var ErrTransferFailed = errors.New("filetransfer: transfer failed")

// Session tracks one in-flight download (§3: "File transfer session").
type Session struct {
	ID            idgen.SessionID
	FilePath      string
	FileSize      int64
	TotalPackets  uint32
	EphemeralPort int

	started time.Time
	acked   map[uint32]bool
	retries map[uint32]int
}

// NewSession creates a session for filePath, stat'ing it to compute the
// chunk count (§4.10: "ceil(file_size / MAX_PAYLOAD) data PDUs").
func NewSession(filePath string, ephemeralPort int) (*Session, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, errors.Wrap(ErrFileMissing, err.Error())
	}
	size := info.Size()
	total := uint32((size + int64(wire.MaxPayload) - 1) / int64(wire.MaxPayload))
	return &Session{
		ID:            idgen.NewSessionID(),
		FilePath:      filePath,
		FileSize:      size,
		TotalPackets:  total,
		EphemeralPort: ephemeralPort,
		started:       time.Now(),
		acked:         make(map[uint32]bool),
		retries:       make(map[uint32]int),
	}, nil
}

// Done reports whether every chunk has been acknowledged (§4.10: "Session
// succeeds when send_base == total_packets").
func (s *Session) Done() bool {
	return len(s.acked) >= int(s.TotalPackets)
}

// Expired reports whether the session has exceeded the absolute wall-time
// bound regardless of retry counts.
func (s *Session) Expired() bool {
	return time.Since(s.started) > SessionLimit
}

// MarkAcked records chunk seq as delivered.
func (s *Session) MarkAcked(seq uint32) {
	s.acked[seq] = true
}

// isAcked reports whether chunk seq has been acknowledged.
func (s *Session) isAcked(seq uint32) bool {
	return s.acked[seq]
}

// RecordRetry increments seq's retry counter and reports whether it has
// now exceeded MaxRetries (§4.10: "fails after per-packet retries exceed
// MAX_RETRIES").
func (s *Session) RecordRetry(seq uint32) bool {
	s.retries[seq]++
	return s.retries[seq] > MaxRetries
}

// ReadChunk reads the chunk-th MAX_PAYLOAD-sized slice of the file at
// path, returning fewer bytes for the final, possibly-partial chunk.
func ReadChunk(path string, chunk uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	offset := int64(chunk) * int64(wire.MaxPayload)
	buf := make([]byte, wire.MaxPayload)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// PreallocateOutput sizes the destination file to fileSize ahead of
// writing any chunk (§9: the original seeks to file_size-1 and writes a
// zero byte; os.File.Truncate is the direct Go equivalent).
func PreallocateOutput(path string, fileSize int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(fileSize); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteChunk writes data at the offset implied by seq (§6: "chunk_index *
// MAX_PAYLOAD offset implied by sequence").
func WriteChunk(f *os.File, seq uint32, data []byte) error {
	_, err := f.WriteAt(data, int64(seq)*int64(wire.MaxPayload))
	return err
}

// RateLimiter throttles the TCP control listener per source IP, grounded
// in cppla-moto/controller/server.go's ipCache WAF pattern: an expiring
// cache keyed by IP, incremented per request, checked against a burst
// threshold.
type RateLimiter struct {
	hits      *cache.Cache
	threshold int
}

// NewRateLimiter allows up to threshold accepts per window from one IP.
func NewRateLimiter(threshold int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:      cache.New(window, 2*window),
		threshold: threshold,
	}
}

// Allow increments ip's hit counter and reports whether it is still under
// the threshold.
func (r *RateLimiter) Allow(ip string) bool {
	count := 1
	if v, ok := r.hits.Get(ip); ok {
		count = v.(int) + 1
	}
	r.hits.Set(ip, count, cache.DefaultExpiration)
	return count <= r.threshold
}
