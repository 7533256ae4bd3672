// Package entropy supplies run seeds and independent random streams.
// A zero seed draws one from crypto/rand so unseeded runs differ.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"sync"
	"time"
)

// StreamTarget offsets the target-picking sequence from the agent streams.
const StreamTarget = 400

// Seed returns configured, or a fresh crypto-random seed when configured is 0.
func Seed(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to the clock.
		slog.Warn("crypto seed unavailable, using clock", "error", err)
		return time.Now().UnixNano()
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}

// Source is a goroutine-safe random stream derived from a seed.
type Source struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSource creates the stream'th random sequence for seed.
func NewSource(seed int64, stream int64) *Source {
	return &Source{rng: mrand.New(mrand.NewSource(seed + stream))}
}

// Float64 returns a random float64 in [0, 1).
func (s *Source) Float64() float64 {
	if s == nil {
		return cryptoRandFloat()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
