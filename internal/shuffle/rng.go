package shuffle

import (
	"crypto/sha256"
	"encoding/binary"
)

// hashRNG is a deterministic byte stream derived from sha256(seed || counter).
// It is replay-safe and does not depend on platform RNGs.
type hashRNG struct {
	seed    [32]byte
	counter uint64
	buf     [32]byte
	bufPos  int
}

func newHashRNG(seed [32]byte) *hashRNG {
	return &hashRNG{seed: seed, bufPos: len([32]byte{})}
}

func (r *hashRNG) Read(p []byte) {
	for len(p) > 0 {
		if r.bufPos >= len(r.buf) {
			r.refill()
		}
		n := copy(p, r.buf[r.bufPos:])
		r.bufPos += n
		p = p[n:]
	}
}

func (r *hashRNG) refill() {
	var in [32 + 8]byte
	copy(in[:32], r.seed[:])
	binary.LittleEndian.PutUint64(in[32:], r.counter)
	r.counter++
	r.buf = sha256.Sum256(in[:])
	r.bufPos = 0
}

// Intn draws uniformly from [0, n) by rejection sampling over 32-bit words,
// so there is no modulo bias. n must be in (0, 2^32).
func (r *hashRNG) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	bound := uint64(n)
	// Largest multiple of n that fits in 2^32.
	limit := (uint64(1) << 32) - (uint64(1)<<32)%bound
	var w [4]byte
	for {
		r.Read(w[:])
		v := uint64(binary.BigEndian.Uint32(w[:]))
		if v < limit {
			return int(v % bound)
		}
	}
}
