package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Hash computes SHA-256 over msg. The choice of hash function is fixed
// repo-wide.
func Hash(msg []byte) [32]byte {
	return sha256.Sum256(msg)
}

func bytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// CommitmentHash computes H("commit" || peer || round || nonce), the
// binding commitment a participant publishes before revealing its nonce.
func CommitmentHash(peer PeerId, round uint64, nonce [32]byte) [32]byte {
	buf := make([]byte, 0, 6+32+8+32)
	buf = append(buf, "commit"...)
	buf = append(buf, peer[:]...)
	buf = append(buf, u64le(round)...)
	buf = append(buf, nonce[:]...)
	return sha256.Sum256(buf)
}

// EntropyHash computes H("entropy" || round || concat(sort(reveals))),
// the per-round combined seed every participant derives identically
// once all reveals are in.
func EntropyHash(round uint64, nonces [][32]byte) [32]byte {
	sorted := make([][32]byte, len(nonces))
	copy(sorted, nonces)
	sort.Slice(sorted, func(i, j int) bool {
		for k := 0; k < 32; k++ {
			if sorted[i][k] != sorted[j][k] {
				return sorted[i][k] < sorted[j][k]
			}
		}
		return false
	})

	buf := make([]byte, 0, 7+8+len(sorted)*32)
	buf = append(buf, "entropy"...)
	buf = append(buf, u64le(round)...)
	for _, n := range sorted {
		buf = append(buf, n[:]...)
	}
	return sha256.Sum256(buf)
}

func u64le(x uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(x >> (8 * i))
	}
	return b
}
