package crypto

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes reads n bytes from the operating-system CSPRNG. It fails
// only if the OS entropy source is unavailable, in which case the
// caller is expected to abort the enclosing protocol step, never
// invent randomness.
func RandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("crypto: negative length %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: OS entropy unavailable: %w", err)
	}
	return b, nil
}

// CommitmentNonce is shorthand for RandomBytes(32), used by the
// commit-reveal protocol to generate each participant's secret
// per-round nonce.
func CommitmentNonce() ([32]byte, error) {
	var n [32]byte
	b, err := RandomBytes(32)
	if err != nil {
		return n, err
	}
	copy(n[:], b)
	return n, nil
}
