package protocol

import (
	"fmt"
	"math/bits"
)

// Tokens is the unsigned 64-bit atomic unit count backing every balance,
// bet and payout. 1 "CRAP" display unit equals TokensPerCrap atomic
// units, fixed at build time.
type Tokens uint64

// TokensPerCrap is the atomic-unit conversion factor used by Display.
const TokensPerCrap Tokens = 1_000_000

// Display renders t using the fixed conversion factor and a currency
// marker, e.g. "1.500000 CRAP".
func (t Tokens) Display() string {
	whole := uint64(t) / uint64(TokensPerCrap)
	frac := uint64(t) % uint64(TokensPerCrap)
	return fmt.Sprintf("%d.%06d CRAP", whole, frac)
}

// CheckedAdd returns t+u, failing on overflow. Consensus and ledger paths
// must use this rather than the saturating counterpart below.
func (t Tokens) CheckedAdd(u Tokens) (Tokens, error) {
	sum := t + u
	if sum < t {
		return 0, fmt.Errorf("%w: token overflow adding %d to %d", ErrLedger, u, t)
	}
	return sum, nil
}

// CheckedSub returns t-u, failing if u > t.
func (t Tokens) CheckedSub(u Tokens) (Tokens, error) {
	if u > t {
		return 0, fmt.Errorf("%w: insufficient funds: have=%d need=%d", ErrLedger, t, u)
	}
	return t - u, nil
}

// CheckedMulRatio computes floor(t * num / den), overflow-checked via a
// 128-bit intermediate product (math/bits.Mul64 + Div64) so a large
// stake at a steep payout ratio never wraps silently.
func (t Tokens) CheckedMulRatio(num, den uint64) (Tokens, error) {
	if den == 0 {
		return 0, fmt.Errorf("%w: payout ratio denominator is zero", ErrLedger)
	}
	hi, lo := bits.Mul64(uint64(t), num)
	if hi >= den {
		return 0, fmt.Errorf("%w: token overflow multiplying %d by %d/%d", ErrLedger, t, num, den)
	}
	q, _ := bits.Div64(hi, lo, den)
	return Tokens(q), nil
}

// SaturatingAdd returns t+u, clamped to the maximum representable value
// on overflow. Display/telemetry paths only; consensus and ledger paths
// must use CheckedAdd.
func (t Tokens) SaturatingAdd(u Tokens) Tokens {
	sum := t + u
	if sum < t {
		return Tokens(^uint64(0))
	}
	return sum
}

// SaturatingSub returns t-u, clamped to zero if u > t.
func (t Tokens) SaturatingSub(u Tokens) Tokens {
	if u > t {
		return 0
	}
	return t - u
}
