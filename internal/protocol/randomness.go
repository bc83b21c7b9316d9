package protocol

import "github.com/bitcraps/core/internal/crypto"

// Commitment is a signed binding to a secret 32-byte nonce for a round.
type Commitment struct {
	Peer  PeerId
	Round RoundId
	Hash  [32]byte
}

// Reveal discloses a previously committed nonce. It is accepted into a
// round's entropy pool only if its signature verifies,
// a matching Commitment exists for the same peer and round, and
// CommitmentHash(peer, round, nonce) == that commitment's hash.
type Reveal struct {
	Peer      PeerId
	Round     RoundId
	Nonce     [32]byte
	Signature crypto.Signature
}
