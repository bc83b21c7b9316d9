// Package randomness implements the commit-reveal protocol a round's
// dice outcome is derived from: every participant commits to a secret
// nonce, then reveals it once all commitments are in, and the round's
// entropy is the hash of every valid reveal. No single participant, not
// even the shooter, controls the outcome because every commitment is
// locked in before any nonce is known.
package randomness

import (
	"fmt"

	"github.com/bitcraps/core/internal/crypto"
	"github.com/bitcraps/core/internal/protocol"
)

// QuorumSize returns the minimum number of reveals required to derive
// entropy for n participants: f+1 where f=(n-1)/3, the same Byzantine
// fault bound the consensus engine uses, so randomness cannot be
// finalized with fewer honest contributions than consensus itself
// would require to finalize a block.
func QuorumSize(participants int) int {
	f := (participants - 1) / 3
	return f + 1
}

// Round accumulates the commitments and reveals for one dice roll.
type Round struct {
	RoundID      protocol.RoundId
	Participants int

	commitments map[protocol.PeerId]protocol.Commitment
	reveals     map[protocol.PeerId]protocol.Reveal
}

// NewRound starts a fresh commit-reveal round for the given participant
// count.
func NewRound(round protocol.RoundId, participants int) *Round {
	return &Round{
		RoundID:      round,
		Participants: participants,
		commitments:  make(map[protocol.PeerId]protocol.Commitment),
		reveals:      make(map[protocol.PeerId]protocol.Reveal),
	}
}

// AddCommitment records peer's commitment. A second commitment from the
// same peer with a different hash is equivocation and rejected; an
// identical resubmission is accepted idempotently.
func (r *Round) AddCommitment(c protocol.Commitment) error {
	if c.Round != r.RoundID {
		return fmt.Errorf("%w: commitment round %d does not match round %d", protocol.ErrValidation, c.Round, r.RoundID)
	}
	if existing, ok := r.commitments[c.Peer]; ok {
		if existing.Hash != c.Hash {
			return fmt.Errorf("%w: peer %s equivocated on commitment", protocol.ErrProtocol, c.Peer)
		}
		return nil
	}
	r.commitments[c.Peer] = c
	return nil
}

// CommitCount reports how many distinct peers have committed.
func (r *Round) CommitCount() int { return len(r.commitments) }

// AddReveal verifies and records a reveal. It fails if the signature
// does not verify under pub, no matching commitment was ever recorded
// for this peer and round, or the revealed nonce does not hash back to
// the committed value.
func (r *Round) AddReveal(reveal protocol.Reveal, pub protocol.PeerId) error {
	if reveal.Round != r.RoundID {
		return fmt.Errorf("%w: reveal round %d does not match round %d", protocol.ErrValidation, reveal.Round, r.RoundID)
	}
	if !crypto.Verify(crypto.ContextRandomnessCommit, reveal.Nonce[:], reveal.Signature, pub) {
		return fmt.Errorf("%w: reveal signature invalid for peer %s", protocol.ErrValidation, reveal.Peer)
	}
	commitment, ok := r.commitments[reveal.Peer]
	if !ok {
		return fmt.Errorf("%w: no commitment on file for peer %s", protocol.ErrProtocol, reveal.Peer)
	}
	if crypto.CommitmentHash(reveal.Peer, uint64(r.RoundID), reveal.Nonce) != commitment.Hash {
		return fmt.Errorf("%w: revealed nonce does not match commitment for peer %s", protocol.ErrProtocol, reveal.Peer)
	}
	r.reveals[reveal.Peer] = reveal
	return nil
}

// RevealCount reports how many distinct peers have revealed.
func (r *Round) RevealCount() int { return len(r.reveals) }

// Ready reports whether enough reveals are in to derive entropy.
func (r *Round) Ready() bool {
	return r.RevealCount() >= QuorumSize(r.Participants)
}

// MissingReveals returns the peers who committed but have not yet
// revealed, the set a round abort charges with a missed reveal.
func (r *Round) MissingReveals() []protocol.PeerId {
	var missing []protocol.PeerId
	for peer := range r.commitments {
		if _, ok := r.reveals[peer]; !ok {
			missing = append(missing, peer)
		}
	}
	return missing
}

// DeriveEntropy hashes every recorded reveal's nonce into the round's
// entropy. It fails if quorum has not been reached.
func (r *Round) DeriveEntropy() ([32]byte, error) {
	if !r.Ready() {
		return [32]byte{}, fmt.Errorf("%w: round %d has %d/%d reveals, below quorum %d",
			protocol.ErrProtocol, r.RoundID, r.RevealCount(), r.Participants, QuorumSize(r.Participants))
	}
	nonces := make([][32]byte, 0, len(r.reveals))
	for _, rv := range r.reveals {
		nonces = append(nonces, rv.Nonce)
	}
	return crypto.EntropyHash(uint64(r.RoundID), nonces), nil
}
