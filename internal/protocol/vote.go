package protocol

import (
	"fmt"

	"github.com/bitcraps/core/internal/crypto"
)

// VotePhase distinguishes the two PBFT-style quorum rounds.
type VotePhase uint8

const (
	VotePrepare VotePhase = iota + 1
	VoteCommit
)

// Vote is a signed ballot over a candidate block. Approve is always true
// for Prepare/Commit votes in the honest path; it exists so that a
// dishonest vote can still be represented and detected as equivocation
// rather than silently dropped.
type Vote struct {
	Voter      PeerId
	ProposalID BlockID
	Phase      VotePhase
	Approve    bool
	Round      RoundId
	Signature  crypto.Signature
}

func (v Vote) signingBytes() ([]byte, error) {
	return EncodeCanonical(struct {
		Voter      []byte    `cbor:"1,keyasint"`
		ProposalID []byte    `cbor:"2,keyasint"`
		Phase      VotePhase `cbor:"3,keyasint"`
		Approve    bool      `cbor:"4,keyasint"`
		Round      uint64    `cbor:"5,keyasint"`
	}{
		Voter:      v.Voter.Bytes(),
		ProposalID: v.ProposalID[:],
		Phase:      v.Phase,
		Approve:    v.Approve,
		Round:      uint64(v.Round),
	})
}

// Sign attaches v.Signature for the given identity.
func (v Vote) Sign(ks *crypto.Keystore) (Vote, error) {
	msg, err := v.signingBytes()
	if err != nil {
		return Vote{}, fmt.Errorf("%w: encode vote: %v", ErrValidation, err)
	}
	sig, err := ks.Sign(crypto.ContextConsensus, msg)
	if err != nil {
		return Vote{}, err
	}
	v.Voter = ks.PeerID()
	v.Signature = sig
	return v, nil
}

// VerifySignature reports whether v's signature verifies under v.Voter.
func (v Vote) VerifySignature() bool {
	msg, err := v.signingBytes()
	if err != nil {
		return false
	}
	return crypto.Verify(crypto.ContextConsensus, msg, v.Signature, v.Voter)
}

// ViewChange is a signed ballot to abandon the current view for round
// because its leader stalled or proposed an invalid block. Round+View+
// Voter uniquely identifies the ballot; Signature binds it to Voter the
// same way a Vote is bound to its caster.
type ViewChange struct {
	Round     RoundId
	View      uint64
	Voter     PeerId
	Signature crypto.Signature
}

func (vc ViewChange) signingBytes() ([]byte, error) {
	return EncodeCanonical(struct {
		Round uint64 `cbor:"1,keyasint"`
		View  uint64 `cbor:"2,keyasint"`
		Voter []byte `cbor:"3,keyasint"`
	}{
		Round: uint64(vc.Round),
		View:  vc.View,
		Voter: vc.Voter.Bytes(),
	})
}

// Sign attaches vc.Signature for the given identity.
func (vc ViewChange) Sign(ks *crypto.Keystore) (ViewChange, error) {
	vc.Voter = ks.PeerID()
	msg, err := vc.signingBytes()
	if err != nil {
		return ViewChange{}, fmt.Errorf("%w: encode view change: %v", ErrValidation, err)
	}
	sig, err := ks.Sign(crypto.ContextConsensus, msg)
	if err != nil {
		return ViewChange{}, err
	}
	vc.Signature = sig
	return vc, nil
}

// VerifySignature reports whether vc's signature verifies under
// vc.Voter.
func (vc ViewChange) VerifySignature() bool {
	msg, err := vc.signingBytes()
	if err != nil {
		return false
	}
	return crypto.Verify(crypto.ContextConsensus, msg, vc.Signature, vc.Voter)
}

// VoteKey identifies the (voter, block, phase) slot a vote occupies for
// idempotence and equivocation detection: two votes with the same key
// but different content are equivocation.
type VoteKey struct {
	Voter PeerId
	Block BlockID
	Phase VotePhase
}

func (v Vote) Key() VoteKey {
	return VoteKey{Voter: v.Voter, Block: v.ProposalID, Phase: v.Phase}
}
