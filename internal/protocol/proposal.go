package protocol

import (
	"fmt"

	"github.com/bitcraps/core/internal/crypto"
)

// Proposal is a single signed, ordered unit of consensus input.
type Proposal struct {
	ID        ProposalID
	GameID    GameID
	Round     RoundId
	Proposer  PeerId
	Payload   Payload
	Timestamp uint64
	Signature crypto.Signature
}

// SigningBytes returns the canonical encoding of every field except
// Signature, used both to produce and to verify it. The resulting
// signature covers the canonical encoding of all preceding fields plus
// the KeyContext tag byte mixed in by Sign/VerifySignature.
func (p Proposal) SigningBytes() ([]byte, error) {
	return EncodeCanonical(proposalSignedFields{
		GameID:    p.GameID.Bytes(),
		Round:     uint64(p.Round),
		Proposer:  p.Proposer.Bytes(),
		Payload:   encodePayload(p.Payload),
		Timestamp: p.Timestamp,
	})
}

type proposalSignedFields struct {
	GameID    []byte         `cbor:"1,keyasint"`
	Round     uint64         `cbor:"2,keyasint"`
	Proposer  []byte         `cbor:"3,keyasint"`
	Payload   encodedPayload `cbor:"4,keyasint"`
	Timestamp uint64         `cbor:"5,keyasint"`
}

type encodedPayload struct {
	Kind        PayloadKind `cbor:"1,keyasint"`
	JoinPeer    []byte      `cbor:"2,keyasint,omitempty"`
	JoinBuyIn   uint64      `cbor:"3,keyasint,omitempty"`
	LeavePeer   []byte      `cbor:"4,keyasint,omitempty"`
	LeaveReason LeaveReason `cbor:"5,keyasint,omitempty"`
	BetID       []byte      `cbor:"6,keyasint,omitempty"`
	BetBettor   []byte      `cbor:"7,keyasint,omitempty"`
	BetKind     BetType     `cbor:"8,keyasint,omitempty"`
	BetAmount   uint64      `cbor:"9,keyasint,omitempty"`
	BetRound    uint64      `cbor:"10,keyasint,omitempty"`
	BetPlacedAt uint64      `cbor:"11,keyasint,omitempty"`
	CommitHash  []byte      `cbor:"12,keyasint,omitempty"`
	RevealNonce []byte      `cbor:"13,keyasint,omitempty"`
	RevealSig   []byte      `cbor:"14,keyasint,omitempty"`
}

func encodePayload(p Payload) encodedPayload {
	out := encodedPayload{Kind: p.Kind}
	switch p.Kind {
	case PayloadJoin:
		if p.Join != nil {
			out.JoinPeer = p.Join.Peer.Bytes()
			out.JoinBuyIn = uint64(p.Join.InitialBuyIn)
		}
	case PayloadLeave:
		if p.Leave != nil {
			out.LeavePeer = p.Leave.Peer.Bytes()
			out.LeaveReason = p.Leave.Reason
		}
	case PayloadPlaceBet:
		if p.PlaceBet != nil {
			b := p.PlaceBet
			out.BetID = b.ID[:]
			out.BetBettor = b.Bettor.Bytes()
			out.BetKind = b.Kind
			out.BetAmount = uint64(b.Amount)
			out.BetRound = uint64(b.Round)
			out.BetPlacedAt = b.PlacedAt
		}
	case PayloadCommit:
		if p.Commit != nil {
			out.CommitHash = p.Commit.Hash[:]
		}
	case PayloadReveal:
		if p.Reveal != nil {
			out.RevealNonce = p.Reveal.Nonce[:]
			out.RevealSig = p.Reveal.Signature.Bytes()
		}
	}
	return out
}

// Sign computes and attaches p.Signature, returning the updated value.
func (p Proposal) Sign(ks *crypto.Keystore) (Proposal, error) {
	if err := p.Payload.Validate(); err != nil {
		return Proposal{}, err
	}
	msg, err := p.SigningBytes()
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: encode proposal: %v", ErrValidation, err)
	}
	sig, err := ks.Sign(crypto.ContextConsensus, msg)
	if err != nil {
		return Proposal{}, err
	}
	p.Signature = sig
	p.ID = ProposalID(crypto.Hash(msg))
	return p, nil
}

// VerifySignature reports whether p carries a signature that verifies
// under its proposer's PeerId in ContextConsensus. Every accepted
// proposal must satisfy this.
func (p Proposal) VerifySignature() bool {
	msg, err := p.SigningBytes()
	if err != nil {
		return false
	}
	return crypto.Verify(crypto.ContextConsensus, msg, p.Signature, p.Proposer)
}
