package protocol

import (
	"fmt"

	"github.com/bitcraps/core/internal/crypto"
)

// PayloadKind enumerates the closed set of proposal payload variants.
// Every Proposal carries exactly one kind; fields irrelevant to a kind
// are left zero.
type PayloadKind uint8

const (
	PayloadJoin PayloadKind = iota + 1
	PayloadLeave
	PayloadPlaceBet
	PayloadCommit
	PayloadReveal
	PayloadRollResolve
	PayloadPhaseAdvance
	PayloadCheckpoint
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadJoin:
		return "join"
	case PayloadLeave:
		return "leave"
	case PayloadPlaceBet:
		return "place_bet"
	case PayloadCommit:
		return "commit"
	case PayloadReveal:
		return "reveal"
	case PayloadRollResolve:
		return "roll_resolve"
	case PayloadPhaseAdvance:
		return "phase_advance"
	case PayloadCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// LeaveReason classifies why a participant left.
type LeaveReason uint8

const (
	LeaveVoluntary LeaveReason = iota
	LeaveByzantine
	LeaveTimeout
	LeaveDrain
)

// Payload is the closed sum of proposal bodies. Exactly one of the
// pointer fields matching Kind is non-nil; RollResolve, PhaseAdvance and
// Checkpoint carry no extra data beyond Kind.
type Payload struct {
	Kind PayloadKind

	Join     *JoinPayload
	Leave    *LeavePayload
	PlaceBet *Bet
	Commit   *CommitPayload
	Reveal   *RevealPayload
}

type JoinPayload struct {
	Peer         PeerId
	InitialBuyIn Tokens
}

type LeavePayload struct {
	Peer   PeerId
	Reason LeaveReason
}

type CommitPayload struct {
	Hash [32]byte
}

// RevealPayload discloses a previously committed nonce. Signature is a
// second, independent Ed25519 signature over just the nonce under
// ContextRandomnessCommit: the proposal as a whole is already signed
// under ContextConsensus, but binding the reveal to its own domain
// keeps the commit-reveal protocol's authentication self-contained, not
// borrowed from the surrounding proposal envelope.
type RevealPayload struct {
	Nonce     [32]byte
	Signature crypto.Signature
}

// SignReveal builds a RevealPayload for nonce, signed under
// ContextRandomnessCommit by ks.
func SignReveal(ks *crypto.Keystore, nonce [32]byte) (RevealPayload, error) {
	sig, err := ks.Sign(crypto.ContextRandomnessCommit, nonce[:])
	if err != nil {
		return RevealPayload{}, err
	}
	return RevealPayload{Nonce: nonce, Signature: sig}, nil
}

// Validate checks that Payload carries exactly the field implied by its
// Kind, a structural (ErrValidation) check performed before a proposal
// is ever signed or ordered.
func (p Payload) Validate() error {
	switch p.Kind {
	case PayloadJoin:
		if p.Join == nil {
			return fmt.Errorf("%w: join payload missing body", ErrValidation)
		}
	case PayloadLeave:
		if p.Leave == nil {
			return fmt.Errorf("%w: leave payload missing body", ErrValidation)
		}
	case PayloadPlaceBet:
		if p.PlaceBet == nil {
			return fmt.Errorf("%w: place_bet payload missing body", ErrValidation)
		}
	case PayloadCommit:
		if p.Commit == nil {
			return fmt.Errorf("%w: commit payload missing body", ErrValidation)
		}
	case PayloadReveal:
		if p.Reveal == nil {
			return fmt.Errorf("%w: reveal payload missing body", ErrValidation)
		}
	case PayloadRollResolve, PayloadPhaseAdvance, PayloadCheckpoint:
		// no extra body
	default:
		return fmt.Errorf("%w: unknown payload kind %d", ErrValidation, p.Kind)
	}
	return nil
}
