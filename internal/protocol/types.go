// Package protocol defines the wire-level data model shared by the
// consensus, randomness, and game-state-machine packages: identities,
// rounds, proposals, votes, blocks and their canonical binary encoding.
package protocol

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bitcraps/core/internal/crypto"
)

// PeerId re-exports crypto.PeerId: every protocol message is attributed
// to an Ed25519 public key.
type PeerId = crypto.PeerId

// GameID is a 128-bit game identifier.
type GameID uuid.UUID

// NewGameID allocates a fresh random game identifier.
func NewGameID() GameID {
	return GameID(uuid.New())
}

func (g GameID) String() string {
	return uuid.UUID(g).String()
}

func (g GameID) Bytes() []byte {
	b := uuid.UUID(g)
	return b[:]
}

// RoundId is monotonic per game and never reused after a view change.
type RoundId uint64

// ProposalID is the hash of a proposal's canonical body.
type ProposalID [32]byte

func (p ProposalID) String() string { return fmt.Sprintf("%x", p[:]) }

// BlockID is the hash of a block's canonical body.
type BlockID [32]byte

func (b BlockID) String() string { return fmt.Sprintf("%x", b[:]) }
