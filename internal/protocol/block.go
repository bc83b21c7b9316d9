package protocol

import "github.com/bitcraps/core/internal/crypto"

// QuorumCertificate is the set of signed commit votes proving a block's
// finalization.
type QuorumCertificate struct {
	CommitVotes []Vote
}

// Block is a finalized (or candidate) ordering of proposals for one
// round.
type Block struct {
	ID                BlockID
	Round             RoundId
	OrderedProposals  []Proposal
	PrevHash          BlockID
	StateHash         [32]byte
	QuorumCertificate QuorumCertificate
	Leader            PeerId
}

// SigningBytes returns the canonical encoding of the fields a leader
// signs when proposing a candidate block: round, ordered proposal IDs,
// PrevHash and Leader. ID, StateHash and the QC (which only exists once
// the block has already been proposed) are not covered.
func (b Block) SigningBytes() ([]byte, error) {
	ids := make([][]byte, len(b.OrderedProposals))
	for i, p := range b.OrderedProposals {
		ids[i] = append([]byte(nil), p.ID[:]...)
	}
	return EncodeCanonical(struct {
		Round    uint64   `cbor:"1,keyasint"`
		Ordered  [][]byte `cbor:"2,keyasint"`
		PrevHash []byte   `cbor:"3,keyasint"`
		Leader   []byte   `cbor:"4,keyasint"`
	}{
		Round:    uint64(b.Round),
		Ordered:  ids,
		PrevHash: b.PrevHash[:],
		Leader:   b.Leader.Bytes(),
	})
}

// ComputeID hashes the block's signing bytes into its ID.
func (b Block) ComputeID() (BlockID, error) {
	msg, err := b.SigningBytes()
	if err != nil {
		return BlockID{}, err
	}
	return BlockID(crypto.Hash(msg)), nil
}
