package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/bitcraps/core/internal/crypto"
)

// CheckpointMagic is the 4-byte file magic identifying a checkpoint
// file.
var CheckpointMagic = [4]byte{'B', 'C', 'R', 'P'}

// CheckpointVersion is the current on-disk checkpoint format version.
const CheckpointVersion uint16 = 1

// SessionSnapshot is the serialized subset of Session persisted in a
// checkpoint: participants, balances, active bets, and phase.
type SessionSnapshot struct {
	Participants [][]byte       `cbor:"1,keyasint"`
	Balances     []balanceEntry `cbor:"2,keyasint"`
	ActiveBets   []Bet          `cbor:"3,keyasint"`
	Phase        Phase          `cbor:"4,keyasint"`
	Round        uint64         `cbor:"5,keyasint"`
	Shooter      []byte         `cbor:"6,keyasint"`
}

type balanceEntry struct {
	Peer    []byte `cbor:"1,keyasint"`
	Balance uint64 `cbor:"2,keyasint"`
}

// SnapshotSession captures s into a SessionSnapshot with deterministic
// ordering (participants and balances sorted by peer bytes), so two
// honest peers produce byte-identical checkpoints for the same state.
func SnapshotSession(s *Session) SessionSnapshot {
	snap := SessionSnapshot{
		ActiveBets: append([]Bet(nil), s.ActiveBets...),
		Phase:      s.Phase,
		Round:      uint64(s.Round),
		Shooter:    s.Shooter.Bytes(),
	}
	for p := range s.Participants {
		snap.Participants = append(snap.Participants, append([]byte(nil), p.Bytes()...))
	}
	sortByteSlices(snap.Participants)
	for p, bal := range s.Balances {
		snap.Balances = append(snap.Balances, balanceEntry{Peer: append([]byte(nil), p.Bytes()...), Balance: uint64(bal)})
	}
	sortBalanceEntries(snap.Balances)
	return snap
}

func sortByteSlices(in [][]byte) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && lessBytes(in[j], in[j-1]); j-- {
			in[j], in[j-1] = in[j-1], in[j]
		}
	}
}

func sortBalanceEntries(in []balanceEntry) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && lessBytes(in[j].Peer, in[j-1].Peer); j-- {
			in[j], in[j-1] = in[j-1], in[j]
		}
	}
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CheckpointBody is everything in a checkpoint file except the trailing
// signature.
type CheckpointBody struct {
	GameID    GameID
	Round     RoundId
	StateHash [32]byte
	Snapshot  SessionSnapshot
}

func (c CheckpointBody) encode() ([]byte, error) {
	game := c.GameID.Bytes()
	buf := make([]byte, 0, 4+2+16+8+32)
	buf = append(buf, CheckpointMagic[:]...)
	var verBuf [2]byte
	binary.LittleEndian.PutUint16(verBuf[:], CheckpointVersion)
	buf = append(buf, verBuf[:]...)
	buf = append(buf, game...)
	var roundBuf [8]byte
	binary.LittleEndian.PutUint64(roundBuf[:], uint64(c.Round))
	buf = append(buf, roundBuf[:]...)
	buf = append(buf, c.StateHash[:]...)
	snapBytes, err := EncodeCanonical(c.Snapshot)
	if err != nil {
		return nil, err
	}
	buf = append(buf, snapBytes...)
	return buf, nil
}

// EncodeCheckpointFile produces the full checkpoint file contents,
// trailer-signed by ks.
func EncodeCheckpointFile(body CheckpointBody, ks *crypto.Keystore) ([]byte, error) {
	encoded, err := body.encode()
	if err != nil {
		return nil, err
	}
	sig, err := ks.Sign(crypto.ContextGameState, encoded)
	if err != nil {
		return nil, err
	}
	return append(encoded, sig[:]...), nil
}

// DecodeCheckpointFile parses and verifies a checkpoint file produced by
// EncodeCheckpointFile, returning the decoded body once its trailing
// signature verifies under signer.
func DecodeCheckpointFile(raw []byte, signer PeerId) (CheckpointBody, error) {
	const sigLen = 64
	if len(raw) < 4+2+16+8+32+sigLen {
		return CheckpointBody{}, fmt.Errorf("%w: checkpoint file too short", ErrValidation)
	}
	var magic [4]byte
	copy(magic[:], raw[0:4])
	if magic != CheckpointMagic {
		return CheckpointBody{}, fmt.Errorf("%w: bad checkpoint magic", ErrValidation)
	}
	version := binary.LittleEndian.Uint16(raw[4:6])
	if version != CheckpointVersion {
		return CheckpointBody{}, fmt.Errorf("%w: unsupported checkpoint version %d", ErrValidation, version)
	}
	gameBytes := raw[6:22]
	var gameID GameID
	copy(gameID[:], gameBytes)
	round := RoundId(binary.LittleEndian.Uint64(raw[22:30]))
	var stateHash [32]byte
	copy(stateHash[:], raw[30:62])

	body := raw[:len(raw)-sigLen]
	sigBytes := raw[len(raw)-sigLen:]
	var sig crypto.Signature
	copy(sig[:], sigBytes)
	if !crypto.Verify(crypto.ContextGameState, body, sig, signer) {
		return CheckpointBody{}, fmt.Errorf("%w: checkpoint signature invalid", ErrValidation)
	}

	var snap SessionSnapshot
	if err := DecodeCanonical(raw[62:len(raw)-sigLen], &snap); err != nil {
		return CheckpointBody{}, err
	}
	return CheckpointBody{GameID: gameID, Round: round, StateHash: stateHash, Snapshot: snap}, nil
}
