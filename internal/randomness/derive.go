package randomness

import (
	"encoding/binary"

	"github.com/bitcraps/core/internal/crypto"
	"github.com/bitcraps/core/internal/protocol"
)

// rejectionThreshold is the largest byte value accepted by the
// rejection sampler: 252 = 6*42 is the largest multiple of 6 that fits
// in a byte, so accepting only bytes below it and mapping b%6 to a die
// face introduces no modulo bias toward low faces.
const rejectionThreshold = 252

// entropyStream produces an unbounded sequence of pseudorandom bytes
// derived from a round's entropy by hashing entropy||counter and
// walking off each digest in turn, re-hashing with an incremented
// counter once a digest is exhausted.
type entropyStream struct {
	entropy [32]byte
	counter uint64
	buf     [32]byte
	pos     int
	filled  bool
}

func newEntropyStream(entropy [32]byte) *entropyStream {
	return &entropyStream{entropy: entropy}
}

func (s *entropyStream) refill() {
	var msg [40]byte
	copy(msg[:32], s.entropy[:])
	binary.LittleEndian.PutUint64(msg[32:], s.counter)
	s.buf = crypto.Hash(msg[:])
	s.counter++
	s.pos = 0
	s.filled = true
}

func (s *entropyStream) nextByte() byte {
	if !s.filled || s.pos >= len(s.buf) {
		s.refill()
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// nextDie draws a uniformly distributed die face in 1..6 via rejection
// sampling against rejectionThreshold.
func (s *entropyStream) nextDie() uint8 {
	for {
		b := s.nextByte()
		if b < rejectionThreshold {
			return b%6 + 1
		}
	}
}

// DeriveDiceRoll deterministically derives a dice roll from round
// entropy: every honest peer that computes the same entropy computes
// the same roll, with no participant able to bias it since the entropy
// itself is fixed before any nonce was revealed.
func DeriveDiceRoll(entropy [32]byte) protocol.DiceRoll {
	stream := newEntropyStream(entropy)
	d1 := stream.nextDie()
	d2 := stream.nextDie()
	roll, err := protocol.NewDiceRoll(d1, d2)
	if err != nil {
		// nextDie always returns a value in 1..6; this would indicate a
		// bug in the sampler itself, not bad input.
		panic(err)
	}
	return roll
}
