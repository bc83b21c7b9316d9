// Package dice is the pure craps rules engine: given a roll, the current
// phase, and a bet, it decides whether the bet resolves this roll and,
// if so, at what ratio. It holds no state of its own and performs no
// I/O, so every exported function is a candidate for property testing
// against arbitrary (phase, bet, roll) triples.
package dice

import "github.com/bitcraps/core/internal/protocol"

// Config carries the house rules this lineage leaves configurable
// rather than fixed, both resolved from Open Questions in the layer
// above: whether Field pays 2:1 or 3:1 on a 12, and whether flat Big
// 6/8 bets are offered at all (most modern tables fold them into Place
// 6/8 and omit them).
type Config struct {
	FieldPayout12   uint64
	Big6Big8Enabled bool
}

// DefaultConfig matches the house rules assumed when a table does not
// override them: Field pays 3:1 on 12, and Big 6/8 are not offered
// since Place 6/8 dominates them.
func DefaultConfig() Config {
	return Config{FieldPayout12: 3, Big6Big8Enabled: false}
}

// Result is the outcome of resolving a single bet against a roll.
// Num/Den express the payout ratio on the original stake: a bet that
// wins at 1:1 returns Num=1, Den=1 and the caller credits stake*Num/Den
// on top of returning the stake itself; a push returns Resolved=true,
// Outcome=BetPushed and the caller returns the stake unchanged.
type Result struct {
	Resolved bool
	Outcome  protocol.BetOutcome
	Num      uint64
	Den      uint64
}

func won(num, den uint64) Result {
	return Result{Resolved: true, Outcome: protocol.BetResolvedWon, Num: num, Den: den}
}

func lost() Result {
	return Result{Resolved: true, Outcome: protocol.BetResolvedLost}
}

func pushed() Result {
	return Result{Resolved: true, Outcome: protocol.BetPushed}
}

func pending() Result {
	return Result{Resolved: false}
}

// placeOdds maps a place number to its true-odds-adjacent house payout
// ratio (num, den), the standard 9:5 / 7:5 / 7:6 table.
var placeOdds = map[uint8][2]uint64{
	4:  {9, 5},
	5:  {7, 5},
	6:  {7, 6},
	8:  {7, 6},
	9:  {7, 5},
	10: {9, 5},
}

// trueOdds maps a point number to the true-odds payout ratio paid on an
// Odds bet backing a Pass/Come wager.
var trueOdds = map[uint8][2]uint64{
	4:  {2, 1},
	5:  {3, 2},
	6:  {6, 5},
	8:  {6, 5},
	9:  {3, 2},
	10: {2, 1},
}

// trueOddsDont is the inverse ratio paid on a Dont Pass/Dont Come odds
// lay.
var trueOddsDont = map[uint8][2]uint64{
	4:  {1, 2},
	5:  {2, 3},
	6:  {5, 6},
	8:  {5, 6},
	9:  {2, 3},
	10: {1, 2},
}

var hardWayOdds = map[uint8][2]uint64{
	4:  {7, 1},
	6:  {9, 1},
	8:  {9, 1},
	10: {7, 1},
}

func betPoint(kind protocol.BetType) uint8 {
	switch kind {
	case protocol.BetHard4:
		return 4
	case protocol.BetHard6:
		return 6
	case protocol.BetHard8:
		return 8
	case protocol.BetHard10:
		return 10
	case protocol.BetPlace4:
		return 4
	case protocol.BetPlace5:
		return 5
	case protocol.BetPlace6:
		return 6
	case protocol.BetPlace8:
		return 8
	case protocol.BetPlace9:
		return 9
	case protocol.BetPlace10:
		return 10
	default:
		return 0
	}
}

// Resolve decides whether bet resolves against roll given the table's
// current phase (the phase *before* AdvancePhase is applied for this
// roll) and, for Come/DontCome bets, the bet's own travelling point.
func Resolve(bet protocol.Bet, phase protocol.Phase, roll protocol.DiceRoll, cfg Config) Result {
	total := roll.Total()

	switch bet.Kind {
	case protocol.BetPass:
		if phase.IsComeOut() {
			switch {
			case roll.IsNatural():
				return won(1, 1)
			case roll.IsCraps():
				return lost()
			default:
				return pending()
			}
		}
		switch {
		case total == uint8(phase.Point):
			return won(1, 1)
		case total == 7:
			return lost()
		default:
			return pending()
		}

	case protocol.BetDontPass:
		if phase.IsComeOut() {
			switch total {
			case 2, 3:
				return won(1, 1)
			case 12:
				return pushed()
			case 7, 11:
				return lost()
			default:
				return pending()
			}
		}
		switch {
		case total == 7:
			return won(1, 1)
		case total == uint8(phase.Point):
			return lost()
		default:
			return pending()
		}

	case protocol.BetCome:
		if bet.ComePoint == 0 {
			switch {
			case roll.IsNatural():
				return won(1, 1)
			case roll.IsCraps():
				return lost()
			default:
				return pending()
			}
		}
		switch {
		case total == bet.ComePoint:
			return won(1, 1)
		case total == 7:
			return lost()
		default:
			return pending()
		}

	case protocol.BetDontCome:
		if bet.ComePoint == 0 {
			switch total {
			case 2, 3:
				return won(1, 1)
			case 12:
				return pushed()
			case 7, 11:
				return lost()
			default:
				return pending()
			}
		}
		switch {
		case total == 7:
			return won(1, 1)
		case total == bet.ComePoint:
			return lost()
		default:
			return pending()
		}

	case protocol.BetField:
		switch total {
		case 2:
			return won(2, 1)
		case 12:
			return won(cfg.FieldPayout12, 1)
		case 3, 4, 9, 10, 11:
			return won(1, 1)
		default:
			return lost()
		}

	case protocol.BetHard4, protocol.BetHard6, protocol.BetHard8, protocol.BetHard10:
		point := betPoint(bet.Kind)
		switch {
		case total == 7:
			return lost()
		case total == point && roll.D1 == roll.D2:
			ratio := hardWayOdds[point]
			return won(ratio[0], ratio[1])
		case total == point:
			return lost()
		default:
			return pending()
		}

	case protocol.BetPlace4, protocol.BetPlace5, protocol.BetPlace6, protocol.BetPlace8, protocol.BetPlace9, protocol.BetPlace10:
		point := betPoint(bet.Kind)
		switch {
		case total == 7:
			return lost()
		case total == point:
			ratio := placeOdds[point]
			return won(ratio[0], ratio[1])
		default:
			return pending()
		}

	case protocol.BetOddsPass:
		if phase.IsComeOut() {
			return pending()
		}
		point := uint8(phase.Point)
		switch {
		case total == point:
			ratio := trueOdds[point]
			return won(ratio[0], ratio[1])
		case total == 7:
			return lost()
		default:
			return pending()
		}

	case protocol.BetOddsDontPass:
		if phase.IsComeOut() {
			return pending()
		}
		point := uint8(phase.Point)
		switch {
		case total == 7:
			ratio := trueOddsDont[point]
			return won(ratio[0], ratio[1])
		case total == point:
			return lost()
		default:
			return pending()
		}

	case protocol.BetAny7:
		if total == 7 {
			return won(4, 1)
		}
		return lost()

	case protocol.BetAnyCraps:
		if roll.IsCraps() {
			return won(7, 1)
		}
		return lost()

	case protocol.BetExact2:
		if total == 2 {
			return won(30, 1)
		}
		return lost()

	case protocol.BetExact3:
		if total == 3 {
			return won(15, 1)
		}
		return lost()

	case protocol.BetExact11:
		if total == 11 {
			return won(15, 1)
		}
		return lost()

	case protocol.BetExact12:
		if total == 12 {
			return won(30, 1)
		}
		return lost()

	default:
		return pending()
	}
}

// AdvancePhase applies roll to phase and reports the resulting phase.
// A come-out roll of 4/5/6/8/9/10 establishes that point; any other
// come-out roll stays on come-out (the pass line resolves but the table
// immediately starts a new come-out sequence). In a point phase, a
// seven-out or making the point returns the table to come-out; any
// other roll leaves the point unchanged.
func AdvancePhase(phase protocol.Phase, roll protocol.DiceRoll) protocol.Phase {
	total := roll.Total()
	if phase.IsComeOut() {
		if protocol.IsValidPoint(total) {
			return protocol.Phase{Point: total}
		}
		return protocol.ComeOut()
	}
	if total == 7 || total == uint8(phase.Point) {
		return protocol.ComeOut()
	}
	return phase
}

// IsPassLineAllowed reports whether kind may be placed given the
// current phase: Pass/DontPass only open action on come-out, Odds bets
// only once a point is established, and everything else is always
// placeable between rolls.
func IsPassLineAllowed(kind protocol.BetType, phase protocol.Phase) bool {
	switch kind {
	case protocol.BetPass, protocol.BetDontPass:
		return phase.IsComeOut()
	case protocol.BetOddsPass, protocol.BetOddsDontPass:
		return !phase.IsComeOut()
	default:
		return true
	}
}
