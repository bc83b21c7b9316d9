package protocol

// BetType is the closed set of wager kinds recognized by the core.
// Point numbers for Hard N and Place N bets are baked into the
// variant itself rather than carried as a separate field.
type BetType uint8

const (
	BetPass BetType = iota + 1
	BetDontPass
	BetCome
	BetDontCome
	BetField
	BetHard4
	BetHard6
	BetHard8
	BetHard10
	BetPlace4
	BetPlace5
	BetPlace6
	BetPlace8
	BetPlace9
	BetPlace10
	BetOddsPass
	BetOddsDontPass
	BetAny7
	BetAnyCraps
	BetExact2
	BetExact3
	BetExact11
	BetExact12
)

func (b BetType) String() string {
	switch b {
	case BetPass:
		return "pass"
	case BetDontPass:
		return "dont_pass"
	case BetCome:
		return "come"
	case BetDontCome:
		return "dont_come"
	case BetField:
		return "field"
	case BetHard4:
		return "hard4"
	case BetHard6:
		return "hard6"
	case BetHard8:
		return "hard8"
	case BetHard10:
		return "hard10"
	case BetPlace4:
		return "place4"
	case BetPlace5:
		return "place5"
	case BetPlace6:
		return "place6"
	case BetPlace8:
		return "place8"
	case BetPlace9:
		return "place9"
	case BetPlace10:
		return "place10"
	case BetOddsPass:
		return "odds_pass"
	case BetOddsDontPass:
		return "odds_dont_pass"
	case BetAny7:
		return "any7"
	case BetAnyCraps:
		return "any_craps"
	case BetExact2:
		return "exact2"
	case BetExact3:
		return "exact3"
	case BetExact11:
		return "exact11"
	case BetExact12:
		return "exact12"
	default:
		return "unknown"
	}
}

// BetOutcome is the resolution state of a Bet.
type BetOutcome uint8

const (
	BetActive BetOutcome = iota
	BetResolvedWon
	BetResolvedLost
	BetPushed
)

// Bet is a single wager placed by a participant for a given round.
// ComePoint is unset (0) for every bet kind except Come/DontCome, which
// travel with whichever point number first rolls after they are placed;
// it is state mutated by the game engine after placement, never part of
// the signed proposal body.
type Bet struct {
	ID        ProposalID
	Bettor    PeerId
	Kind      BetType
	Amount    Tokens
	Round     RoundId
	PlacedAt  uint64
	Outcome   BetOutcome
	ComePoint uint8
}
