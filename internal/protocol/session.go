package protocol

// Session is the full state of one craps game. Phase.Point folds the
// come-out/point distinction and the active point number into a single
// field (zero means come-out) rather than carrying them separately,
// since two copies of the same fact can only ever drift apart.
type Session struct {
	GameID       GameID
	Participants map[PeerId]struct{}
	Phase        Phase
	Round        RoundId
	Shooter      PeerId
	ActiveBets   []Bet
	Balances     map[PeerId]Tokens
	History      []Block
}

// NewSession constructs an empty session in the come-out phase.
func NewSession(gameID GameID) *Session {
	return &Session{
		GameID:       gameID,
		Participants: make(map[PeerId]struct{}),
		Phase:        ComeOut(),
		Round:        0,
		ActiveBets:   nil,
		Balances:     make(map[PeerId]Tokens),
		History:      nil,
	}
}

// TotalBalance returns the sum of balances plus active bet amounts, the
// quantity that must stay constant absent buy-in/cash-out.
func (s *Session) TotalBalance() (Tokens, error) {
	var total Tokens
	var err error
	for _, bal := range s.Balances {
		total, err = total.CheckedAdd(bal)
		if err != nil {
			return 0, err
		}
	}
	for _, b := range s.ActiveBets {
		if b.Outcome != BetActive {
			continue
		}
		total, err = total.CheckedAdd(b.Amount)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
