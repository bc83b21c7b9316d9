package dice

import (
	"math/rand"
	"testing"

	"github.com/bitcraps/core/internal/protocol"
)

func roll(t *testing.T, d1, d2 uint8) protocol.DiceRoll {
	t.Helper()
	r, err := protocol.NewDiceRoll(d1, d2)
	if err != nil {
		t.Fatalf("new dice roll: %v", err)
	}
	return r
}

func TestPassLineComeOutNaturalWins(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetPass, Amount: 10}
	res := Resolve(bet, protocol.ComeOut(), roll(t, 3, 4), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedWon || res.Num != 1 || res.Den != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPassLineComeOutCrapsLoses(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetPass, Amount: 10}
	res := Resolve(bet, protocol.ComeOut(), roll(t, 1, 1), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedLost {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPassLineEstablishesPointThenResolves(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetPass, Amount: 10}
	comeOut := roll(t, 2, 4) // total 6
	res := Resolve(bet, protocol.ComeOut(), comeOut, DefaultConfig())
	if res.Resolved {
		t.Fatalf("expected pass to remain pending once a point is established, got %+v", res)
	}
	phase := AdvancePhase(protocol.ComeOut(), comeOut)
	if phase.Point != 6 {
		t.Fatalf("phase point = %d, want 6", phase.Point)
	}
	madeIt := roll(t, 3, 3) // total 6
	res = Resolve(bet, phase, madeIt, DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedWon {
		t.Fatalf("expected pass line to win on the point, got %+v", res)
	}
}

func TestPassLineSevenOutLoses(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetPass, Amount: 10}
	phase := protocol.Phase{Point: 6}
	res := Resolve(bet, phase, roll(t, 3, 4), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedLost {
		t.Fatalf("expected seven-out to lose pass line, got %+v", res)
	}
}

func TestDontPassPushesOnTwelve(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetDontPass, Amount: 10}
	res := Resolve(bet, protocol.ComeOut(), roll(t, 6, 6), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetPushed {
		t.Fatalf("expected dont pass to push on 12, got %+v", res)
	}
}

func TestFieldPaysConfiguredRatioOnTwelve(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetField, Amount: 10}
	cfg := Config{FieldPayout12: 2}
	res := Resolve(bet, protocol.Phase{}, roll(t, 6, 6), cfg)
	if !res.Resolved || res.Num != 2 || res.Den != 1 {
		t.Fatalf("expected field to pay 2:1 on 12 with override config, got %+v", res)
	}
	res = Resolve(bet, protocol.Phase{}, roll(t, 6, 6), DefaultConfig())
	if res.Num != 3 {
		t.Fatalf("expected field to pay 3:1 on 12 by default, got %+v", res)
	}
}

func TestHardWayLosesOnEasyMakeOfSamePoint(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetHard6, Amount: 10}
	res := Resolve(bet, protocol.Phase{}, roll(t, 2, 4), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedLost {
		t.Fatalf("expected easy 6 to lose a hard 6 bet, got %+v", res)
	}
	res = Resolve(bet, protocol.Phase{}, roll(t, 3, 3), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedWon || res.Num != 9 || res.Den != 1 {
		t.Fatalf("expected hard 6 to pay 9:1, got %+v", res)
	}
}

func TestPlaceBetPaysHouseRatio(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetPlace6, Amount: 10}
	res := Resolve(bet, protocol.Phase{}, roll(t, 4, 2), DefaultConfig())
	if !res.Resolved || res.Num != 7 || res.Den != 6 {
		t.Fatalf("expected place 6 to pay 7:6, got %+v", res)
	}
}

func TestComeBetTracksItsOwnPoint(t *testing.T) {
	bet := protocol.Bet{Kind: protocol.BetCome, Amount: 10}
	firstRoll := roll(t, 3, 2) // total 5, establishes come point
	res := Resolve(bet, protocol.Phase{}, firstRoll, DefaultConfig())
	if res.Resolved {
		t.Fatalf("expected come bet to stay pending establishing its point, got %+v", res)
	}
	bet.ComePoint = firstRoll.Total()
	res = Resolve(bet, protocol.Phase{}, roll(t, 2, 3), DefaultConfig())
	if !res.Resolved || res.Outcome != protocol.BetResolvedWon {
		t.Fatalf("expected come bet to win on its own point, got %+v", res)
	}
}

func TestOddsBetNotAllowedOnComeOut(t *testing.T) {
	if IsPassLineAllowed(protocol.BetOddsPass, protocol.ComeOut()) {
		t.Fatalf("odds bets should not be placeable on come-out")
	}
	if !IsPassLineAllowed(protocol.BetOddsPass, protocol.Phase{Point: 6}) {
		t.Fatalf("odds bets should be placeable once a point is established")
	}
}

func TestPassDontPassOnlyOnComeOut(t *testing.T) {
	if !IsPassLineAllowed(protocol.BetPass, protocol.ComeOut()) {
		t.Fatalf("pass line must be placeable on come-out")
	}
	if IsPassLineAllowed(protocol.BetPass, protocol.Phase{Point: 6}) {
		t.Fatalf("pass line must not be placeable once a point is established")
	}
}

// FuzzResolveNeverPanics exercises Resolve across every bet type and
// every legal dice/phase combination, the property every payout rule
// must satisfy regardless of house-rule configuration.
func FuzzResolveNeverPanics(f *testing.F) {
	f.Add(uint8(1), uint8(1), uint8(0), uint8(1))
	f.Add(uint8(3), uint8(4), uint8(6), uint8(9))

	f.Fuzz(func(t *testing.T, d1, d2, point, kind uint8) {
		d1 = d1%6 + 1
		d2 = d2%6 + 1
		r, err := protocol.NewDiceRoll(d1, d2)
		if err != nil {
			t.Fatalf("new dice roll: %v", err)
		}
		phase := protocol.Phase{}
		if protocol.IsValidPoint(point) {
			phase.Point = point
		}
		bet := protocol.Bet{Kind: protocol.BetType(kind%23 + 1), Amount: 10}
		res := Resolve(bet, phase, r, DefaultConfig())
		if res.Resolved && res.Outcome == protocol.BetResolvedWon && res.Den == 0 {
			t.Fatalf("won result must never carry a zero denominator: %+v", res)
		}
	})
}

func TestPropertyAdvancePhaseAlwaysReturnsValidState(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	phase := protocol.ComeOut()
	for i := 0; i < 10000; i++ {
		d1 := uint8(rng.Intn(6) + 1)
		d2 := uint8(rng.Intn(6) + 1)
		r := roll(t, d1, d2)
		phase = AdvancePhase(phase, r)
		if !phase.IsComeOut() && !protocol.IsValidPoint(phase.Point) {
			t.Fatalf("advance phase produced invalid point %d", phase.Point)
		}
	}
}
