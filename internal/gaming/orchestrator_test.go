package gaming

import (
	"testing"

	"github.com/bitcraps/core/internal/crypto"
	"github.com/bitcraps/core/internal/dice"
	"github.com/bitcraps/core/internal/protocol"
	"github.com/bitcraps/core/internal/session"
)

type testPlayer struct {
	ks *crypto.Keystore
	id protocol.PeerId
}

func newTestPlayer(t *testing.T) testPlayer {
	t.Helper()
	ks, err := crypto.NewKeystore()
	if err != nil {
		t.Fatalf("new keystore: %v", err)
	}
	return testPlayer{ks: ks, id: ks.PeerID()}
}

func signedProposal(t *testing.T, o *Orchestrator, player testPlayer, payload protocol.Payload) protocol.Proposal {
	t.Helper()
	p := protocol.Proposal{
		GameID:    o.Session.GameID,
		Round:     o.Session.Round,
		Proposer:  player.id,
		Payload:   payload,
		Timestamp: 1,
	}
	signed, err := p.Sign(player.ks)
	if err != nil {
		t.Fatalf("sign proposal: %v", err)
	}
	return signed
}

func applyBlock(t *testing.T, o *Orchestrator, proposals ...protocol.Proposal) {
	t.Helper()
	block := protocol.Block{Round: o.Session.Round, OrderedProposals: proposals}
	if err := o.Apply(block); err != nil {
		t.Fatalf("apply block: %v", err)
	}
}

func TestJoinCreditsBalanceAndSeatsParticipant(t *testing.T) {
	o := New(protocol.NewGameID(), session.Config{}, dice.DefaultConfig())
	alice := newTestPlayer(t)

	join := signedProposal(t, o, alice, protocol.Payload{
		Kind: protocol.PayloadJoin,
		Join: &protocol.JoinPayload{Peer: alice.id, InitialBuyIn: 1000},
	})
	applyBlock(t, o, join)

	if _, ok := o.Session.Participants[alice.id]; !ok {
		t.Fatalf("expected alice to be seated")
	}
	if got := o.Bank.Balance(alice.id); got != 1000 {
		t.Fatalf("alice balance = %d, want 1000", got)
	}
}

func TestPlaceBetEscrowsStakeAndRequiresSeat(t *testing.T) {
	o := New(protocol.NewGameID(), session.Config{}, dice.DefaultConfig())
	alice := newTestPlayer(t)
	bet := &protocol.Bet{ID: protocol.ProposalID{0x01}, Bettor: alice.id, Kind: protocol.BetPass, Amount: 100, Round: 0}
	placeBet := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadPlaceBet, PlaceBet: bet})

	block := protocol.Block{Round: 0, OrderedProposals: []protocol.Proposal{placeBet}}
	if err := o.Apply(block); err == nil {
		t.Fatalf("expected bet from unseated player to fail")
	}

	join := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadJoin, Join: &protocol.JoinPayload{Peer: alice.id, InitialBuyIn: 1000}})
	applyBlock(t, o, join)
	applyBlock(t, o, placeBet)

	if got := o.Bank.Balance(alice.id); got != 900 {
		t.Fatalf("alice free balance after escrow = %d, want 900", got)
	}
	if len(o.Session.ActiveBets) != 1 {
		t.Fatalf("expected one active bet, got %d", len(o.Session.ActiveBets))
	}
}

func TestOddsBetRejectedOnComeOut(t *testing.T) {
	o := New(protocol.NewGameID(), session.Config{}, dice.DefaultConfig())
	alice := newTestPlayer(t)
	join := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadJoin, Join: &protocol.JoinPayload{Peer: alice.id, InitialBuyIn: 1000}})
	applyBlock(t, o, join)

	bet := &protocol.Bet{ID: protocol.ProposalID{0x02}, Bettor: alice.id, Kind: protocol.BetOddsPass, Amount: 50, Round: 0}
	placeBet := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadPlaceBet, PlaceBet: bet})
	block := protocol.Block{Round: 0, OrderedProposals: []protocol.Proposal{placeBet}}
	if err := o.Apply(block); err == nil {
		t.Fatalf("expected odds bet on come-out to be rejected")
	}
}

func TestLeaveCashesOutFullBalance(t *testing.T) {
	o := New(protocol.NewGameID(), session.Config{}, dice.DefaultConfig())
	alice := newTestPlayer(t)
	join := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadJoin, Join: &protocol.JoinPayload{Peer: alice.id, InitialBuyIn: 1000}})
	applyBlock(t, o, join)

	leave := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadLeave, Leave: &protocol.LeavePayload{Peer: alice.id, Reason: protocol.LeaveVoluntary}})
	applyBlock(t, o, leave)

	if _, ok := o.Session.Participants[alice.id]; ok {
		t.Fatalf("expected alice to no longer be seated")
	}
	if got := o.Bank.Balance(alice.id); got != 0 {
		t.Fatalf("alice balance after leave = %d, want 0", got)
	}
}

func TestTotalBalanceConservedAcrossJoinAndBetEscrow(t *testing.T) {
	o := New(protocol.NewGameID(), session.Config{}, dice.DefaultConfig())
	alice := newTestPlayer(t)
	join := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadJoin, Join: &protocol.JoinPayload{Peer: alice.id, InitialBuyIn: 1000}})
	applyBlock(t, o, join)

	before, err := o.Bank.Total()
	if err != nil {
		t.Fatalf("total before: %v", err)
	}

	bet := &protocol.Bet{ID: protocol.ProposalID{0x03}, Bettor: alice.id, Kind: protocol.BetPass, Amount: 100, Round: 0}
	placeBet := signedProposal(t, o, alice, protocol.Payload{Kind: protocol.PayloadPlaceBet, PlaceBet: bet})
	applyBlock(t, o, placeBet)

	after, err := o.Bank.Total()
	if err != nil {
		t.Fatalf("total after escrow: %v", err)
	}
	if before != after {
		t.Fatalf("escrow changed total balance: before=%d after=%d", before, after)
	}
}
