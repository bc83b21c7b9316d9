package consensus

import (
	"testing"

	"github.com/bitcraps/core/internal/crypto"
	"github.com/bitcraps/core/internal/ledger"
	"github.com/bitcraps/core/internal/protocol"
)

type testNode struct {
	ks *crypto.Keystore
	id protocol.PeerId
}

func newTestNodes(t *testing.T, n int) []testNode {
	t.Helper()
	nodes := make([]testNode, n)
	for i := range nodes {
		ks, err := crypto.NewKeystore()
		if err != nil {
			t.Fatalf("new keystore: %v", err)
		}
		nodes[i] = testNode{ks: ks, id: ks.PeerID()}
	}
	return nodes
}

func peerIDs(nodes []testNode) []protocol.PeerId {
	ids := make([]protocol.PeerId, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

func signVote(t *testing.T, node testNode, blockID protocol.BlockID, phase protocol.VotePhase, round protocol.RoundId) protocol.Vote {
	t.Helper()
	v := protocol.Vote{Voter: node.id, ProposalID: blockID, Phase: phase, Approve: true, Round: round}
	signed, err := v.Sign(node.ks)
	if err != nil {
		t.Fatalf("sign vote: %v", err)
	}
	return signed
}

func TestQuorumFor4ParticipantsIs3(t *testing.T) {
	if got := Quorum(4); got != 3 {
		t.Fatalf("quorum(4) = %d, want 3", got)
	}
	if got := FaultTolerance(4); got != 1 {
		t.Fatalf("faultTolerance(4) = %d, want 1", got)
	}
}

func TestLeaderRotatesDeterministicallyByRound(t *testing.T) {
	nodes := newTestNodes(t, 4)
	e := NewEngine(peerIDs(nodes), nil, protocol.PeerId{})
	l0, err := e.LeaderFor(0, 0)
	if err != nil {
		t.Fatalf("leader for round 0: %v", err)
	}
	l1, err := e.LeaderFor(1, 0)
	if err != nil {
		t.Fatalf("leader for round 1: %v", err)
	}
	if l0 == l1 {
		t.Fatalf("expected leadership to rotate across rounds")
	}
	l0Again, err := e.LeaderFor(0, 0)
	if err != nil {
		t.Fatalf("leader for round 0 again: %v", err)
	}
	if l0Again != l0 {
		t.Fatalf("leader selection is not deterministic")
	}
}

func TestFinalizeRequiresQuorum(t *testing.T) {
	nodes := newTestNodes(t, 4)
	e := NewEngine(peerIDs(nodes), nil, protocol.PeerId{})
	block := protocol.Block{ID: protocol.BlockID{0x01}, Round: 0}

	for i := 0; i < 2; i++ {
		vote := signVote(t, nodes[i], block.ID, protocol.VoteCommit, 0)
		if err := e.HandleCommitVote(vote); err != nil {
			t.Fatalf("handle commit vote %d: %v", i, err)
		}
	}
	ok, err := e.FinalizeIfQuorum(block, len(nodes))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if ok {
		t.Fatalf("expected finalize to fail with only 2/4 commit votes (quorum=3)")
	}

	vote := signVote(t, nodes[2], block.ID, protocol.VoteCommit, 0)
	if err := e.HandleCommitVote(vote); err != nil {
		t.Fatalf("handle commit vote 2: %v", err)
	}
	ok, err = e.FinalizeIfQuorum(block, len(nodes))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !ok {
		t.Fatalf("expected finalize to succeed with 3/4 commit votes")
	}

	got, ok := e.Finalized(0)
	if !ok || got.ID != block.ID {
		t.Fatalf("finalized block not recorded correctly: %+v, %v", got, ok)
	}
}

func TestFinalizeRejectsConflictingBlockSameRound(t *testing.T) {
	nodes := newTestNodes(t, 4)
	e := NewEngine(peerIDs(nodes), nil, protocol.PeerId{})
	blockA := protocol.Block{ID: protocol.BlockID{0x01}, Round: 0}
	blockB := protocol.Block{ID: protocol.BlockID{0x02}, Round: 0}

	for i := 0; i < 3; i++ {
		v := signVote(t, nodes[i], blockA.ID, protocol.VoteCommit, 0)
		if err := e.HandleCommitVote(v); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	if ok, err := e.FinalizeIfQuorum(blockA, len(nodes)); err != nil || !ok {
		t.Fatalf("expected blockA to finalize: ok=%v err=%v", ok, err)
	}
	if _, err := e.FinalizeIfQuorum(blockB, len(nodes)); err == nil {
		t.Fatalf("expected finalizing a conflicting block for an already-finalized round to fail")
	}
}

func TestEquivocatingVoterIsBannedAndBondSlashed(t *testing.T) {
	nodes := newTestNodes(t, 4)
	bank := ledger.New()
	treasury := protocol.PeerId{0xff}
	e := NewEngine(peerIDs(nodes), bank, treasury)

	cheater := nodes[0]
	if err := bank.BuyIn(cheater.id, 1000); err != nil {
		t.Fatalf("buy in: %v", err)
	}
	e.PostBond(cheater.id, 500)

	blockA := protocol.BlockID{0x01}
	blockB := protocol.BlockID{0x02}

	v1 := protocol.Vote{Voter: cheater.id, ProposalID: blockA, Phase: protocol.VotePrepare, Approve: true, Round: 0}
	v1, err := v1.Sign(cheater.ks)
	if err != nil {
		t.Fatalf("sign v1: %v", err)
	}
	if err := e.HandlePrepareVote(v1); err != nil {
		t.Fatalf("first vote should be accepted: %v", err)
	}

	v2 := protocol.Vote{Voter: cheater.id, ProposalID: blockA, Phase: protocol.VotePrepare, Approve: false, Round: 0}
	v2, err = v2.Sign(cheater.ks)
	if err != nil {
		t.Fatalf("sign v2: %v", err)
	}
	_ = blockB
	if err := e.HandlePrepareVote(v2); err == nil {
		t.Fatalf("expected equivocating vote to be rejected")
	}

	if !e.IsBanned(cheater.id) {
		t.Fatalf("expected equivocating voter to be banned")
	}
	if got := bank.Balance(cheater.id); got != 500 {
		t.Fatalf("cheater balance after slash = %d, want 500", got)
	}
	if got := bank.Balance(treasury); got != 500 {
		t.Fatalf("treasury balance after slash = %d, want 500", got)
	}
}

func signViewChange(t *testing.T, node testNode, round protocol.RoundId, view uint64) protocol.ViewChange {
	t.Helper()
	vc := protocol.ViewChange{Round: round, View: view, Voter: node.id}
	signed, err := vc.Sign(node.ks)
	if err != nil {
		t.Fatalf("sign view change: %v", err)
	}
	return signed
}

func TestEquivocationSlashRespectsConfiguredFraction(t *testing.T) {
	nodes := newTestNodes(t, 4)
	bank := ledger.New()
	treasury := protocol.PeerId{0xff}
	e := NewEngineWithSlashBps(peerIDs(nodes), bank, treasury, 2500) // 25%

	cheater := nodes[0]
	if err := bank.BuyIn(cheater.id, 1000); err != nil {
		t.Fatalf("buy in: %v", err)
	}
	e.PostBond(cheater.id, 400)

	blockA := protocol.BlockID{0x01}
	v1 := protocol.Vote{Voter: cheater.id, ProposalID: blockA, Phase: protocol.VotePrepare, Approve: true, Round: 0}
	v1, err := v1.Sign(cheater.ks)
	if err != nil {
		t.Fatalf("sign v1: %v", err)
	}
	if err := e.HandlePrepareVote(v1); err != nil {
		t.Fatalf("first vote should be accepted: %v", err)
	}
	v2 := protocol.Vote{Voter: cheater.id, ProposalID: blockA, Phase: protocol.VotePrepare, Approve: false, Round: 0}
	v2, err = v2.Sign(cheater.ks)
	if err != nil {
		t.Fatalf("sign v2: %v", err)
	}
	if err := e.HandlePrepareVote(v2); err == nil {
		t.Fatalf("expected equivocating vote to be rejected")
	}

	// 25% of the 400 bond (100) goes to treasury; the remaining 300 is
	// returned to the now-banned cheater on top of their unbonded 600.
	if got := bank.Balance(cheater.id); got != 900 {
		t.Fatalf("cheater balance after partial slash = %d, want 900", got)
	}
	if got := bank.Balance(treasury); got != 100 {
		t.Fatalf("treasury balance after partial slash = %d, want 100", got)
	}
}

func TestViewChangeAdvancesOnceQuorumVotes(t *testing.T) {
	nodes := newTestNodes(t, 4)
	e := NewEngine(peerIDs(nodes), nil, protocol.PeerId{})

	for i := 0; i < 2; i++ {
		if err := e.RecordViewChangeVote(signViewChange(t, nodes[i], 0, 0)); err != nil {
			t.Fatalf("record view change vote %d: %v", i, err)
		}
	}
	if e.TryAdvanceView(len(nodes)) {
		t.Fatalf("expected view change to require quorum (3), got only 2 votes")
	}
	if err := e.RecordViewChangeVote(signViewChange(t, nodes[2], 0, 0)); err != nil {
		t.Fatalf("record view change vote 2: %v", err)
	}
	if !e.TryAdvanceView(len(nodes)) {
		t.Fatalf("expected view change to succeed with quorum votes")
	}
	if e.CurrentView() != 1 {
		t.Fatalf("view = %d, want 1", e.CurrentView())
	}
}

func TestViewChangeRejectsUnsignedVote(t *testing.T) {
	nodes := newTestNodes(t, 4)
	e := NewEngine(peerIDs(nodes), nil, protocol.PeerId{})

	forged := protocol.ViewChange{Round: 0, View: 0, Voter: nodes[0].id}
	if err := e.RecordViewChangeVote(forged); err == nil {
		t.Fatalf("expected an unsigned view change to be rejected")
	}
	if e.ViewChangeVotes(0) != 0 {
		t.Fatalf("forged view change must not be counted")
	}
}

func TestBannedVoterRejected(t *testing.T) {
	nodes := newTestNodes(t, 4)
	bank := ledger.New()
	e := NewEngine(peerIDs(nodes), bank, protocol.PeerId{0xff})
	cheater := nodes[0]

	blockA := protocol.BlockID{0x01}
	v1 := protocol.Vote{Voter: cheater.id, ProposalID: blockA, Phase: protocol.VotePrepare, Approve: true, Round: 0}
	v1, _ = v1.Sign(cheater.ks)
	v2 := protocol.Vote{Voter: cheater.id, ProposalID: blockA, Phase: protocol.VotePrepare, Approve: false, Round: 0}
	v2, _ = v2.Sign(cheater.ks)
	_ = e.HandlePrepareVote(v1)
	_ = e.HandlePrepareVote(v2)

	v3 := protocol.Vote{Voter: cheater.id, ProposalID: protocol.BlockID{0x02}, Phase: protocol.VotePrepare, Approve: true, Round: 0}
	v3, _ = v3.Sign(cheater.ks)
	if err := e.HandlePrepareVote(v3); err == nil {
		t.Fatalf("expected vote from banned peer to be rejected")
	}
}
