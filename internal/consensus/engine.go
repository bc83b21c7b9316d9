// Package consensus implements a PBFT-style agreement protocol over a
// sequence of game rounds: a rotating leader proposes a block ordering
// the round's proposals, participants vote Prepare then Commit, and a
// block finalizes once 2f+1 of the 3f+1 participants have committed to
// it. A leader who stalls or equivocates triggers a view change that
// rotates to the next leader without reordering any already-finalized
// round.
package consensus

import (
	"fmt"
	"sync"

	"github.com/bitcraps/core/internal/ledger"
	"github.com/bitcraps/core/internal/protocol"
)

// Quorum returns the number of matching votes required to finalize a
// block or advance a view among n participants, the standard PBFT bound
// 2f+1 where n=3f+1.
func Quorum(n int) int {
	f := (n - 1) / 3
	return 2*f + 1
}

// FaultTolerance returns the largest number of Byzantine participants n
// can tolerate.
func FaultTolerance(n int) int {
	return (n - 1) / 3
}

type voteTally struct {
	votes map[protocol.PeerId]protocol.Vote
}

func newVoteTally() *voteTally {
	return &voteTally{votes: make(map[protocol.PeerId]protocol.Vote)}
}

// Engine runs the consensus protocol for a single game's proposal
// stream. One Engine exists per game; every method takes the engine's
// internal mutex (the mempool has its own), so calls from more than one
// goroutine are serialized.
type Engine struct {
	mu sync.Mutex

	participants []protocol.PeerId
	banned       map[protocol.PeerId]bool
	bonds        map[protocol.PeerId]protocol.Tokens

	treasury protocol.PeerId
	bank     *ledger.Ledger

	round protocol.RoundId
	view  uint64

	prepare map[protocol.BlockID]*voteTally
	commit  map[protocol.BlockID]*voteTally

	viewChangeVotes map[uint64]map[protocol.PeerId]bool

	finalized map[protocol.RoundId]protocol.Block

	mempool  *Mempool
	slashBps uint16
}

// DefaultSlashBps slashes a peer's entire bond on equivocation (10000
// basis points = 100%), the default for NewEngine. A table wanting a
// softer penalty can construct its engine with NewEngineWithSlashBps
// instead.
const DefaultSlashBps = 10000

// NewEngine constructs an Engine over the given participant set. bank
// and treasury back equivocation slashing; bank may be nil if bonds are
// not in use. Equivocation slashes a peer's full bond to treasury; use
// NewEngineWithSlashBps for a softer, configurable penalty.
func NewEngine(participants []protocol.PeerId, bank *ledger.Ledger, treasury protocol.PeerId) *Engine {
	return NewEngineWithSlashBps(participants, bank, treasury, DefaultSlashBps)
}

// NewEngineWithSlashBps is NewEngine with a configurable equivocation
// penalty: slashBps basis points (out of 10000) of a peer's posted bond
// are forfeited to treasury on detected equivocation; the remainder is
// returned to the peer's own balance when they are banned, the same
// shape as the teacher's per-offense slashBpsDKG/slashBpsHandDealer
// fractions rather than an always-total forfeiture.
func NewEngineWithSlashBps(participants []protocol.PeerId, bank *ledger.Ledger, treasury protocol.PeerId, slashBps uint16) *Engine {
	cp := append([]protocol.PeerId(nil), participants...)
	sortPeerIDs(cp)
	return &Engine{
		participants:    cp,
		banned:          make(map[protocol.PeerId]bool),
		bonds:           make(map[protocol.PeerId]protocol.Tokens),
		bank:            bank,
		treasury:        treasury,
		prepare:         make(map[protocol.BlockID]*voteTally),
		commit:          make(map[protocol.BlockID]*voteTally),
		viewChangeVotes: make(map[uint64]map[protocol.PeerId]bool),
		finalized:       make(map[protocol.RoundId]protocol.Block),
		mempool:         NewMempool(),
		slashBps:        slashBps,
	}
}

func sortPeerIDs(ids []protocol.PeerId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && lessPeerID(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func lessPeerID(a, b protocol.PeerId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// activeParticipants returns participants minus anyone banned for
// equivocation, the set leader selection actually rotates over.
func (e *Engine) activeParticipants() []protocol.PeerId {
	active := make([]protocol.PeerId, 0, len(e.participants))
	for _, p := range e.participants {
		if !e.banned[p] {
			active = append(active, p)
		}
	}
	return active
}

// LeaderFor returns the leader for the given round and view: the
// round+view-th participant in sorted order, so leadership rotates
// deterministically and every honest peer agrees on who it is without
// any extra message exchange.
func (e *Engine) LeaderFor(round protocol.RoundId, view uint64) (protocol.PeerId, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderForLocked(round, view)
}

func (e *Engine) leaderForLocked(round protocol.RoundId, view uint64) (protocol.PeerId, error) {
	active := e.activeParticipants()
	if len(active) == 0 {
		return protocol.PeerId{}, fmt.Errorf("%w: no active participants", protocol.ErrConsensusStall)
	}
	idx := (uint64(round) + view) % uint64(len(active))
	return active[idx], nil
}

// SubmitProposal verifies p's signature and admits it into the
// engine's mempool in arrival order, for the round's leader to later
// aggregate into a candidate block via AssembleBlock.
func (e *Engine) SubmitProposal(p protocol.Proposal) error {
	if !p.VerifySignature() {
		return fmt.Errorf("%w: proposal signature invalid", protocol.ErrValidation)
	}
	e.mempool.Submit(p)
	return nil
}

// AssembleBlock aggregates the engine's pending proposals into a
// candidate block for round, chained onto prevHash (the last finalized
// block's ID, or the zero BlockID for round 0), proposed by leader.
// Aggregation honors arrival order subject to DefaultPerPeerQuota, so
// one peer's burst of submissions cannot crowd the round's candidate
// block at everyone else's expense.
func (e *Engine) AssembleBlock(round protocol.RoundId, leader protocol.PeerId, prevHash protocol.BlockID) protocol.Block {
	return protocol.Block{
		Round:            round,
		OrderedProposals: e.mempool.Assemble(DefaultPerPeerQuota),
		PrevHash:         prevHash,
		Leader:           leader,
	}
}

// PostBond registers a slashable bond for peer, generalizing the
// teacher's staking bond: a participant who equivocates forfeits this
// amount to the treasury rather than merely being dropped from the
// leader rotation.
func (e *Engine) PostBond(peer protocol.PeerId, amount protocol.Tokens) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bonds[peer] = amount
}

// HandlePrepareVote records a Prepare vote after verifying its
// signature and that it targets the engine's current round. Equivocal
// votes (a voter already on file in this phase for a different block,
// or for the same block with a different Approve value) ban the voter
// and slash their bond.
func (e *Engine) HandlePrepareVote(vote protocol.Vote) error {
	return e.handleVote(vote, protocol.VotePrepare, e.prepare)
}

// HandleCommitVote is HandlePrepareVote for the Commit phase.
func (e *Engine) HandleCommitVote(vote protocol.Vote) error {
	return e.handleVote(vote, protocol.VoteCommit, e.commit)
}

func (e *Engine) handleVote(vote protocol.Vote, phase protocol.VotePhase, tallies map[protocol.BlockID]*voteTally) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vote.Phase != phase {
		return fmt.Errorf("%w: vote phase %v does not match expected %v", protocol.ErrValidation, vote.Phase, phase)
	}
	if e.banned[vote.Voter] {
		return fmt.Errorf("%w: voter %s is banned", protocol.ErrProtocol, vote.Voter)
	}
	if !vote.VerifySignature() {
		return fmt.Errorf("%w: vote signature invalid for voter %s", protocol.ErrValidation, vote.Voter)
	}
	if vote.Round != e.round {
		return fmt.Errorf("%w: vote round %d does not match engine round %d", protocol.ErrValidation, vote.Round, e.round)
	}

	for id, other := range tallies {
		if id == vote.ProposalID {
			continue
		}
		if _, ok := other.votes[vote.Voter]; ok {
			e.slashForEquivocation(vote.Voter)
			return fmt.Errorf("%w: voter %s voted for two blocks in phase %v", protocol.ErrProtocol, vote.Voter, phase)
		}
	}

	tally, ok := tallies[vote.ProposalID]
	if !ok {
		tally = newVoteTally()
		tallies[vote.ProposalID] = tally
	}
	if prior, ok := tally.votes[vote.Voter]; ok {
		if prior.Approve != vote.Approve {
			e.slashForEquivocation(vote.Voter)
			return fmt.Errorf("%w: voter %s equivocated in phase %v", protocol.ErrProtocol, vote.Voter, phase)
		}
		return nil
	}
	tally.votes[vote.Voter] = vote
	return nil
}

func (e *Engine) slashForEquivocation(peer protocol.PeerId) {
	e.banned[peer] = true
	bond, ok := e.bonds[peer]
	if !ok || bond == 0 || e.bank == nil {
		return
	}
	delete(e.bonds, peer)

	slashed, err := bond.CheckedMulRatio(uint64(e.slashBps), 10000)
	if err != nil {
		return
	}
	returned := bond - slashed

	if err := e.bank.CashOut(peer, bond); err != nil {
		return
	}
	_ = e.bank.BuyIn(e.treasury, slashed)
	if returned > 0 {
		_ = e.bank.BuyIn(peer, returned)
	}
}

// PrepareApprovals returns how many Prepare votes approving blockID
// have been recorded.
func (e *Engine) PrepareApprovals(blockID protocol.BlockID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return countApprovals(e.prepare[blockID])
}

// CommitApprovals returns how many Commit votes approving blockID have
// been recorded.
func (e *Engine) CommitApprovals(blockID protocol.BlockID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return countApprovals(e.commit[blockID])
}

func countApprovals(tally *voteTally) int {
	if tally == nil {
		return 0
	}
	n := 0
	for _, v := range tally.votes {
		if v.Approve {
			n++
		}
	}
	return n
}

// PrepareQuorumReached reports whether blockID has collected 2f+1
// Prepare approvals among n participants.
func (e *Engine) PrepareQuorumReached(blockID protocol.BlockID, n int) bool {
	return e.PrepareApprovals(blockID) >= Quorum(n)
}

// FinalizeIfQuorum finalizes block if it has collected 2f+1 Commit
// approvals. Finalization is final: once a round has a finalized block,
// a later call for a different block at the same round fails rather
// than silently overwriting it, since this engine never rolls back a
// finalized round.
func (e *Engine) FinalizeIfQuorum(block protocol.Block, n int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.finalized[block.Round]; ok {
		if existing.ID != block.ID {
			return false, fmt.Errorf("%w: round %d already finalized a different block", protocol.ErrProtocol, block.Round)
		}
		return true, nil
	}
	if countApprovals(e.commit[block.ID]) < Quorum(n) {
		return false, nil
	}
	e.finalized[block.Round] = block
	return true, nil
}

// Finalized returns the finalized block for round, if any.
func (e *Engine) Finalized(round protocol.RoundId) (protocol.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.finalized[round]
	return b, ok
}

// AdvanceRound moves the engine to the next round, resetting the view
// counter and discarding vote tallies scoped to the completed round.
func (e *Engine) AdvanceRound() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round++
	e.view = 0
	e.prepare = make(map[protocol.BlockID]*voteTally)
	e.commit = make(map[protocol.BlockID]*voteTally)
}

// CurrentRound returns the engine's current round.
func (e *Engine) CurrentRound() protocol.RoundId {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}

// CurrentView returns the engine's current view within the round.
func (e *Engine) CurrentView() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// RecordViewChangeVote verifies vc and, if valid, records that its voter
// wants to abandon vc.View and move to vc.View+1, used when the current
// leader stalls or proposes an invalid block. An unsigned, mis-rounded,
// or banned-voter ballot is rejected with no effect on the tally, the
// same way HandlePrepareVote/HandleCommitVote reject a bad vote before
// counting it.
func (e *Engine) RecordViewChangeVote(vc protocol.ViewChange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.banned[vc.Voter] {
		return fmt.Errorf("%w: voter %s is banned", protocol.ErrProtocol, vc.Voter)
	}
	if !vc.VerifySignature() {
		return fmt.Errorf("%w: view change signature invalid for voter %s", protocol.ErrValidation, vc.Voter)
	}
	if vc.Round != e.round {
		return fmt.Errorf("%w: view change round %d does not match engine round %d", protocol.ErrValidation, vc.Round, e.round)
	}

	votes, ok := e.viewChangeVotes[vc.View]
	if !ok {
		votes = make(map[protocol.PeerId]bool)
		e.viewChangeVotes[vc.View] = votes
	}
	votes[vc.Voter] = true
	return nil
}

// ViewChangeVotes reports how many distinct peers have voted to abandon
// view.
func (e *Engine) ViewChangeVotes(view uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.viewChangeVotes[view])
}

// TryAdvanceView moves to view+1 once 2f+1 of n participants have voted
// to abandon the current view, clearing Prepare/Commit tallies gathered
// under the stalled view so the new leader starts clean.
func (e *Engine) TryAdvanceView(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.viewChangeVotes[e.view]) < Quorum(n) {
		return false
	}
	e.view++
	e.prepare = make(map[protocol.BlockID]*voteTally)
	e.commit = make(map[protocol.BlockID]*voteTally)
	return true
}

// IsBanned reports whether peer has been excluded for equivocation.
func (e *Engine) IsBanned(peer protocol.PeerId) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.banned[peer]
}
