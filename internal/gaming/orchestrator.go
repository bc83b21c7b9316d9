// Package gaming ties the lower layers together into one playable
// craps table: it applies finalized blocks to a Session, dispatching
// each ordered proposal's payload to the ledger, dice rules engine, and
// commit-reveal randomness round in turn, one transaction type at a
// time against the table's state.
package gaming

import (
	"fmt"

	"github.com/bitcraps/core/internal/crypto"
	"github.com/bitcraps/core/internal/dice"
	"github.com/bitcraps/core/internal/ledger"
	"github.com/bitcraps/core/internal/protocol"
	"github.com/bitcraps/core/internal/randomness"
	"github.com/bitcraps/core/internal/session"
)

// House is the peer identity bets are forfeited to on a loss; a real
// deployment would route this to a configured operator account, but a
// single well-known peer is enough to keep the ledger's total-balance
// invariant meaningful in the devnet harness and in tests.
var House = protocol.PeerId{0xff}

// Orchestrator is the mutable runtime state of one craps table:
// session data model, token ledger, participant/round manager, and the
// commit-reveal round currently in flight.
type Orchestrator struct {
	Session *protocol.Session
	Bank    *ledger.Ledger
	Seats   *session.Manager
	Cfg     dice.Config

	currentRandRound *randomness.Round
}

// New constructs an Orchestrator for a fresh game.
func New(gameID protocol.GameID, seatCfg session.Config, payoutCfg dice.Config) *Orchestrator {
	return &Orchestrator{
		Session: protocol.NewSession(gameID),
		Bank:    ledger.New(),
		Seats:   session.NewManager(seatCfg),
		Cfg:     payoutCfg,
	}
}

// Apply executes every proposal ordered into block against the table's
// state, in order. A failure partway through rolls back every mutation
// the block made so far and leaves the table exactly as it was before
// Apply was called, since Block.StateHash commits every peer to
// identical resulting state regardless of where in the block a
// rejection happened.
func (o *Orchestrator) Apply(block protocol.Block) error {
	balances, escrow := o.Bank.Snapshot()
	seats := o.Seats.Snapshot()
	participants := make(map[protocol.PeerId]struct{}, len(o.Session.Participants))
	for k, v := range o.Session.Participants {
		participants[k] = v
	}
	activeBets := append([]protocol.Bet(nil), o.Session.ActiveBets...)
	phase := o.Session.Phase
	shooter := o.Session.Shooter
	randRound := o.currentRandRound

	for _, p := range block.OrderedProposals {
		if err := o.applyOne(p); err != nil {
			o.Bank.Restore(balances, escrow)
			o.Seats.Restore(seats)
			o.Session.Participants = participants
			o.Session.ActiveBets = activeBets
			o.Session.Phase = phase
			o.Session.Shooter = shooter
			o.currentRandRound = randRound
			return fmt.Errorf("apply proposal %s: %w", p.ID, err)
		}
	}
	o.Session.Round = block.Round
	o.Session.History = append(o.Session.History, block)
	return nil
}

func (o *Orchestrator) applyOne(p protocol.Proposal) error {
	if !p.VerifySignature() {
		return fmt.Errorf("%w: proposal signature invalid", protocol.ErrValidation)
	}
	switch p.Payload.Kind {
	case protocol.PayloadJoin:
		return o.applyJoin(p.Payload.Join)
	case protocol.PayloadLeave:
		return o.applyLeave(p.Payload.Leave)
	case protocol.PayloadPlaceBet:
		return o.applyPlaceBet(p.Payload.PlaceBet)
	case protocol.PayloadCommit:
		return o.applyCommit(p.Proposer, p.Payload.Commit)
	case protocol.PayloadReveal:
		return o.applyReveal(p.Proposer, p.Payload.Reveal)
	case protocol.PayloadRollResolve:
		return o.applyRollResolve()
	case protocol.PayloadPhaseAdvance:
		return nil // phase advances only as a side effect of RollResolve
	case protocol.PayloadCheckpoint:
		return nil // checkpointing is a read-only snapshot, handled by the caller
	default:
		return fmt.Errorf("%w: unknown payload kind %v", protocol.ErrValidation, p.Payload.Kind)
	}
}

func (o *Orchestrator) applyJoin(j *protocol.JoinPayload) error {
	if err := o.Seats.Join(j.Peer); err != nil {
		return err
	}
	o.Session.Participants[j.Peer] = struct{}{}
	if err := o.Bank.BuyIn(j.Peer, j.InitialBuyIn); err != nil {
		delete(o.Session.Participants, j.Peer)
		o.Seats.Leave(j.Peer)
		return err
	}
	var zero protocol.PeerId
	if o.Session.Shooter == zero {
		o.Session.Shooter = j.Peer
	}
	return nil
}

func (o *Orchestrator) applyLeave(l *protocol.LeavePayload) error {
	if l.Reason == protocol.LeaveDrain {
		return o.Seats.SetDraining(l.Peer)
	}
	bal := o.Bank.Balance(l.Peer)
	if bal > 0 {
		if err := o.Bank.CashOut(l.Peer, bal); err != nil {
			return err
		}
	}
	if l.Peer == o.Session.Shooter {
		o.Session.Shooter = nextShooter(o.Session.Participants, l.Peer)
	}
	delete(o.Session.Participants, l.Peer)
	o.Seats.Leave(l.Peer)
	return nil
}

func (o *Orchestrator) applyPlaceBet(bet *protocol.Bet) error {
	if _, ok := o.Session.Participants[bet.Bettor]; !ok {
		return fmt.Errorf("%w: bettor %s is not seated", protocol.ErrValidation, bet.Bettor)
	}
	if !dice.IsPassLineAllowed(bet.Kind, o.Session.Phase) {
		return fmt.Errorf("%w: bet kind %v not allowed in phase %v", protocol.ErrValidation, bet.Kind, o.Session.Phase)
	}
	key := ledger.EscrowKey{Round: bet.Round, ProposalID: bet.ID}
	if err := o.Bank.Escrow(bet.Bettor, key, bet.Amount); err != nil {
		return err
	}
	o.Session.ActiveBets = append(o.Session.ActiveBets, *bet)
	return nil
}

func (o *Orchestrator) applyCommit(peer protocol.PeerId, c *protocol.CommitPayload) error {
	o.ensureRandRound()
	return o.currentRandRound.AddCommitment(protocol.Commitment{Peer: peer, Round: o.Session.Round, Hash: c.Hash})
}

func (o *Orchestrator) applyReveal(peer protocol.PeerId, r *protocol.RevealPayload) error {
	o.ensureRandRound()
	reveal := protocol.Reveal{Peer: peer, Round: o.Session.Round, Nonce: r.Nonce, Signature: r.Signature}
	if err := o.currentRandRound.AddReveal(reveal, peer); err != nil {
		return err
	}
	o.Seats.ResetMissedReveals(peer)
	return nil
}

func (o *Orchestrator) ensureRandRound() {
	if o.currentRandRound == nil || o.currentRandRound.RoundID != o.Session.Round {
		o.currentRandRound = randomness.NewRound(o.Session.Round, len(o.Session.Participants))
	}
}

// applyRollResolve derives this round's dice roll from the accumulated
// commit-reveal entropy, settles every active bet against it, and
// advances the come-out/point phase. If the round never collected
// enough reveals to derive entropy, it aborts instead: every bet placed
// for the round is refunded in full and peers who missed their reveal
// are charged a strike, evicting (and cashing out) anyone who has now
// missed three rounds in a row.
func (o *Orchestrator) applyRollResolve() error {
	o.ensureRandRound()
	if !o.currentRandRound.Ready() {
		return o.abortRoundForMissingReveals()
	}
	entropy, err := o.currentRandRound.DeriveEntropy()
	if err != nil {
		return err
	}
	roll := randomness.DeriveDiceRoll(entropy)
	o.currentRandRound = nil
	return o.ResolveRoll(roll)
}

// ResolveRoll settles every active bet against roll and advances the
// come-out/point phase accordingly, rotating the shooter on a
// seven-out. It is split out from applyRollResolve so the settlement
// logic can be exercised directly against a chosen roll, without
// needing to drive a full commit-reveal round to produce one.
func (o *Orchestrator) ResolveRoll(roll protocol.DiceRoll) error {
	remaining := o.Session.ActiveBets[:0]
	for _, bet := range o.Session.ActiveBets {
		if bet.Outcome != protocol.BetActive {
			continue
		}
		result := dice.Resolve(bet, o.Session.Phase, roll, o.Cfg)
		if !result.Resolved {
			if (bet.Kind == protocol.BetCome || bet.Kind == protocol.BetDontCome) && bet.ComePoint == 0 && protocol.IsValidPoint(roll.Total()) {
				bet.ComePoint = roll.Total()
			}
			remaining = append(remaining, bet)
			continue
		}
		key := ledger.EscrowKey{Round: bet.Round, ProposalID: bet.ID}
		switch result.Outcome {
		case protocol.BetResolvedWon:
			if _, err := o.Bank.Settle(bet.Bettor, key, result.Num, result.Den); err != nil {
				return err
			}
		case protocol.BetPushed:
			if err := o.Bank.Release(bet.Bettor, key); err != nil {
				return err
			}
		case protocol.BetResolvedLost:
			if _, err := o.Bank.Forfeit(key, House); err != nil {
				return err
			}
		}
		bet.Outcome = result.Outcome
	}
	wasPoint := !o.Session.Phase.IsComeOut()
	o.Session.ActiveBets = remaining
	o.Session.Phase = dice.AdvancePhase(o.Session.Phase, roll)
	if wasPoint && roll.Total() == 7 {
		o.Session.Shooter = nextShooter(o.Session.Participants, o.Session.Shooter)
	}
	return nil
}

// nextShooter rotates the dice to the next seated participant after
// current, in ascending PeerId order, wrapping around; it returns
// current unchanged if no other participant is seated.
func nextShooter(participants map[protocol.PeerId]struct{}, current protocol.PeerId) protocol.PeerId {
	ordered := make([]protocol.PeerId, 0, len(participants))
	for p := range participants {
		ordered = append(ordered, p)
	}
	if len(ordered) == 0 {
		return current
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && lessPeerID(ordered[j], ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	for i, p := range ordered {
		if p == current {
			return ordered[(i+1)%len(ordered)]
		}
	}
	return ordered[0]
}

func lessPeerID(a, b protocol.PeerId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Checkpoint syncs Session.Balances from the ledger and produces a
// signed checkpoint file for the table's current state, suitable for
// writing to disk and later loading back with Restore.
func (o *Orchestrator) Checkpoint(ks *crypto.Keystore) ([]byte, error) {
	o.Session.Balances, _ = o.Bank.Snapshot()
	snap := protocol.SnapshotSession(o.Session)
	snapBytes, err := protocol.EncodeCanonical(snap)
	if err != nil {
		return nil, err
	}
	body := protocol.CheckpointBody{
		GameID:    o.Session.GameID,
		Round:     o.Session.Round,
		StateHash: crypto.Hash(snapBytes),
		Snapshot:  snap,
	}
	return protocol.EncodeCheckpointFile(body, ks)
}

// RestoreFromCheckpoint replaces the table's ledger balances, seated
// participants, active bets, and phase with those recorded in a
// checkpoint file signed by signer. It does not replay history: the
// restored orchestrator starts fresh from the checkpointed round, the
// same way a restarted node resumes play instead of re-deriving state
// proposal by proposal.
func RestoreFromCheckpoint(raw []byte, signer protocol.PeerId, seatCfg session.Config, payoutCfg dice.Config) (*Orchestrator, error) {
	body, err := protocol.DecodeCheckpointFile(raw, signer)
	if err != nil {
		return nil, err
	}
	o := New(body.GameID, seatCfg, payoutCfg)
	o.Session.Round = body.Round
	o.Session.Phase = body.Snapshot.Phase
	o.Session.ActiveBets = append([]protocol.Bet(nil), body.Snapshot.ActiveBets...)
	copy(o.Session.Shooter[:], body.Snapshot.Shooter)

	balances := make(map[protocol.PeerId]protocol.Tokens, len(body.Snapshot.Balances))
	for _, entry := range body.Snapshot.Balances {
		var peer protocol.PeerId
		copy(peer[:], entry.Peer)
		balances[peer] = protocol.Tokens(entry.Balance)
	}
	o.Bank.Restore(balances, map[ledger.EscrowKey]protocol.Tokens{})

	for _, raw := range body.Snapshot.Participants {
		var peer protocol.PeerId
		copy(peer[:], raw)
		o.Session.Participants[peer] = struct{}{}
		if err := o.Seats.Join(peer); err != nil {
			return nil, fmt.Errorf("restore participant %s: %w", peer, err)
		}
	}
	o.Session.Balances = balances
	return o, nil
}

func (o *Orchestrator) abortRoundForMissingReveals() error {
	for _, peer := range o.currentRandRound.MissingReveals() {
		if evicted := o.Seats.RecordMissedReveal(peer); evicted {
			if bal := o.Bank.Balance(peer); bal > 0 {
				if err := o.Bank.CashOut(peer, bal); err != nil {
					return err
				}
			}
			if peer == o.Session.Shooter {
				o.Session.Shooter = nextShooter(o.Session.Participants, peer)
			}
			delete(o.Session.Participants, peer)
		}
	}
	for _, bet := range o.Session.ActiveBets {
		if bet.Outcome != protocol.BetActive {
			continue
		}
		key := ledger.EscrowKey{Round: bet.Round, ProposalID: bet.ID}
		if err := o.Bank.Release(bet.Bettor, key); err != nil {
			return err
		}
	}
	o.Session.ActiveBets = nil
	o.currentRandRound = nil
	return nil
}
