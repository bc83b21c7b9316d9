// Command bitcrapsd runs a single-process devnet: it wires a keystore
// per simulated participant, an in-memory transport, a consensus engine
// and a game orchestrator together and plays a fixed number of rounds
// of craps end to end, logging each round's outcome. It exists to
// exercise the full stack together, not as a production server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bitcraps/core/internal/consensus"
	"github.com/bitcraps/core/internal/crypto"
	"github.com/bitcraps/core/internal/dice"
	"github.com/bitcraps/core/internal/gaming"
	"github.com/bitcraps/core/internal/protocol"
	"github.com/bitcraps/core/internal/session"
	"github.com/bitcraps/core/internal/transport"
)

type participant struct {
	ks *crypto.Keystore
	id protocol.PeerId
}

func main() {
	var (
		numPlayers = flag.Int("players", 4, "number of simulated participants")
		rounds     = flag.Int("rounds", 5, "number of dice rounds to play")
		buyIn      = flag.Uint64("buy-in", 10_000_000, "initial buy-in per participant, in atomic token units")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := run(logger, *numPlayers, *rounds, protocol.Tokens(*buyIn)); err != nil {
		logger.Error("devnet run failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, numPlayers, rounds int, buyIn protocol.Tokens) error {
	players := make([]participant, numPlayers)
	peerIDs := make([]protocol.PeerId, numPlayers)
	for i := range players {
		ks, err := crypto.NewKeystore()
		if err != nil {
			return fmt.Errorf("new keystore %d: %w", i, err)
		}
		players[i] = participant{ks: ks, id: ks.PeerID()}
		peerIDs[i] = ks.PeerID()
	}

	net := transport.NewInMemory()
	for _, p := range players {
		net.Register(p.id)
	}

	gameID := protocol.NewGameID()
	orch := gaming.New(gameID, session.Config{MinParticipants: 2, MaxParticipants: numPlayers}, dice.DefaultConfig())
	engine := consensus.NewEngine(peerIDs, orch.Bank, gaming.House)

	logger.Info("devnet starting", "game_id", gameID.String(), "players", numPlayers, "rounds", rounds)

	ctx := context.Background()
	prevBlockID, err := seatPlayers(ctx, orch, players, buyIn)
	if err != nil {
		return fmt.Errorf("seat players: %w", err)
	}

	for round := 0; round < rounds; round++ {
		blockID, err := playRound(ctx, logger, orch, engine, players, prevBlockID)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		prevBlockID = blockID
	}

	logger.Info("devnet finished", "final_phase", orch.Session.Phase.String())
	for _, p := range players {
		logger.Info("final balance", "peer", p.id.String(), "balance", orch.Bank.Balance(p.id).Display())
	}
	return nil
}

func seatPlayers(_ context.Context, orch *gaming.Orchestrator, players []participant, buyIn protocol.Tokens) (protocol.BlockID, error) {
	var proposals []protocol.Proposal
	for _, p := range players {
		payload := protocol.Payload{Kind: protocol.PayloadJoin, Join: &protocol.JoinPayload{Peer: p.id, InitialBuyIn: buyIn}}
		prop := protocol.Proposal{GameID: orch.Session.GameID, Round: orch.Session.Round, Proposer: p.id, Payload: payload, Timestamp: 1}
		signed, err := prop.Sign(p.ks)
		if err != nil {
			return protocol.BlockID{}, err
		}
		proposals = append(proposals, signed)
	}
	block := protocol.Block{Round: orch.Session.Round, OrderedProposals: proposals}
	blockID, err := block.ComputeID()
	if err != nil {
		return protocol.BlockID{}, err
	}
	block.ID = blockID
	if err := orch.Apply(block); err != nil {
		return protocol.BlockID{}, err
	}
	return blockID, nil
}

// playRound runs one dice roll to completion: every participant
// commits and reveals a nonce, each proposal is admitted through the
// table's inbound message queue and submitted to the engine's mempool
// as it is produced, the round's leader aggregates the pending
// proposals into a candidate block chained onto prevHash, and the
// block is voted through Prepare and Commit, finalized, and applied to
// the table. It returns the finalized block's ID so the caller can
// chain the next round's candidate onto it.
func playRound(ctx context.Context, logger *slog.Logger, orch *gaming.Orchestrator, engine *consensus.Engine, players []participant, prevHash protocol.BlockID) (protocol.BlockID, error) {
	round := orch.Session.Round
	leader, err := engine.LeaderFor(round, engine.CurrentView())
	if err != nil {
		return protocol.BlockID{}, fmt.Errorf("select leader: %w", err)
	}

	nonces := make(map[protocol.PeerId][32]byte, len(players))
	for _, p := range players {
		nonce, err := crypto.CommitmentNonce()
		if err != nil {
			return protocol.BlockID{}, err
		}
		nonces[p.id] = nonce
		hash := crypto.CommitmentHash(p.id, uint64(round), nonce)
		payload := protocol.Payload{Kind: protocol.PayloadCommit, Commit: &protocol.CommitPayload{Hash: hash}}
		prop := protocol.Proposal{GameID: orch.Session.GameID, Round: round, Proposer: p.id, Payload: payload, Timestamp: 1}
		signed, err := prop.Sign(p.ks)
		if err != nil {
			return protocol.BlockID{}, err
		}
		if err := submitProposal(ctx, orch, engine, signed); err != nil {
			return protocol.BlockID{}, err
		}
	}
	for _, p := range players {
		revealPayload, err := protocol.SignReveal(p.ks, nonces[p.id])
		if err != nil {
			return protocol.BlockID{}, err
		}
		payload := protocol.Payload{Kind: protocol.PayloadReveal, Reveal: &revealPayload}
		prop := protocol.Proposal{GameID: orch.Session.GameID, Round: round, Proposer: p.id, Payload: payload, Timestamp: 2}
		signed, err := prop.Sign(p.ks)
		if err != nil {
			return protocol.BlockID{}, err
		}
		if err := submitProposal(ctx, orch, engine, signed); err != nil {
			return protocol.BlockID{}, err
		}
	}
	var leaderKS *crypto.Keystore
	for _, p := range players {
		if p.id == leader {
			leaderKS = p.ks
			break
		}
	}
	rollResolve := protocol.Proposal{
		GameID: orch.Session.GameID, Round: round, Proposer: leader,
		Payload: protocol.Payload{Kind: protocol.PayloadRollResolve}, Timestamp: 3,
	}
	rollResolve, err = rollResolve.Sign(leaderKS)
	if err != nil {
		return protocol.BlockID{}, err
	}
	if err := submitProposal(ctx, orch, engine, rollResolve); err != nil {
		return protocol.BlockID{}, err
	}

	block := engine.AssembleBlock(round, leader, prevHash)
	blockID, err := block.ComputeID()
	if err != nil {
		return protocol.BlockID{}, err
	}
	block.ID = blockID

	n := len(players)
	for _, p := range players {
		vote := protocol.Vote{Voter: p.id, ProposalID: blockID, Phase: protocol.VotePrepare, Approve: true, Round: round}
		signed, err := vote.Sign(p.ks)
		if err != nil {
			return protocol.BlockID{}, err
		}
		if err := engine.HandlePrepareVote(signed); err != nil {
			return protocol.BlockID{}, err
		}
	}
	if !engine.PrepareQuorumReached(blockID, n) {
		return protocol.BlockID{}, fmt.Errorf("prepare quorum not reached for round %d", round)
	}
	for _, p := range players {
		vote := protocol.Vote{Voter: p.id, ProposalID: blockID, Phase: protocol.VoteCommit, Approve: true, Round: round}
		signed, err := vote.Sign(p.ks)
		if err != nil {
			return protocol.BlockID{}, err
		}
		if err := engine.HandleCommitVote(signed); err != nil {
			return protocol.BlockID{}, err
		}
	}
	finalized, err := engine.FinalizeIfQuorum(block, n)
	if err != nil {
		return protocol.BlockID{}, err
	}
	if !finalized {
		return protocol.BlockID{}, fmt.Errorf("commit quorum not reached for round %d", round)
	}

	if err := orch.Apply(block); err != nil {
		return protocol.BlockID{}, err
	}
	engine.AdvanceRound()
	// Keep the table's round in step with the engine's, so the next
	// round's proposals and votes carry the round the engine expects.
	orch.Session.Round = engine.CurrentRound()

	logger.Info("round finalized", "round", uint64(round), "leader", leader.String(), "phase", orch.Session.Phase.String())
	return blockID, nil
}

// submitProposal admits one inbound proposal through the table's
// bounded message queue before handing it to the engine's mempool,
// so a burst of commits, reveals and roll-resolves is throttled the
// same way real wire traffic would be instead of bypassing
// backpressure entirely just because this harness drives itself
// in-process.
func submitProposal(ctx context.Context, orch *gaming.Orchestrator, engine *consensus.Engine, p protocol.Proposal) error {
	if err := orch.Seats.AdmitMessage(ctx); err != nil {
		return fmt.Errorf("admit proposal: %w", err)
	}
	defer orch.Seats.ReleaseMessage()
	return engine.SubmitProposal(p)
}
