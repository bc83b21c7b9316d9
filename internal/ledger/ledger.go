// Package ledger tracks per-participant token balances and in-flight
// escrow for a single game session, keeping the overflow-checked
// arithmetic mandatory for anything that moves real funds and the
// saturating arithmetic used only for cosmetic display totals strictly
// separate.
package ledger

import (
	"fmt"
	"sync"

	"github.com/bitcraps/core/internal/protocol"
)

// EscrowKey identifies one bet's held stake within a round, mirroring
// how a bet is addressed everywhere else in the system.
type EscrowKey struct {
	Round      protocol.RoundId
	ProposalID protocol.ProposalID
}

// Ledger is the token bank for one game. All mutating methods are safe
// for concurrent use; a game's consensus and gaming packages call into
// the same Ledger instance from a single per-game goroutine, so the
// mutex exists to protect checkpoint reads racing with that goroutine,
// not to serialize concurrent writers.
type Ledger struct {
	mu       sync.Mutex
	balances map[protocol.PeerId]protocol.Tokens
	escrow   map[EscrowKey]protocol.Tokens
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[protocol.PeerId]protocol.Tokens),
		escrow:   make(map[EscrowKey]protocol.Tokens),
	}
}

// Balance returns peer's free (non-escrowed) balance.
func (l *Ledger) Balance(peer protocol.PeerId) protocol.Tokens {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[peer]
}

// BuyIn credits peer with amount, the only operation allowed to create
// tokens (a participant joining with an initial stake).
func (l *Ledger) BuyIn(peer protocol.PeerId, amount protocol.Tokens) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum, err := l.balances[peer].CheckedAdd(amount)
	if err != nil {
		return err
	}
	l.balances[peer] = sum
	return nil
}

// CashOut debits peer's free balance, the only operation allowed to
// destroy tokens.
func (l *Ledger) CashOut(peer protocol.PeerId, amount protocol.Tokens) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rem, err := l.balances[peer].CheckedSub(amount)
	if err != nil {
		return fmt.Errorf("cash out %s: %w", peer, err)
	}
	l.balances[peer] = rem
	return nil
}

// Escrow moves amount out of peer's free balance into the named bet's
// hold, so the bettor cannot spend stake twice while it is active.
func (l *Ledger) Escrow(peer protocol.PeerId, key EscrowKey, amount protocol.Tokens) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.escrow[key]; exists {
		return fmt.Errorf("%w: escrow %v already held", protocol.ErrProtocol, key)
	}
	rem, err := l.balances[peer].CheckedSub(amount)
	if err != nil {
		return fmt.Errorf("escrow bet for %s: %w", peer, err)
	}
	l.balances[peer] = rem
	l.escrow[key] = amount
	return nil
}

// Release returns an escrowed stake to peer's free balance without any
// win/loss adjustment, used when a bet is withdrawn or a round aborts.
func (l *Ledger) Release(peer protocol.PeerId, key EscrowKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.escrow[key]
	if !ok {
		return fmt.Errorf("%w: no escrow held for %v", protocol.ErrProtocol, key)
	}
	delete(l.escrow, key)
	sum, err := l.balances[peer].CheckedAdd(held)
	if err != nil {
		return err
	}
	l.balances[peer] = sum
	return nil
}

// Settle resolves a winning escrowed bet, crediting peer with the
// original held stake plus stake*num/den in winnings (a bet that pays
// "2:1" returns 3x the stake: the original plus 2x on top). A push or a
// loss does not go through Settle; callers use Release for a push and
// Forfeit for a loss. The ratio multiply uses Tokens.CheckedMulRatio,
// the same 128-bit-intermediate pattern used for slashing elsewhere in
// this lineage, so a large bet times a large numerator cannot silently
// wrap.
func (l *Ledger) Settle(peer protocol.PeerId, key EscrowKey, num, den uint64) (protocol.Tokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.escrow[key]
	if !ok {
		return 0, fmt.Errorf("%w: no escrow held for %v", protocol.ErrProtocol, key)
	}
	winnings, err := held.CheckedMulRatio(num, den)
	if err != nil {
		return 0, err
	}
	total, err := held.CheckedAdd(winnings)
	if err != nil {
		return 0, err
	}
	delete(l.escrow, key)
	sum, err := l.balances[peer].CheckedAdd(total)
	if err != nil {
		return 0, err
	}
	l.balances[peer] = sum
	return total, nil
}

// Forfeit removes an escrowed stake without returning it to peer,
// crediting it to the house account instead — the losing side of a
// resolved bet.
func (l *Ledger) Forfeit(key EscrowKey, house protocol.PeerId) (protocol.Tokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.escrow[key]
	if !ok {
		return 0, fmt.Errorf("%w: no escrow held for %v", protocol.ErrProtocol, key)
	}
	delete(l.escrow, key)
	sum, err := l.balances[house].CheckedAdd(held)
	if err != nil {
		return 0, err
	}
	l.balances[house] = sum
	return held, nil
}

// TotalEscrowed returns the sum of every outstanding escrow hold.
func (l *Ledger) TotalEscrowed() (protocol.Tokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total protocol.Tokens
	var err error
	for _, amt := range l.escrow {
		total, err = total.CheckedAdd(amt)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Snapshot captures the current balances and escrow holds so a failed
// block application can be rolled back without leaving partial
// mutations from the proposals that ran before the one that failed.
func (l *Ledger) Snapshot() (map[protocol.PeerId]protocol.Tokens, map[EscrowKey]protocol.Tokens) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balances := make(map[protocol.PeerId]protocol.Tokens, len(l.balances))
	for k, v := range l.balances {
		balances[k] = v
	}
	escrow := make(map[EscrowKey]protocol.Tokens, len(l.escrow))
	for k, v := range l.escrow {
		escrow[k] = v
	}
	return balances, escrow
}

// Restore replaces the ledger's balances and escrow holds with a
// previously captured snapshot.
func (l *Ledger) Restore(balances map[protocol.PeerId]protocol.Tokens, escrow map[EscrowKey]protocol.Tokens) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = balances
	l.escrow = escrow
}

// Total returns the sum of every free balance plus every outstanding
// escrow, the invariant quantity that must not move except via BuyIn or
// CashOut.
func (l *Ledger) Total() (protocol.Tokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total protocol.Tokens
	var err error
	for _, bal := range l.balances {
		total, err = total.CheckedAdd(bal)
		if err != nil {
			return 0, err
		}
	}
	for _, amt := range l.escrow {
		total, err = total.CheckedAdd(amt)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
