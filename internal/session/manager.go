package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/bitcraps/core/internal/protocol"
)

// Status is the lifecycle state of one participant's seat.
type Status uint8

const (
	StatusActive Status = iota
	StatusDraining
	StatusEvicted
)

type participant struct {
	status        Status
	missedReveals int
}

// Manager tracks table membership and per-round reveal compliance for
// one game. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	seats map[protocol.PeerId]*participant
	inbox *semaphore.Weighted
}

// inboxCapacity bounds how many unprocessed inbound messages a single
// game's manager will admit before backpressure kicks in, preventing an
// abusive peer from growing an unbounded queue in front of the
// single-threaded per-game processing loop.
const inboxCapacity = 256

// NewManager constructs a Manager with cfg, filling unset fields with
// DefaultConfig.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:   cfg.withDefaults(),
		seats: make(map[protocol.PeerId]*participant),
		inbox: semaphore.NewWeighted(inboxCapacity),
	}
}

// Config returns the manager's effective configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Join seats peer, failing if the table is already at MaxParticipants
// or peer already holds a seat.
func (m *Manager) Join(peer protocol.PeerId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seats[peer]; ok {
		return fmt.Errorf("%w: peer %s already seated", protocol.ErrValidation, peer)
	}
	if m.activeCountLocked() >= m.cfg.MaxParticipants {
		return fmt.Errorf("%w: table is full at %d participants", protocol.ErrValidation, m.cfg.MaxParticipants)
	}
	m.seats[peer] = &participant{status: StatusActive}
	return nil
}

// Leave removes peer from the table regardless of reason; the reason is
// recorded by the caller as a Leave proposal payload, not here.
func (m *Manager) Leave(peer protocol.PeerId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seats, peer)
}

// SetDraining marks peer as leaving once its current obligations (open
// bets, pending reveals) clear, rather than immediately.
func (m *Manager) SetDraining(peer protocol.PeerId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.seats[peer]
	if !ok {
		return fmt.Errorf("%w: peer %s not seated", protocol.ErrValidation, peer)
	}
	p.status = StatusDraining
	return nil
}

// RecordMissedReveal increments peer's consecutive missed-reveal count
// and reports whether this crossed MaxMissedReveals, auto-evicting the
// peer if so.
func (m *Manager) RecordMissedReveal(peer protocol.PeerId) (evicted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.seats[peer]
	if !ok {
		return false
	}
	p.missedReveals++
	if p.missedReveals >= m.cfg.MaxMissedReveals {
		p.status = StatusEvicted
		delete(m.seats, peer)
		return true
	}
	return false
}

// ResetMissedReveals clears peer's consecutive missed-reveal count after
// a reveal is received on time.
func (m *Manager) ResetMissedReveals(peer protocol.PeerId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.seats[peer]; ok {
		p.missedReveals = 0
	}
}

// Participants returns the currently seated peers (active or draining).
func (m *Manager) Participants() []protocol.PeerId {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.PeerId, 0, len(m.seats))
	for peer := range m.seats {
		out = append(out, peer)
	}
	return out
}

// CanStartRound reports whether enough participants are seated to begin
// a new round.
func (m *Manager) CanStartRound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked() >= m.cfg.MinParticipants
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, p := range m.seats {
		if p.status != StatusEvicted {
			n++
		}
	}
	return n
}

// Snapshot captures the current seat table so a failed block
// application can be rolled back.
func (m *Manager) Snapshot() map[protocol.PeerId]participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[protocol.PeerId]participant, len(m.seats))
	for k, v := range m.seats {
		out[k] = *v
	}
	return out
}

// Restore replaces the seat table with a previously captured snapshot.
func (m *Manager) Restore(snap map[protocol.PeerId]participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seats := make(map[protocol.PeerId]*participant, len(snap))
	for k, v := range snap {
		cp := v
		seats[k] = &cp
	}
	m.seats = seats
}

// AdmitMessage blocks until the per-game inbound queue has room for one
// more message, providing backpressure against a flood of inbound wire
// traffic for a single game. Release must be called once the message
// has been processed.
func (m *Manager) AdmitMessage(ctx context.Context) error {
	return m.inbox.Acquire(ctx, 1)
}

// ReleaseMessage returns one slot to the inbound queue.
func (m *Manager) ReleaseMessage() {
	m.inbox.Release(1)
}
