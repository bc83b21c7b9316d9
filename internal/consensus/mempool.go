package consensus

import (
	"sync"

	"github.com/bitcraps/core/internal/protocol"
)

// DefaultPerPeerQuota bounds how many pending proposals a single peer
// may contribute to one assembled block: high enough to cover one
// commit, one reveal and (for the round's leader) one roll-resolve
// proposal per round with headroom to spare, low enough that a peer
// flooding the mempool cannot crowd out the rest of the round.
const DefaultPerPeerQuota = 8

// Mempool holds proposals a leader has observed but not yet ordered
// into a candidate block. Admission preserves global arrival order;
// assembly enforces a per-peer quota so proposals are aggregated
// fairly instead of however one fast or malicious peer happens to
// flood them in.
type Mempool struct {
	mu      sync.Mutex
	pending []protocol.Proposal
}

// NewMempool constructs an empty Mempool.
func NewMempool() *Mempool {
	return &Mempool{}
}

// Submit admits p into the pending queue in arrival order. The caller
// is responsible for verifying p's signature before submission.
func (m *Mempool) Submit(p protocol.Proposal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, p)
}

// Assemble drains the pending queue into an ordered slice for a
// candidate block, preserving arrival order but admitting at most
// perPeerQuota proposals from any single peer. Proposals beyond a
// peer's quota are left pending for a later block rather than
// dropped, so a bursty peer is merely delayed, not starved.
func (m *Mempool) Assemble(perPeerQuota int) []protocol.Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := make(map[protocol.PeerId]int, len(m.pending))
	var ordered, remaining []protocol.Proposal
	for _, p := range m.pending {
		if perPeerQuota > 0 && taken[p.Proposer] >= perPeerQuota {
			remaining = append(remaining, p)
			continue
		}
		taken[p.Proposer]++
		ordered = append(ordered, p)
	}
	m.pending = remaining
	return ordered
}

// Len reports how many proposals are currently pending assembly.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
