// Package transport defines the peer-to-peer messaging boundary every
// consensus and randomness message crosses, plus an in-memory
// implementation used by tests and the devnet harness. Real BLE/TCP
// transports are a deployment concern outside this module.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitcraps/core/internal/protocol"
)

// Transport is the boundary every peer-to-peer message crosses: framed
// byte payloads addressed by PeerId, with no assumption about the
// underlying medium (BLE mesh, TCP, or an in-process fake).
type Transport interface {
	// Send delivers a framed message to peer. It returns once the
	// message is handed to the transport, not once it is received.
	Send(ctx context.Context, peer protocol.PeerId, frame []byte) error

	// Broadcast delivers a framed message to every known peer except
	// self.
	Broadcast(ctx context.Context, self protocol.PeerId, frame []byte) error

	// Recv blocks until a frame addressed to self arrives.
	Recv(ctx context.Context, self protocol.PeerId) ([]byte, error)

	// Peers lists every peer currently reachable on the transport.
	Peers() []protocol.PeerId
}

// InMemory is a reference Transport backed by per-peer channels, useful
// for tests and the single-process devnet harness.
type InMemory struct {
	mu    sync.Mutex
	peers map[protocol.PeerId]chan []byte
}

// NewInMemory constructs an empty in-memory transport.
func NewInMemory() *InMemory {
	return &InMemory{peers: make(map[protocol.PeerId]chan []byte)}
}

// inMemoryQueueDepth bounds how many unreceived frames accumulate per
// peer before Send blocks, mirroring the bounded-queue backpressure the
// real transport is expected to provide.
const inMemoryQueueDepth = 64

// Register adds peer to the transport, allocating its inbound queue.
func (t *InMemory) Register(peer protocol.PeerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.peers[peer]; !ok {
		t.peers[peer] = make(chan []byte, inMemoryQueueDepth)
	}
}

// Send delivers frame to peer's inbound queue.
func (t *InMemory) Send(ctx context.Context, peer protocol.PeerId, frame []byte) error {
	t.mu.Lock()
	ch, ok := t.peers[peer]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown peer %s", protocol.ErrResource, peer)
	}
	select {
	case ch <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast delivers frame to every registered peer except self.
func (t *InMemory) Broadcast(ctx context.Context, self protocol.PeerId, frame []byte) error {
	for _, peer := range t.Peers() {
		if peer == self {
			continue
		}
		if err := t.Send(ctx, peer, frame); err != nil {
			return err
		}
	}
	return nil
}

// Recv blocks until a frame addressed to self arrives.
func (t *InMemory) Recv(ctx context.Context, self protocol.PeerId) ([]byte, error) {
	t.mu.Lock()
	ch, ok := t.peers[self]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown peer %s", protocol.ErrResource, self)
	}
	select {
	case frame := <-ch:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peers lists every registered peer.
func (t *InMemory) Peers() []protocol.PeerId {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.PeerId, 0, len(t.peers))
	for peer := range t.peers {
		out = append(out, peer)
	}
	return out
}
