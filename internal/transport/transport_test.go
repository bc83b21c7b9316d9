package transport

import (
	"context"
	"testing"
	"time"

	"github.com/bitcraps/core/internal/protocol"
)

func TestSendAndRecvRoundTrip(t *testing.T) {
	tr := NewInMemory()
	var a, b protocol.PeerId
	a[0] = 1
	b[0] = 2
	tr.Register(a)
	tr.Register(b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := tr.Send(ctx, b, []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := tr.Recv(ctx, b)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("recv = %q, want %q", got, "hello")
	}
}

func TestBroadcastExcludesSelf(t *testing.T) {
	tr := NewInMemory()
	var a, b, c protocol.PeerId
	a[0], b[0], c[0] = 1, 2, 3
	tr.Register(a)
	tr.Register(b)
	tr.Register(c)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := tr.Broadcast(ctx, a, []byte("ping")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if _, err := tr.Recv(ctx, b); err != nil {
		t.Fatalf("recv b: %v", err)
	}
	if _, err := tr.Recv(ctx, c); err != nil {
		t.Fatalf("recv c: %v", err)
	}

	shortCtx, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, err := tr.Recv(shortCtx, a); err == nil {
		t.Fatalf("expected self not to receive its own broadcast")
	}
}

func TestSendToUnknownPeerFails(t *testing.T) {
	tr := NewInMemory()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var ghost protocol.PeerId
	ghost[0] = 0xee
	if err := tr.Send(ctx, ghost, []byte("x")); err == nil {
		t.Fatalf("expected send to unregistered peer to fail")
	}
}
