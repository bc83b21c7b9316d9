package crypto

import (
	"crypto/ed25519"
	"fmt"
	"sync"
)

// PeerId is a 32-byte value equal to an Ed25519 public key.
type PeerId [ed25519.PublicKeySize]byte

func (p PeerId) Bytes() []byte { return p[:] }

func (p PeerId) String() string {
	return bytesToHex(p[:])
}

// PeerIdFromBytes validates and wraps a 32-byte public key.
func PeerIdFromBytes(b []byte) (PeerId, error) {
	var p PeerId
	if len(b) != ed25519.PublicKeySize {
		return p, fmt.Errorf("crypto: peer id must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// Signature is a 64-byte Ed25519 signature, always transmitted alongside
// the signer's PeerId.
type Signature [ed25519.SignatureSize]byte

func (s Signature) Bytes() []byte { return s[:] }

// Keystore holds a single Ed25519 identity and performs all signing for
// it. Signing is serialized by an internal mutex: Ed25519 is
// deterministic, but a shared keystore is treated as non-reentrant
// regardless, guarding it with a single exclusive lock.
type Keystore struct {
	mu      sync.Mutex
	peerID  PeerId
	private ed25519.PrivateKey
}

// NewKeystore generates a fresh identity from the OS CSPRNG.
func NewKeystore() (*Keystore, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate identity: %w", err)
	}
	peerID, err := PeerIdFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Keystore{peerID: peerID, private: priv}, nil
}

// LoadKeystore wraps an existing Ed25519 private key, e.g. one obtained
// from an OS-secured store. The raw key never leaves this package in
// plaintext beyond what the caller already held.
func LoadKeystore(priv ed25519.PrivateKey) (*Keystore, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: unexpected public key type")
	}
	peerID, err := PeerIdFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Keystore{peerID: peerID, private: priv}, nil
}

// PeerID returns this keystore's public identity.
func (k *Keystore) PeerID() PeerId {
	return k.peerID
}

// Sign computes a domain-separated Ed25519 signature over msg: the
// signature covers (context_tag || msg), so a signature produced under
// one KeyContext can never verify under another.
func (k *Keystore) Sign(ctx KeyContext, msg []byte) (Signature, error) {
	if !ctx.Valid() {
		return Signature{}, fmt.Errorf("crypto: invalid key context %d", ctx)
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	signed := ed25519.Sign(k.private, domainSeparate(ctx, msg))
	var sig Signature
	copy(sig[:], signed)
	return sig, nil
}

// Verify checks a domain-separated signature. It never returns an error
// for an invalid signature — verification failure is a first-class
// boolean result, never fatal.
func Verify(ctx KeyContext, msg []byte, sig Signature, pub PeerId) bool {
	if !ctx.Valid() {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), domainSeparate(ctx, msg), sig[:])
}

func domainSeparate(ctx KeyContext, msg []byte) []byte {
	out := make([]byte, 0, 1+len(msg))
	out = append(out, byte(ctx))
	out = append(out, msg...)
	return out
}
