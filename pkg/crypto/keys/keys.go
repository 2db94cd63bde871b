// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recovery.
//
// go-recovery is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package keys manages elliptic-curve key pairs for the recovery scheme.
//
// Two kinds of key pair exist: the master key pair, whose private scalar is
// split among approvers, and device (approver) key pairs used for signing
// and as hybrid-encryption recipients. Both are represented by KeyPair.
//
// Public keys are carried as uncompressed points (0x04 || X || Y). Private
// keys are scalar-backed so that a scalar recovered from shares can be turned
// back into a usable key with KeyFromScalar.
//
// Example usage:
//
//	km := keys.NewManager(keys.P256(), rand.Reader)
//	kp, _ := km.GenerateKeyPair()
//	encoded := km.EncodeUncompressed(kp.Public)
//	pub, err := km.DecodeUncompressed(encoded)
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/jeremyhahn/go-recovery/pkg/types"
)

var (
	// ErrMalformedKey is returned for encodings of the wrong length or points off the curve
	ErrMalformedKey = types.ErrMalformedKey

	// ErrInvalidScalar is returned for private scalars of zero or at least the group order
	ErrInvalidScalar = types.ErrInvalidScalar

	// ErrCurveMismatch is returned when keys of different curves are combined
	ErrCurveMismatch = types.ErrCurveMismatch
)

// PublicKey is a point on a Curve.
type PublicKey struct {
	curve Curve
	point []byte
}

// Curve returns the key's curve.
func (k *PublicKey) Curve() Curve {
	return k.curve
}

// Bytes returns a copy of the uncompressed point encoding.
func (k *PublicKey) Bytes() []byte {
	out := make([]byte, len(k.point))
	copy(out, k.point)
	return out
}

// Equal reports whether both keys are the same point on the same curve.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return sameCurve(k.curve, other.curve) && subtle.ConstantTimeCompare(k.point, other.point) == 1
}

// String returns a short hex fingerprint suitable for logs.
func (k *PublicKey) String() string {
	sum := sha256.Sum256(k.point)
	return fmt.Sprintf("%s:%s", k.curve.Name(), hex.EncodeToString(sum[:8]))
}

// MarshalBinary encodes the key as a curve tag followed by the uncompressed point.
func (k *PublicKey) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+len(k.point))
	out = append(out, k.curve.tag())
	return append(out, k.point...), nil
}

// UnmarshalBinary decodes the output of MarshalBinary.
func (k *PublicKey) UnmarshalBinary(data []byte) error {
	pub, err := ParsePublicKey(data)
	if err != nil {
		return err
	}
	*k = *pub
	return nil
}

// ParsePublicKey decodes a tagged public key produced by MarshalBinary.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: encoded key too short", ErrMalformedKey)
	}
	curve, err := curveByTag(data[0])
	if err != nil {
		return nil, err
	}
	return NewManager(curve, nil).DecodeUncompressed(data[1:])
}

// PrivateKey is a scalar d in [1, n) together with its public point d*G.
type PrivateKey struct {
	curve Curve
	d     *big.Int
	pub   *PublicKey
}

// Curve returns the key's curve.
func (k *PrivateKey) Curve() Curve {
	return k.curve
}

// Public returns the public half of the key.
func (k *PrivateKey) Public() *PublicKey {
	return k.pub
}

// Scalar returns a copy of the private scalar.
func (k *PrivateKey) Scalar() *big.Int {
	return new(big.Int).Set(k.d)
}

// Bytes returns the scalar as a fixed-width big-endian byte string.
func (k *PrivateKey) Bytes() []byte {
	return k.d.FillBytes(make([]byte, k.curve.ScalarSize()))
}

// ECDH returns the x-coordinate of d*P for a peer public key P on the same curve.
func (k *PrivateKey) ECDH(peer *PublicKey) ([]byte, error) {
	if peer == nil {
		return nil, fmt.Errorf("%w: peer public key cannot be nil", types.ErrInvalidArgument)
	}
	if !sameCurve(k.curve, peer.curve) {
		return nil, fmt.Errorf("%w: private key uses %s, peer uses %s",
			ErrCurveMismatch, k.curve.Name(), peer.curve.Name())
	}
	d := k.Bytes()
	defer zero(d)
	return k.curve.sharedSecret(d, peer.point)
}

// Destroy overwrites the private scalar. The key is unusable afterwards.
func (k *PrivateKey) Destroy() {
	if k == nil || k.d == nil {
		return
	}
	words := k.d.Bits()
	for i := range words {
		words[i] = 0
	}
	k.d.SetInt64(0)
}

// KeyPair couples a private key with its public key.
type KeyPair struct {
	Private *PrivateKey
	Public  *PublicKey
}

// Manager generates, converts and encodes keys on one curve. A Manager holds
// no mutable state and may be shared; the random source must be safe for
// concurrent use (crypto/rand.Reader is).
type Manager struct {
	curve  Curve
	random io.Reader
}

// NewManager creates a manager for curve. A nil random source selects crypto/rand.
func NewManager(curve Curve, random io.Reader) *Manager {
	if curve == nil {
		curve = P256()
	}
	if random == nil {
		random = rand.Reader
	}
	return &Manager{curve: curve, random: random}
}

// Curve returns the manager's curve.
func (m *Manager) Curve() Curve {
	return m.curve
}

// GenerateKeyPair draws a fresh scalar uniformly from [1, n).
// An error here means the random source failed.
func (m *Manager) GenerateKeyPair() (*KeyPair, error) {
	f := m.curve.Field()
	for {
		d, err := f.Random(m.random)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key pair: %w", err)
		}
		if d.Sign() == 0 {
			continue
		}
		priv, err := m.KeyFromScalar(d)
		if err != nil {
			return nil, err
		}
		return &KeyPair{Private: priv, Public: priv.pub}, nil
	}
}

// KeyFromScalar rebuilds a private key from a raw scalar, typically one
// reconstructed from shares. The scalar must lie in [1, n); it is not reduced.
func (m *Manager) KeyFromScalar(scalar *big.Int) (*PrivateKey, error) {
	if scalar == nil || scalar.Sign() <= 0 || !m.curve.Field().InRange(scalar) {
		return nil, fmt.Errorf("%w: scalar must be in [1, n) for %s", ErrInvalidScalar, m.curve.Name())
	}
	d := new(big.Int).Set(scalar)
	buf := d.FillBytes(make([]byte, m.curve.ScalarSize()))
	defer zero(buf)

	point, err := m.curve.baseMult(buf)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{
		curve: m.curve,
		d:     d,
		pub:   &PublicKey{curve: m.curve, point: point},
	}, nil
}

// PublicKeyFromPrivateKey recomputes d*G for the key's scalar.
func (m *Manager) PublicKeyFromPrivateKey(priv *PrivateKey) (*PublicKey, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", types.ErrInvalidArgument)
	}
	if !sameCurve(m.curve, priv.curve) {
		return nil, fmt.Errorf("%w: manager uses %s, key uses %s", ErrCurveMismatch, m.curve.Name(), priv.curve.Name())
	}
	buf := priv.Bytes()
	defer zero(buf)
	point, err := m.curve.baseMult(buf)
	if err != nil {
		return nil, err
	}
	return &PublicKey{curve: m.curve, point: point}, nil
}

// EncodeUncompressed returns 0x04 || X || Y.
func (m *Manager) EncodeUncompressed(pub *PublicKey) []byte {
	return pub.Bytes()
}

// DecodeUncompressed parses 0x04 || X || Y and checks the point is on the curve.
func (m *Manager) DecodeUncompressed(b []byte) (*PublicKey, error) {
	if err := m.curve.checkPoint(b); err != nil {
		return nil, err
	}
	point := make([]byte, len(b))
	copy(point, b)
	return &PublicKey{curve: m.curve, point: point}, nil
}

// EncodeCompressed returns the 33-byte SEC1 compressed encoding.
func (m *Manager) EncodeCompressed(pub *PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", types.ErrInvalidArgument)
	}
	if !sameCurve(m.curve, pub.curve) {
		return nil, fmt.Errorf("%w: manager uses %s, key uses %s", ErrCurveMismatch, m.curve.Name(), pub.curve.Name())
	}
	return m.curve.compress(pub.point)
}

// DecodeCompressed parses a SEC1 compressed point.
func (m *Manager) DecodeCompressed(b []byte) (*PublicKey, error) {
	point, err := m.curve.decompress(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{curve: m.curve, point: point}, nil
}

// Sign produces a DER-encoded ECDSA signature over SHA-256(msg).
func (m *Manager) Sign(priv *PrivateKey, msg []byte) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", types.ErrInvalidArgument)
	}
	if !sameCurve(m.curve, priv.curve) {
		return nil, fmt.Errorf("%w: manager uses %s, key uses %s", ErrCurveMismatch, m.curve.Name(), priv.curve.Name())
	}
	digest := sha256.Sum256(msg)
	d := priv.Bytes()
	defer zero(d)
	sig, err := m.curve.sign(m.random, d, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// Verify checks a signature produced by Sign.
func (m *Manager) Verify(pub *PublicKey, msg, sig []byte) bool {
	if pub == nil || len(sig) == 0 || !sameCurve(m.curve, pub.curve) {
		return false
	}
	digest := sha256.Sum256(msg)
	return m.curve.verify(pub.point, digest[:], sig)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
