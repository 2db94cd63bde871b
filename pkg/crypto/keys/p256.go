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

package keys

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"io"
	"math/big"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/field"
)

type p256Curve struct {
	f *field.Field
}

var p256 = &p256Curve{f: field.MustNew(elliptic.P256().Params().N)}

// P256 returns the NIST P-256 curve backed by crypto/ecdh and crypto/ecdsa.
func P256() Curve {
	return p256
}

func (c *p256Curve) Name() string             { return CurveNameP256 }
func (c *p256Curve) Order() *big.Int          { return c.f.Modulus() }
func (c *p256Curve) Field() *field.Field      { return c.f }
func (c *p256Curve) ScalarSize() int          { return 32 }
func (c *p256Curve) PointSize() int           { return 65 }
func (c *p256Curve) CompressedPointSize() int { return 33 }
func (c *p256Curve) tag() byte                { return 0x01 }

func (c *p256Curve) baseMult(d []byte) ([]byte, error) {
	priv, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return priv.PublicKey().Bytes(), nil
}

func (c *p256Curve) checkPoint(uncompressed []byte) error {
	if len(uncompressed) != c.PointSize() || uncompressed[0] != 0x04 {
		return fmt.Errorf("%w: expected %d-byte uncompressed P-256 point, got %d bytes",
			ErrMalformedKey, c.PointSize(), len(uncompressed))
	}
	if _, err := ecdh.P256().NewPublicKey(uncompressed); err != nil {
		return fmt.Errorf("%w: point is not on P-256", ErrMalformedKey)
	}
	return nil
}

func (c *p256Curve) compress(uncompressed []byte) ([]byte, error) {
	x, y := c.coordinates(uncompressed)
	return elliptic.MarshalCompressed(elliptic.P256(), x, y), nil
}

func (c *p256Curve) decompress(compressed []byte) ([]byte, error) {
	if len(compressed) != c.CompressedPointSize() {
		return nil, fmt.Errorf("%w: expected %d-byte compressed P-256 point, got %d bytes",
			ErrMalformedKey, c.CompressedPointSize(), len(compressed))
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressed)
	if x == nil {
		return nil, fmt.Errorf("%w: point is not on P-256", ErrMalformedKey)
	}
	return uncompressedPoint(c.ScalarSize(), x, y), nil
}

func (c *p256Curve) sharedSecret(d []byte, uncompressed []byte) ([]byte, error) {
	priv, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	pub, err := ecdh.P256().NewPublicKey(uncompressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return priv.ECDH(pub)
}

func (c *p256Curve) sign(random io.Reader, d []byte, digest []byte) ([]byte, error) {
	return ecdsa.SignASN1(random, c.ecdsaPrivate(d), digest)
}

func (c *p256Curve) verify(uncompressed []byte, digest []byte, sig []byte) bool {
	return ecdsa.VerifyASN1(c.ecdsaPublic(uncompressed), digest, sig)
}

func (c *p256Curve) coordinates(uncompressed []byte) (*big.Int, *big.Int) {
	size := c.ScalarSize()
	x := new(big.Int).SetBytes(uncompressed[1 : 1+size])
	y := new(big.Int).SetBytes(uncompressed[1+size:])
	return x, y
}

func (c *p256Curve) ecdsaPublic(uncompressed []byte) *ecdsa.PublicKey {
	x, y := c.coordinates(uncompressed)
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
}

func (c *p256Curve) ecdsaPrivate(d []byte) *ecdsa.PrivateKey {
	point, _ := c.baseMult(d)
	return &ecdsa.PrivateKey{
		PublicKey: *c.ecdsaPublic(point),
		D:         new(big.Int).SetBytes(d),
	}
}
