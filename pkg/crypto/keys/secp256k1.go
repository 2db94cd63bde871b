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
	"fmt"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/field"
)

type secp256k1Curve struct {
	f *field.Field
}

var k256 = &secp256k1Curve{f: field.MustNew(secp256k1.S256().N)}

// Secp256k1 returns the secp256k1 curve backed by decred's implementation.
// Signatures are deterministic (RFC 6979).
func Secp256k1() Curve {
	return k256
}

func (c *secp256k1Curve) Name() string             { return CurveNameSecp256k1 }
func (c *secp256k1Curve) Order() *big.Int          { return c.f.Modulus() }
func (c *secp256k1Curve) Field() *field.Field      { return c.f }
func (c *secp256k1Curve) ScalarSize() int          { return 32 }
func (c *secp256k1Curve) PointSize() int           { return 65 }
func (c *secp256k1Curve) CompressedPointSize() int { return 33 }
func (c *secp256k1Curve) tag() byte                { return 0x02 }

func (c *secp256k1Curve) baseMult(d []byte) ([]byte, error) {
	if err := c.checkScalar(d); err != nil {
		return nil, err
	}
	return secp256k1.PrivKeyFromBytes(d).PubKey().SerializeUncompressed(), nil
}

func (c *secp256k1Curve) checkScalar(d []byte) error {
	v := new(big.Int).SetBytes(d)
	if len(d) != c.ScalarSize() || v.Sign() == 0 || !c.f.InRange(v) {
		return fmt.Errorf("%w: scalar outside [1, n)", ErrInvalidScalar)
	}
	return nil
}

func (c *secp256k1Curve) parse(uncompressed []byte) (*secp256k1.PublicKey, error) {
	if len(uncompressed) != c.PointSize() || uncompressed[0] != 0x04 {
		return nil, fmt.Errorf("%w: expected %d-byte uncompressed secp256k1 point, got %d bytes",
			ErrMalformedKey, c.PointSize(), len(uncompressed))
	}
	pub, err := secp256k1.ParsePubKey(uncompressed)
	if err != nil {
		return nil, fmt.Errorf("%w: point is not on secp256k1", ErrMalformedKey)
	}
	return pub, nil
}

func (c *secp256k1Curve) checkPoint(uncompressed []byte) error {
	_, err := c.parse(uncompressed)
	return err
}

func (c *secp256k1Curve) compress(uncompressed []byte) ([]byte, error) {
	pub, err := c.parse(uncompressed)
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

func (c *secp256k1Curve) decompress(compressed []byte) ([]byte, error) {
	if len(compressed) != c.CompressedPointSize() || (compressed[0] != 0x02 && compressed[0] != 0x03) {
		return nil, fmt.Errorf("%w: expected %d-byte compressed secp256k1 point, got %d bytes",
			ErrMalformedKey, c.CompressedPointSize(), len(compressed))
	}
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: point is not on secp256k1", ErrMalformedKey)
	}
	return pub.SerializeUncompressed(), nil
}

func (c *secp256k1Curve) sharedSecret(d []byte, uncompressed []byte) ([]byte, error) {
	if err := c.checkScalar(d); err != nil {
		return nil, err
	}
	pub, err := c.parse(uncompressed)
	if err != nil {
		return nil, err
	}
	return secp256k1.GenerateSharedSecret(secp256k1.PrivKeyFromBytes(d), pub), nil
}

func (c *secp256k1Curve) sign(_ io.Reader, d []byte, digest []byte) ([]byte, error) {
	if err := c.checkScalar(d); err != nil {
		return nil, err
	}
	return secpecdsa.Sign(secp256k1.PrivKeyFromBytes(d), digest).Serialize(), nil
}

func (c *secp256k1Curve) verify(uncompressed []byte, digest []byte, sig []byte) bool {
	pub, err := c.parse(uncompressed)
	if err != nil {
		return false
	}
	parsed, err := secpecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, pub)
}
