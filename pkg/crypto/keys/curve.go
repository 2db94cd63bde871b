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
	"strings"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/field"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

const (
	// CurveNameP256 is secp256r1 / NIST P-256, the default curve
	CurveNameP256 = "P-256"

	// CurveNameSecp256k1 is the Koblitz curve used by Bitcoin and Ethereum
	CurveNameSecp256k1 = "secp256k1"
)

// Curve is a named prime-order elliptic curve. Implementations are provided
// by this package only; use P256 or Secp256k1.
type Curve interface {
	// Name returns the curve's standard name
	Name() string

	// Order returns a copy of the group order n
	Order() *big.Int

	// Field returns the scalar field Z/nZ
	Field() *field.Field

	// ScalarSize returns the byte width of scalars and coordinates
	ScalarSize() int

	// PointSize returns the length of an uncompressed point encoding
	PointSize() int

	// CompressedPointSize returns the length of a compressed point encoding
	CompressedPointSize() int

	tag() byte
	baseMult(d []byte) ([]byte, error)
	checkPoint(uncompressed []byte) error
	compress(uncompressed []byte) ([]byte, error)
	decompress(compressed []byte) ([]byte, error)
	sharedSecret(d []byte, uncompressed []byte) ([]byte, error)
	sign(random io.Reader, d []byte, digest []byte) ([]byte, error)
	verify(uncompressed []byte, digest []byte, sig []byte) bool
}

var curves = []Curve{P256(), Secp256k1()}

// CurveByName looks up a curve by name. Matching is case-insensitive and
// accepts the common aliases secp256r1 and prime256v1 for P-256.
func CurveByName(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "p-256", "p256", "secp256r1", "prime256v1":
		return P256(), nil
	case "secp256k1":
		return Secp256k1(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported curve %q", types.ErrInvalidArgument, name)
	}
}

func curveByTag(tag byte) (Curve, error) {
	for _, c := range curves {
		if c.tag() == tag {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown curve tag 0x%02x", ErrMalformedKey, tag)
}

// sameCurve compares curves by tag; curve values are singletons but the
// interface comparison would also accept distinct instances.
func sameCurve(a, b Curve) bool {
	return a != nil && b != nil && a.tag() == b.tag()
}

// uncompressedPoint lays out 0x04 || X || Y with fixed-width coordinates.
func uncompressedPoint(size int, x, y *big.Int) []byte {
	out := make([]byte, 1+2*size)
	out[0] = 0x04
	x.FillBytes(out[1 : 1+size])
	y.FillBytes(out[1+size:])
	return out
}
