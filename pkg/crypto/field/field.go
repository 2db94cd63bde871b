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

// Package field implements arithmetic in the prime field Z/nZ, where n is
// the order of an elliptic-curve group.
//
// Scalars are exchanged as *big.Int values. Every operation reduces its
// inputs first and returns a fresh, fully reduced result in [0, n); inputs
// are never modified. The arithmetic itself runs on saferith's fixed-size
// natural numbers so that timing does not depend on operand values.
//
// Example usage:
//
//	f, _ := field.New(elliptic.P256().Params().N)
//	sum := f.Add(a, b)
//	inv, err := f.Inverse(a) // err wraps ErrArithmetic when a == 0
package field

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// ErrArithmetic is returned when an inverse does not exist.
var ErrArithmetic = types.ErrArithmetic

var one = big.NewInt(1)

// Field is Z/nZ for a fixed modulus n. A Field is immutable and safe for
// concurrent use.
type Field struct {
	n       *big.Int
	modulus *saferith.Modulus
	bits    int
	byteLen int
}

// New creates a field for the given modulus. The modulus should be prime;
// only n > 1 is enforced here.
func New(modulus *big.Int) (*Field, error) {
	if modulus == nil {
		return nil, fmt.Errorf("%w: modulus cannot be nil", types.ErrInvalidArgument)
	}
	if modulus.Cmp(one) <= 0 {
		return nil, fmt.Errorf("%w: modulus must be greater than 1, got %s",
			types.ErrInvalidArgument, modulus.String())
	}
	n := new(big.Int).Set(modulus)
	return &Field{
		n:       n,
		modulus: saferith.ModulusFromBytes(n.Bytes()),
		bits:    n.BitLen(),
		byteLen: (n.BitLen() + 7) / 8,
	}, nil
}

// MustNew is New for moduli known at compile time, such as curve orders.
func MustNew(modulus *big.Int) *Field {
	f, err := New(modulus)
	if err != nil {
		panic(err)
	}
	return f
}

// Modulus returns a copy of n.
func (f *Field) Modulus() *big.Int {
	return new(big.Int).Set(f.n)
}

// ByteLen returns the fixed width of an encoded element.
func (f *Field) ByteLen() int {
	return f.byteLen
}

// Reduce returns a mod n in [0, n). Negative inputs are handled.
func (f *Field) Reduce(a *big.Int) *big.Int {
	return new(big.Int).Mod(a, f.n)
}

// InRange reports whether 0 <= a < n without reducing.
func (f *Field) InRange(a *big.Int) bool {
	return a != nil && a.Sign() >= 0 && a.Cmp(f.n) < 0
}

// Add returns a + b mod n.
func (f *Field) Add(a, b *big.Int) *big.Int {
	z := new(saferith.Nat).ModAdd(f.nat(a), f.nat(b), f.modulus)
	return z.Big()
}

// Sub returns a - b mod n.
func (f *Field) Sub(a, b *big.Int) *big.Int {
	z := new(saferith.Nat).ModSub(f.nat(a), f.nat(b), f.modulus)
	return z.Big()
}

// Neg returns -a mod n.
func (f *Field) Neg(a *big.Int) *big.Int {
	z := new(saferith.Nat).ModNeg(f.nat(a), f.modulus)
	return z.Big()
}

// Mul returns a * b mod n.
func (f *Field) Mul(a, b *big.Int) *big.Int {
	z := new(saferith.Nat).ModMul(f.nat(a), f.nat(b), f.modulus)
	return z.Big()
}

// Inverse returns a^-1 mod n. It fails with ErrArithmetic when
// gcd(a, n) != 1, which for a prime modulus means a == 0 mod n.
func (f *Field) Inverse(a *big.Int) (*big.Int, error) {
	r := f.Reduce(a)
	if new(big.Int).GCD(nil, nil, r, f.n).Cmp(one) != 0 {
		return nil, fmt.Errorf("%w: %s has no inverse modulo the field order", ErrArithmetic, r.String())
	}
	if f.n.Bit(0) == 0 {
		// saferith inversion requires an odd modulus
		return new(big.Int).ModInverse(r, f.n), nil
	}
	z := new(saferith.Nat).ModInverse(f.natReduced(r), f.modulus)
	return z.Big(), nil
}

// Div returns a * b^-1 mod n.
func (f *Field) Div(a, b *big.Int) (*big.Int, error) {
	inv, err := f.Inverse(b)
	if err != nil {
		return nil, err
	}
	return f.Mul(a, inv), nil
}

// IsZero reports whether a == 0 mod n.
func (f *Field) IsZero(a *big.Int) bool {
	return f.Reduce(a).Sign() == 0
}

// Equal reports whether a == b mod n.
func (f *Field) Equal(a, b *big.Int) bool {
	return f.nat(a).Eq(f.nat(b)) == 1
}

// Random returns an element drawn uniformly from [0, n).
func (f *Field) Random(random io.Reader) (*big.Int, error) {
	if random == nil {
		return nil, fmt.Errorf("%w: random source cannot be nil", types.ErrInvalidArgument)
	}
	v, err := rand.Int(random, f.n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample field element: %w", err)
	}
	return v, nil
}

// Bytes encodes a mod n as a fixed-width big-endian byte string.
func (f *Field) Bytes(a *big.Int) []byte {
	buf := make([]byte, f.byteLen)
	return f.Reduce(a).FillBytes(buf)
}

// SetBytes decodes a big-endian byte string and reduces it mod n.
func (f *Field) SetBytes(b []byte) *big.Int {
	return f.Reduce(new(big.Int).SetBytes(b))
}

func (f *Field) nat(a *big.Int) *saferith.Nat {
	return f.natReduced(f.Reduce(a))
}

func (f *Field) natReduced(r *big.Int) *saferith.Nat {
	return new(saferith.Nat).SetBig(r, f.bits)
}

// Add returns a + b mod modulus.
func Add(a, b, modulus *big.Int) (*big.Int, error) {
	f, err := New(modulus)
	if err != nil {
		return nil, err
	}
	return f.Add(a, b), nil
}

// Multiply returns a * b mod modulus.
func Multiply(a, b, modulus *big.Int) (*big.Int, error) {
	f, err := New(modulus)
	if err != nil {
		return nil, err
	}
	return f.Mul(a, b), nil
}

// ModInverse returns a^-1 mod modulus, or ErrArithmetic if gcd(a, modulus) != 1.
func ModInverse(a, modulus *big.Int) (*big.Int, error) {
	f, err := New(modulus)
	if err != nil {
		return nil, err
	}
	return f.Inverse(a)
}
