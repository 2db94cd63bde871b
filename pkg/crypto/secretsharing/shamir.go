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

package secretsharing

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/field"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

var (
	// ErrInvalidThreshold is returned when threshold < 1 or exceeds the participant count
	ErrInvalidThreshold = types.ErrInvalidThreshold

	// ErrDuplicateParticipant is returned when two participants share an x-coordinate
	ErrDuplicateParticipant = types.ErrDuplicateParticipant

	// ErrInvalidParticipant is returned for nil or zero x-coordinates
	ErrInvalidParticipant = types.ErrInvalidParticipant

	// ErrInsufficientShares is returned when fewer shares than required are supplied
	ErrInsufficientShares = types.ErrInsufficientShares

	// ErrArithmetic is returned when interpolation degenerates (repeated x values)
	ErrArithmetic = types.ErrArithmetic
)

// Share is one point (X, Y) on the secret polynomial.
type Share struct {
	X *big.Int
	Y *big.Int
}

// Sharer splits and recovers scalars in a prime field. It holds no mutable
// state; the random source must be safe for concurrent use if the Sharer
// is shared.
type Sharer struct {
	field  *field.Field
	random io.Reader
}

// New creates a Sharer over f. A nil random source selects crypto/rand.
func New(f *field.Field, random io.Reader) *Sharer {
	if random == nil {
		random = rand.Reader
	}
	return &Sharer{field: f, random: random}
}

// NewForCurve creates a Sharer over the scalar field of curve.
func NewForCurve(curve keys.Curve, random io.Reader) *Sharer {
	return New(curve.Field(), random)
}

// Field returns the field shares live in.
func (s *Sharer) Field() *field.Field {
	return s.field
}

// Construct splits secret into one share per x-coordinate in xs, any
// threshold of which recover it. The secret is reduced mod n first.
func (s *Sharer) Construct(secret *big.Int, threshold int, xs []*big.Int) ([]Share, error) {
	if secret == nil {
		return nil, fmt.Errorf("%w: secret cannot be nil", types.ErrInvalidArgument)
	}
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1, got %d", ErrInvalidThreshold, threshold)
	}
	if threshold > len(xs) {
		return nil, fmt.Errorf("%w: threshold (%d) exceeds participant count (%d)",
			ErrInvalidThreshold, threshold, len(xs))
	}

	points, err := s.participants(xs)
	if err != nil {
		return nil, err
	}

	coeffs := make([]*big.Int, threshold)
	defer wipe(coeffs)
	coeffs[0] = s.field.Reduce(secret)
	for i := 1; i < threshold; i++ {
		c, err := s.field.Random(s.random)
		if err != nil {
			return nil, fmt.Errorf("failed to generate random coefficients: %w", err)
		}
		coeffs[i] = c
	}

	shares := make([]Share, len(points))
	for i, x := range points {
		shares[i] = Share{X: x, Y: s.evaluate(coeffs, x)}
	}
	return shares, nil
}

// participants reduces and validates the x-coordinates.
func (s *Sharer) participants(xs []*big.Int) ([]*big.Int, error) {
	seen := make(map[string]int, len(xs))
	points := make([]*big.Int, len(xs))
	for i, x := range xs {
		if x == nil {
			return nil, fmt.Errorf("%w: participant %d has nil x-coordinate", ErrInvalidParticipant, i)
		}
		r := s.field.Reduce(x)
		if r.Sign() == 0 {
			return nil, fmt.Errorf("%w: participant %d has x-coordinate 0 mod n", ErrInvalidParticipant, i)
		}
		key := string(r.Bytes())
		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: participants %d and %d share an x-coordinate",
				ErrDuplicateParticipant, j, i)
		}
		seen[key] = i
		points[i] = r
	}
	return points, nil
}

// evaluate computes p(x) with Horner's method:
// p(x) = a0 + x(a1 + x(a2 + ... + x*a(t-1)))
func (s *Sharer) evaluate(coeffs []*big.Int, x *big.Int) *big.Int {
	result := new(big.Int).Set(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = s.field.Add(s.field.Mul(result, x), coeffs[i])
	}
	return result
}

// RecoverSecret interpolates the supplied shares at x = 0.
//
// No arity check is possible here: passing fewer shares than the threshold
// used at construction silently yields a wrong value. Shares with equal
// x-coordinates fail with ErrArithmetic.
func (s *Sharer) RecoverSecret(shares []Share) (*big.Int, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: at least one share is required", ErrInsufficientShares)
	}

	xs := make([]*big.Int, len(shares))
	for i, share := range shares {
		if share.X == nil || share.Y == nil {
			return nil, fmt.Errorf("%w: share %d is incomplete", types.ErrInvalidArgument, i)
		}
		xs[i] = s.field.Reduce(share.X)
	}

	secret := new(big.Int)
	for i, share := range shares {
		basis, err := s.lagrange(i, xs)
		if err != nil {
			return nil, err
		}
		secret = s.field.Add(secret, s.field.Mul(share.Y, basis))
	}
	return secret, nil
}

// RecoverSecretWithThreshold is RecoverSecret with an explicit arity check:
// it fails with ErrInsufficientShares when fewer than threshold shares are
// supplied. All supplied shares take part in the interpolation.
func (s *Sharer) RecoverSecretWithThreshold(shares []Share, threshold int) (*big.Int, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1, got %d", ErrInvalidThreshold, threshold)
	}
	if len(shares) < threshold {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInsufficientShares, threshold, len(shares))
	}
	return s.RecoverSecret(shares)
}

// LagrangeCoefficient returns the basis value l_i(0) for the i-th
// x-coordinate of xs.
func (s *Sharer) LagrangeCoefficient(i int, xs []*big.Int) (*big.Int, error) {
	if i < 0 || i >= len(xs) {
		return nil, fmt.Errorf("%w: index %d out of range [0, %d)", types.ErrInvalidArgument, i, len(xs))
	}
	reduced := make([]*big.Int, len(xs))
	for j, x := range xs {
		if x == nil {
			return nil, fmt.Errorf("%w: x-coordinate %d is nil", types.ErrInvalidArgument, j)
		}
		reduced[j] = s.field.Reduce(x)
	}
	return s.lagrange(i, reduced)
}

func (s *Sharer) lagrange(i int, xs []*big.Int) (*big.Int, error) {
	numerator := big.NewInt(1)
	denominator := big.NewInt(1)
	for j, xj := range xs {
		if j == i {
			continue
		}
		diff := s.field.Sub(xs[i], xj)
		if diff.Sign() == 0 {
			return nil, fmt.Errorf("%w: shares %d and %d have the same x-coordinate", ErrArithmetic, i, j)
		}
		numerator = s.field.Mul(numerator, s.field.Neg(xj))
		denominator = s.field.Mul(denominator, diff)
	}
	return s.field.Div(numerator, denominator)
}

func wipe(values []*big.Int) {
	for _, v := range values {
		if v == nil {
			continue
		}
		words := v.Bits()
		for i := range words {
			words[i] = 0
		}
		v.SetInt64(0)
	}
}
