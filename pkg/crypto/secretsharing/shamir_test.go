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
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/field"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigs(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

// combinations returns every k-subset of [0, n)
func combinations(n, k int) [][]int {
	var out [][]int
	var rec func(start int, current []int)
	rec = func(start int, current []int) {
		if len(current) == k {
			out = append(out, append([]int(nil), current...))
			return
		}
		for i := start; i < n; i++ {
			rec(i+1, append(current, i))
		}
	}
	rec(0, nil)
	return out
}

func pick(shares []Share, idx []int) []Share {
	out := make([]Share, len(idx))
	for i, j := range idx {
		out[i] = shares[j]
	}
	return out
}

func masterScalar(t *testing.T, curve keys.Curve) *big.Int {
	t.Helper()
	kp, err := keys.NewManager(curve, rand.Reader).GenerateKeyPair()
	require.NoError(t, err)
	return kp.Private.Scalar()
}

func TestConstruct_Validation(t *testing.T) {
	sharer := NewForCurve(keys.P256(), nil)
	n := keys.P256().Order()
	secret := big.NewInt(42)

	tests := []struct {
		name      string
		secret    *big.Int
		threshold int
		xs        []*big.Int
		wantErr   error
	}{
		{"valid", secret, 3, bigs(1, 2, 3, 4, 5), nil},
		{"threshold equals count", secret, 5, bigs(1, 2, 3, 4, 5), nil},
		{"threshold one", secret, 1, bigs(9), nil},
		{"threshold zero", secret, 0, bigs(1, 2, 3), ErrInvalidThreshold},
		{"threshold negative", secret, -1, bigs(1, 2, 3), ErrInvalidThreshold},
		{"threshold above count", secret, 4, bigs(1, 2, 3), ErrInvalidThreshold},
		{"no participants", secret, 1, nil, ErrInvalidThreshold},
		{"duplicate", secret, 2, bigs(1, 2, 2), ErrDuplicateParticipant},
		{"duplicate after reduction", secret, 2, []*big.Int{big.NewInt(7), new(big.Int).Add(n, big.NewInt(7))}, ErrDuplicateParticipant},
		{"zero x", secret, 2, bigs(0, 1, 2), ErrInvalidParticipant},
		{"x equal to order", secret, 2, []*big.Int{big.NewInt(1), n}, ErrInvalidParticipant},
		{"nil x", secret, 2, []*big.Int{big.NewInt(1), nil}, ErrInvalidParticipant},
		{"nil secret", nil, 2, bigs(1, 2), types.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := sharer.Construct(tt.secret, tt.threshold, tt.xs)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, shares)
				return
			}
			require.NoError(t, err)
			assert.Len(t, shares, len(tt.xs))
		})
	}
}

func TestRecover_EverySubsetOfThreshold(t *testing.T) {
	for _, curve := range []keys.Curve{keys.P256(), keys.Secp256k1()} {
		t.Run(curve.Name(), func(t *testing.T) {
			sharer := NewForCurve(curve, rand.Reader)
			secret := masterScalar(t, curve)
			xs := bigs(11, 42, 7, 99, 3)

			shares, err := sharer.Construct(secret, 3, xs)
			require.NoError(t, err)
			require.Len(t, shares, 5)

			for _, idx := range combinations(len(shares), 3) {
				subset := pick(shares, idx)
				got, err := sharer.RecoverSecret(subset)
				require.NoError(t, err)
				assert.Equal(t, 0, secret.Cmp(got), "subset %v", idx)

				// Order independence
				reversed := []Share{subset[2], subset[0], subset[1]}
				got, err = sharer.RecoverSecret(reversed)
				require.NoError(t, err)
				assert.Equal(t, 0, secret.Cmp(got), "reordered subset %v", idx)
			}
		})
	}
}

func TestRecover_ConcreteScenario(t *testing.T) {
	sharer := NewForCurve(keys.P256(), rand.Reader)
	secret := masterScalar(t, keys.P256())

	shares, err := sharer.Construct(secret, 3, bigs(11, 42, 7, 99, 3))
	require.NoError(t, err)

	byX := make(map[int64]Share, len(shares))
	for _, s := range shares {
		byX[s.X.Int64()] = s
	}

	first, err := sharer.RecoverSecret([]Share{byX[11], byX[42], byX[7]})
	require.NoError(t, err)
	second, err := sharer.RecoverSecret([]Share{byX[99], byX[3], byX[11]})
	require.NoError(t, err)

	assert.Equal(t, 0, first.Cmp(second))
	assert.Equal(t, 0, first.Cmp(secret))
}

func TestRecover_AllSharesAndSupersets(t *testing.T) {
	sharer := NewForCurve(keys.Secp256k1(), rand.Reader)
	secret := masterScalar(t, keys.Secp256k1())
	xs, err := NewParticipantIDs(sharer.Field(), rand.Reader, 7)
	require.NoError(t, err)

	shares, err := sharer.Construct(secret, 4, xs)
	require.NoError(t, err)

	for k := 4; k <= 7; k++ {
		got, err := sharer.RecoverSecret(shares[:k])
		require.NoError(t, err)
		assert.Equal(t, 0, secret.Cmp(got), "k=%d", k)
	}
}

func TestRecover_BelowThresholdIsWrong(t *testing.T) {
	sharer := NewForCurve(keys.P256(), rand.Reader)

	for trial := 0; trial < 20; trial++ {
		secret := masterScalar(t, keys.P256())
		shares, err := sharer.Construct(secret, 3, bigs(11, 42, 7, 99, 3))
		require.NoError(t, err)

		for _, idx := range combinations(len(shares), 2) {
			got, err := sharer.RecoverSecret(pick(shares, idx))
			require.NoError(t, err, "interpolation itself does not fail")
			assert.NotEqual(t, 0, secret.Cmp(got), "trial %d subset %v", trial, idx)
		}
	}
}

// Over GF(11) with threshold 3, any two shares take every pair of values
// exactly once as (a1, a2) ranges over the field, whatever the secret.
func TestSecrecy_ExhaustiveToyField(t *testing.T) {
	f := field.MustNew(big.NewInt(11))
	sharer := New(f, nil)
	x1, x2 := big.NewInt(3), big.NewInt(8)

	var reference map[[2]int64]int
	for s := int64(0); s < 11; s++ {
		counts := make(map[[2]int64]int)
		for a1 := int64(0); a1 < 11; a1++ {
			for a2 := int64(0); a2 < 11; a2++ {
				coeffs := bigs(s, a1, a2)
				y1 := sharer.evaluate(coeffs, x1)
				y2 := sharer.evaluate(coeffs, x2)
				counts[[2]int64{y1.Int64(), y2.Int64()}]++
			}
		}
		require.Len(t, counts, 121, "secret %d", s)
		for pair, c := range counts {
			require.Equal(t, 1, c, "secret %d pair %v", s, pair)
		}
		if reference == nil {
			reference = counts
		}
		assert.Equal(t, reference, counts)
	}
}

func TestRecover_ExhaustiveToyField(t *testing.T) {
	f := field.MustNew(big.NewInt(13))
	sharer := New(f, rand.Reader)
	xs := bigs(1, 5, 9, 12)

	for s := int64(0); s < 13; s++ {
		shares, err := sharer.Construct(big.NewInt(s), 3, xs)
		require.NoError(t, err)
		for _, idx := range combinations(len(shares), 3) {
			got, err := sharer.RecoverSecret(pick(shares, idx))
			require.NoError(t, err)
			assert.Equal(t, s, got.Int64(), "secret %d subset %v", s, idx)
		}
	}
}

func TestConstruct_ThresholdOne(t *testing.T) {
	sharer := NewForCurve(keys.P256(), nil)
	secret := big.NewInt(123456789)

	shares, err := sharer.Construct(secret, 1, bigs(4, 5, 6))
	require.NoError(t, err)
	for _, s := range shares {
		assert.Equal(t, 0, secret.Cmp(s.Y))

		got, err := sharer.RecoverSecret([]Share{s})
		require.NoError(t, err)
		assert.Equal(t, 0, secret.Cmp(got))
	}
}

func TestConstruct_ReducesSecret(t *testing.T) {
	curve := keys.P256()
	sharer := NewForCurve(curve, nil)
	secret := new(big.Int).Add(curve.Order(), big.NewInt(5))
	original := new(big.Int).Set(secret)

	shares, err := sharer.Construct(secret, 2, bigs(1, 2, 3))
	require.NoError(t, err)

	got, err := sharer.RecoverSecret(shares[1:])
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Int64())
	assert.Equal(t, 0, original.Cmp(secret), "caller's secret must not be modified")
	for _, s := range shares {
		assert.True(t, sharer.Field().InRange(s.X))
		assert.True(t, sharer.Field().InRange(s.Y))
	}
}

func TestConstruct_FreshCoefficients(t *testing.T) {
	sharer := NewForCurve(keys.P256(), rand.Reader)
	secret := big.NewInt(99)
	xs := bigs(1, 2, 3)

	a, err := sharer.Construct(secret, 2, xs)
	require.NoError(t, err)
	b, err := sharer.Construct(secret, 2, xs)
	require.NoError(t, err)

	assert.NotEqual(t, 0, a[0].Y.Cmp(b[0].Y))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestConstruct_FailingRandom(t *testing.T) {
	sharer := NewForCurve(keys.P256(), failingReader{})

	_, err := sharer.Construct(big.NewInt(1), 2, bigs(1, 2))
	assert.Error(t, err)

	// Threshold one draws no coefficients
	_, err = sharer.Construct(big.NewInt(1), 1, bigs(1, 2))
	assert.NoError(t, err)
}

func TestRecoverSecret_Errors(t *testing.T) {
	sharer := NewForCurve(keys.P256(), nil)

	_, err := sharer.RecoverSecret(nil)
	assert.True(t, errors.Is(err, ErrInsufficientShares))

	dup := []Share{
		{X: big.NewInt(3), Y: big.NewInt(10)},
		{X: big.NewInt(3), Y: big.NewInt(20)},
	}
	_, err = sharer.RecoverSecret(dup)
	assert.True(t, errors.Is(err, ErrArithmetic))
	assert.Equal(t, types.KindInput, types.KindOf(err))

	_, err = sharer.RecoverSecret([]Share{{X: big.NewInt(1)}})
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestRecoverSecretWithThreshold(t *testing.T) {
	sharer := NewForCurve(keys.P256(), rand.Reader)
	secret := masterScalar(t, keys.P256())

	shares, err := sharer.Construct(secret, 3, bigs(11, 42, 7, 99, 3))
	require.NoError(t, err)

	_, err = sharer.RecoverSecretWithThreshold(shares[:2], 3)
	assert.True(t, errors.Is(err, ErrInsufficientShares))

	_, err = sharer.RecoverSecretWithThreshold(shares, 0)
	assert.True(t, errors.Is(err, ErrInvalidThreshold))

	got, err := sharer.RecoverSecretWithThreshold(shares[2:], 3)
	require.NoError(t, err)
	assert.Equal(t, 0, secret.Cmp(got))
}

func TestLagrangeCoefficient(t *testing.T) {
	sharer := NewForCurve(keys.P256(), nil)
	f := sharer.Field()
	xs := bigs(11, 42, 7, 99, 3)

	// The basis interpolates the constant polynomial 1, so it sums to 1
	sum := new(big.Int)
	for i := range xs {
		l, err := sharer.LagrangeCoefficient(i, xs)
		require.NoError(t, err)
		sum = f.Add(sum, l)
	}
	assert.Equal(t, int64(1), sum.Int64())

	// Two points: l_0(0) = x1 / (x1 - x0)
	f13 := field.MustNew(big.NewInt(13))
	small := New(f13, nil)
	l0, err := small.LagrangeCoefficient(0, bigs(2, 5))
	require.NoError(t, err)
	want, err := f13.Div(big.NewInt(5), big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, 0, want.Cmp(l0))

	_, err = sharer.LagrangeCoefficient(5, xs)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
	_, err = sharer.LagrangeCoefficient(0, bigs(4, 4))
	assert.True(t, errors.Is(err, ErrArithmetic))
}

func TestShareMarshalBinary(t *testing.T) {
	sharer := NewForCurve(keys.P256(), rand.Reader)
	shares, err := sharer.Construct(masterScalar(t, keys.P256()), 2, bigs(11, 42))
	require.NoError(t, err)

	for _, share := range shares {
		data, err := share.MarshalBinary()
		require.NoError(t, err)

		decoded, err := ParseShare(data)
		require.NoError(t, err)
		assert.Equal(t, 0, share.X.Cmp(decoded.X))
		assert.Equal(t, 0, share.Y.Cmp(decoded.Y))
	}

	// Small values are padded to full width
	data, err := Share{X: big.NewInt(1), Y: big.NewInt(2)}.MarshalBinary()
	require.NoError(t, err)
	decoded, err := ParseShare(data)
	require.NoError(t, err)
	assert.Equal(t, int64(1), decoded.X.Int64())
	assert.Equal(t, int64(2), decoded.Y.Int64())
}

func TestShareUnmarshalBinary_Corrupted(t *testing.T) {
	data, err := Share{X: big.NewInt(11), Y: big.NewInt(12345)}.MarshalBinary()
	require.NoError(t, err)

	// Flip a byte inside the Y coordinate
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)/2] ^= 0x01
	_, err = ParseShare(corrupted)
	assert.Error(t, err)

	_, err = ParseShare([]byte("not cbor"))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = Share{X: big.NewInt(1)}.MarshalBinary()
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = Share{X: big.NewInt(-1), Y: big.NewInt(1)}.MarshalBinary()
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestParticipantIDFromSeed(t *testing.T) {
	f := keys.P256().Field()
	seed := []byte("approver seed")

	x, err := ParticipantIDFromSeed(f, seed)
	require.NoError(t, err)

	sum := sha256.Sum256(seed)
	want := new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), f.Modulus())
	assert.Equal(t, 0, want.Cmp(x))

	again, err := ParticipantIDFromSeed(f, seed)
	require.NoError(t, err)
	assert.Equal(t, 0, x.Cmp(again))

	_, err = ParticipantIDFromSeed(f, nil)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestParticipantIDFromSeed_ZeroRejected(t *testing.T) {
	// Find a seed whose digest is 0 mod 3
	f := field.MustNew(big.NewInt(3))
	for i := 0; ; i++ {
		seed := []byte(fmt.Sprintf("seed-%d", i))
		sum := sha256.Sum256(seed)
		if new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), big.NewInt(3)).Sign() != 0 {
			continue
		}
		_, err := ParticipantIDFromSeed(f, seed)
		assert.True(t, errors.Is(err, ErrInvalidParticipant))
		return
	}
}

func TestNewParticipantIDs(t *testing.T) {
	f := keys.Secp256k1().Field()

	ids, err := NewParticipantIDs(f, rand.Reader, 10)
	require.NoError(t, err)
	require.Len(t, ids, 10)

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.Equal(t, 1, id.Sign())
		assert.True(t, f.InRange(id))
		assert.False(t, seen[id.String()], "duplicate id")
		seen[id.String()] = true
	}

	// Every nonzero element of GF(5) is reachable
	small, err := NewParticipantIDs(field.MustNew(big.NewInt(5)), rand.Reader, 4)
	require.NoError(t, err)
	assert.Len(t, small, 4)

	_, err = NewParticipantIDs(field.MustNew(big.NewInt(5)), rand.Reader, 5)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = NewParticipantIDs(f, rand.Reader, 0)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = NewParticipantIDs(f, failingReader{}, 2)
	assert.Error(t, err)
}

func BenchmarkConstruct(b *testing.B) {
	sharer := NewForCurve(keys.P256(), rand.Reader)
	secret := big.NewInt(42)
	xs := bigs(11, 42, 7, 99, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sharer.Construct(secret, 3, xs)
	}
}

func BenchmarkRecoverSecret(b *testing.B) {
	sharer := NewForCurve(keys.P256(), rand.Reader)
	shares, _ := sharer.Construct(big.NewInt(42), 3, bigs(11, 42, 7, 99, 3))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sharer.RecoverSecret(shares[:3])
	}
}
