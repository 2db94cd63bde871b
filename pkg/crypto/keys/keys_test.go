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
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/jeremyhahn/go-recovery/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCurves() []Curve {
	return []Curve{P256(), Secp256k1()}
}

func TestCurveByName(t *testing.T) {
	tests := []struct {
		name      string
		want      string
		wantError bool
	}{
		{"P-256", CurveNameP256, false},
		{"secp256r1", CurveNameP256, false},
		{"prime256v1", CurveNameP256, false},
		{"SECP256K1", CurveNameSecp256k1, false},
		{"P-384", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CurveByName(tt.name)
			if tt.wantError {
				assert.True(t, errors.Is(err, types.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestCurveOrders(t *testing.T) {
	assert.Equal(t, 0, P256().Order().Cmp(elliptic.P256().Params().N))
	assert.Equal(t, 0, Secp256k1().Order().Cmp(secp256k1.S256().N))
}

func TestGenerateKeyPair(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, rand.Reader)

			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)
			require.NotNil(t, kp.Private)
			require.NotNil(t, kp.Public)

			assert.Equal(t, 1, kp.Private.Scalar().Sign())
			assert.True(t, c.Field().InRange(kp.Private.Scalar()))
			assert.Len(t, kp.Public.Bytes(), c.PointSize())
			assert.True(t, kp.Public.Equal(kp.Private.Public()))

			other, err := km.GenerateKeyPair()
			require.NoError(t, err)
			assert.False(t, kp.Public.Equal(other.Public))
		})
	}
}

func TestPublicKeyFromPrivateKey_KnownVector(t *testing.T) {
	km := NewManager(P256(), nil)

	priv, err := km.KeyFromScalar(big.NewInt(1))
	require.NoError(t, err)

	pub, err := km.PublicKeyFromPrivateKey(priv)
	require.NoError(t, err)

	params := elliptic.P256().Params()
	want := uncompressedPoint(32, params.Gx, params.Gy)
	assert.Equal(t, want, km.EncodeUncompressed(pub))
}

func TestPublicKeyFromPrivateKey_Deterministic(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)

			again, err := km.PublicKeyFromPrivateKey(kp.Private)
			require.NoError(t, err)
			assert.True(t, again.Equal(kp.Public))

			rebuilt, err := km.KeyFromScalar(kp.Private.Scalar())
			require.NoError(t, err)
			assert.True(t, rebuilt.Public().Equal(kp.Public))
		})
	}
}

func TestKeyFromScalar_Invalid(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			n := c.Order()

			for name, s := range map[string]*big.Int{
				"nil":      nil,
				"zero":     big.NewInt(0),
				"negative": big.NewInt(-5),
				"order":    n,
				"above":    new(big.Int).Add(n, big.NewInt(1)),
			} {
				_, err := km.KeyFromScalar(s)
				assert.True(t, errors.Is(err, ErrInvalidScalar), name)
			}

			_, err := km.KeyFromScalar(new(big.Int).Sub(n, big.NewInt(1)))
			assert.NoError(t, err)
		})
	}
}

func TestUncompressedRoundTrip(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)

			encoded := km.EncodeUncompressed(kp.Public)
			require.Len(t, encoded, 65)
			assert.Equal(t, byte(0x04), encoded[0])

			decoded, err := km.DecodeUncompressed(encoded)
			require.NoError(t, err)
			assert.True(t, decoded.Equal(kp.Public))
		})
	}
}

func TestDecodeUncompressed_Malformed(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)
			good := km.EncodeUncompressed(kp.Public)

			offCurve := append([]byte(nil), good...)
			offCurve[64] ^= 0x01

			wrongPrefix := append([]byte(nil), good...)
			wrongPrefix[0] = 0x05

			cases := map[string][]byte{
				"empty":        {},
				"short":        good[:64],
				"long":         append(append([]byte(nil), good...), 0x00),
				"off curve":    offCurve,
				"wrong prefix": wrongPrefix,
				"identity":     make([]byte, 65),
			}
			for name, b := range cases {
				_, err := km.DecodeUncompressed(b)
				assert.True(t, errors.Is(err, ErrMalformedKey), name)
			}
		})
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)

			compressed, err := km.EncodeCompressed(kp.Public)
			require.NoError(t, err)
			require.Len(t, compressed, 33)

			decoded, err := km.DecodeCompressed(compressed)
			require.NoError(t, err)
			assert.True(t, decoded.Equal(kp.Public))

			_, err = km.DecodeCompressed(compressed[:32])
			assert.True(t, errors.Is(err, ErrMalformedKey))
		})
	}
}

func TestSignVerify(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, rand.Reader)
			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)

			msg := []byte("123456|1700000000000")
			sig, err := km.Sign(kp.Private, msg)
			require.NoError(t, err)

			assert.True(t, km.Verify(kp.Public, msg, sig))
			assert.False(t, km.Verify(kp.Public, []byte("654321|1700000000000"), sig))

			other, err := km.GenerateKeyPair()
			require.NoError(t, err)
			assert.False(t, km.Verify(other.Public, msg, sig))

			tampered := append([]byte(nil), sig...)
			tampered[len(tampered)-1] ^= 0xff
			assert.False(t, km.Verify(kp.Public, msg, tampered))
			assert.False(t, km.Verify(kp.Public, msg, nil))
			assert.False(t, km.Verify(nil, msg, sig))
		})
	}
}

func TestCurveMismatch(t *testing.T) {
	p := NewManager(P256(), nil)
	k := NewManager(Secp256k1(), nil)

	pkp, err := p.GenerateKeyPair()
	require.NoError(t, err)
	kkp, err := k.GenerateKeyPair()
	require.NoError(t, err)

	_, err = pkp.Private.ECDH(kkp.Public)
	assert.True(t, errors.Is(err, ErrCurveMismatch))

	_, err = k.Sign(pkp.Private, []byte("msg"))
	assert.True(t, errors.Is(err, ErrCurveMismatch))

	_, err = k.PublicKeyFromPrivateKey(pkp.Private)
	assert.True(t, errors.Is(err, ErrCurveMismatch))

	assert.False(t, pkp.Public.Equal(kkp.Public))
}

func TestECDH_Agreement(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			alice, err := km.GenerateKeyPair()
			require.NoError(t, err)
			bob, err := km.GenerateKeyPair()
			require.NoError(t, err)

			ab, err := alice.Private.ECDH(bob.Public)
			require.NoError(t, err)
			ba, err := bob.Private.ECDH(alice.Public)
			require.NoError(t, err)

			assert.Equal(t, ab, ba)
			assert.Len(t, ab, c.ScalarSize())
		})
	}
}

func TestMarshalBinary(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(c.Name(), func(t *testing.T) {
			km := NewManager(c, nil)
			kp, err := km.GenerateKeyPair()
			require.NoError(t, err)

			data, err := kp.Public.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, data, 66)

			var decoded PublicKey
			require.NoError(t, decoded.UnmarshalBinary(data))
			assert.True(t, decoded.Equal(kp.Public))
			assert.Equal(t, c.Name(), decoded.Curve().Name())
		})
	}

	_, err := ParsePublicKey([]byte{0x7f, 0x04})
	assert.True(t, errors.Is(err, ErrMalformedKey))
	_, err = ParsePublicKey(nil)
	assert.True(t, errors.Is(err, ErrMalformedKey))
}

func TestJWK(t *testing.T) {
	km := NewManager(P256(), nil)
	kp, err := km.GenerateKeyPair()
	require.NoError(t, err)

	data, err := kp.Public.JWK()
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "EC", fields["kty"])
	assert.Equal(t, "P-256", fields["crv"])

	thumb, err := kp.Public.Thumbprint()
	require.NoError(t, err)
	assert.Equal(t, thumb, fields["kid"])

	parsed, err := ParseJWK(data)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(kp.Public))

	_, err = ParseJWK([]byte(`{"kty":"oct","k":"AAAA"}`))
	assert.True(t, errors.Is(err, ErrMalformedKey))

	k1, err := NewManager(Secp256k1(), nil).GenerateKeyPair()
	require.NoError(t, err)
	_, err = k1.Public.JWK()
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestDestroy(t *testing.T) {
	km := NewManager(P256(), nil)
	kp, err := km.GenerateKeyPair()
	require.NoError(t, err)

	kp.Private.Destroy()
	assert.Equal(t, 0, kp.Private.Scalar().Sign())

	var nilKey *PrivateKey
	assert.NotPanics(t, func() { nilKey.Destroy() })
}
