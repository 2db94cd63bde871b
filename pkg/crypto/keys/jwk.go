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
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// JWK encodes a P-256 public key as a JSON Web Key (RFC 7517). The key ID is
// the RFC 7638 thumbprint. secp256k1 keys are not representable by go-jose.
func (k *PublicKey) JWK() ([]byte, error) {
	jwk, err := k.joseKey()
	if err != nil {
		return nil, err
	}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to compute thumbprint: %w", err)
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumb)
	return jwk.MarshalJSON()
}

// Thumbprint returns the base64url RFC 7638 SHA-256 thumbprint of a P-256 key.
func (k *PublicKey) Thumbprint() (string, error) {
	jwk, err := k.joseKey()
	if err != nil {
		return "", err
	}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumb), nil
}

// ParseJWK decodes a JSON Web Key holding a P-256 public key.
func ParseJWK(data []byte) (*PublicKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	pub, ok := jwk.Key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: JWK does not hold a P-256 public key", ErrMalformedKey)
	}
	return NewManager(P256(), nil).DecodeUncompressed(uncompressedPoint(p256.ScalarSize(), pub.X, pub.Y))
}

func (k *PublicKey) joseKey() (*jose.JSONWebKey, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", types.ErrInvalidArgument)
	}
	if !sameCurve(k.curve, P256()) {
		return nil, fmt.Errorf("%w: JWK export supports P-256 only, key uses %s",
			types.ErrInvalidArgument, k.curve.Name())
	}
	return &jose.JSONWebKey{Key: p256.ecdsaPublic(k.point)}, nil
}
