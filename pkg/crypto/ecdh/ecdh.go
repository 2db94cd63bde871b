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

// Package ecdh provides Elliptic Curve Diffie-Hellman key agreement between
// recovery keys and HKDF-SHA256 derivation of symmetric keys from the result.
//
// Both P-256 and secp256k1 keys from package keys are supported. The shared
// secret is the x-coordinate of d*P.
//
// Example usage:
//
//	km := keys.NewManager(keys.P256(), rand.Reader)
//	alice, _ := km.GenerateKeyPair()
//	bob, _ := km.GenerateKeyPair()
//
//	aliceSecret, _ := ecdh.DeriveSharedSecret(alice.Private, bob.Public)
//	bobSecret, _ := ecdh.DeriveSharedSecret(bob.Private, alice.Public)
//	// aliceSecret == bobSecret
//
//	encKey, _ := ecdh.DeriveKey(aliceSecret, nil, []byte("encryption"), 32)
package ecdh

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
	"golang.org/x/crypto/hkdf"
)

// MaxKeyLength is the largest output HKDF-SHA256 can produce (255 * 32).
const MaxKeyLength = 255 * sha256.Size

// DeriveSharedSecret performs ECDH between a private key and a peer public
// key on the same curve and returns the raw shared secret.
//
// For actual encryption keys, use DeriveKey with the returned secret.
func DeriveSharedSecret(privateKey *keys.PrivateKey, publicKey *keys.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("%w: private key cannot be nil", types.ErrInvalidArgument)
	}
	if publicKey == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", types.ErrInvalidArgument)
	}

	secret, err := privateKey.ECDH(publicKey)
	if err != nil {
		return nil, fmt.Errorf("ECDH operation failed: %w", err)
	}
	return secret, nil
}

// DeriveKey derives keyLength bytes from a shared secret with HKDF-SHA256.
//
// Parameters:
//   - sharedSecret: the raw ECDH output
//   - salt: optional salt (may be nil)
//   - info: context string separating keys derived from the same secret
//   - keyLength: desired output length in bytes
func DeriveKey(sharedSecret, salt, info []byte, keyLength int) ([]byte, error) {
	if sharedSecret == nil {
		return nil, fmt.Errorf("%w: shared secret cannot be nil", types.ErrInvalidArgument)
	}
	if keyLength <= 0 || keyLength > MaxKeyLength {
		return nil, fmt.Errorf("%w: key length must be in [1, %d], got %d",
			types.ErrInvalidArgument, MaxKeyLength, keyLength)
	}

	reader := hkdf.New(sha256.New, sharedSecret, salt, info)
	derived := make([]byte, keyLength)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}
	return derived, nil
}
