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

package ecdh_test

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
)

// Example demonstrates key agreement between an owner and an approver device
func Example() {
	km := keys.NewManager(keys.P256(), rand.Reader)
	owner, _ := km.GenerateKeyPair()
	device, _ := km.GenerateKeyPair()

	ownerSecret, _ := ecdh.DeriveSharedSecret(owner.Private, device.Public)
	deviceSecret, _ := ecdh.DeriveSharedSecret(device.Private, owner.Public)

	fmt.Printf("Secrets match: %v\n", bytes.Equal(ownerSecret, deviceSecret))
	fmt.Printf("Secret length: %d bytes\n", len(ownerSecret))

	// Output:
	// Secrets match: true
	// Secret length: 32 bytes
}

// ExampleDeriveKey demonstrates deriving separate keys from one shared secret
func ExampleDeriveKey() {
	km := keys.NewManager(keys.Secp256k1(), rand.Reader)
	a, _ := km.GenerateKeyPair()
	b, _ := km.GenerateKeyPair()
	secret, _ := ecdh.DeriveSharedSecret(a.Private, b.Public)

	encKey, _ := ecdh.DeriveKey(secret, nil, []byte("encryption"), 32)
	macKey, _ := ecdh.DeriveKey(secret, nil, []byte("authentication"), 32)

	fmt.Printf("Encryption key length: %d bytes\n", len(encKey))
	fmt.Printf("Keys are different: %v\n", !bytes.Equal(encKey, macKey))

	// Output:
	// Encryption key length: 32 bytes
	// Keys are different: true
}
