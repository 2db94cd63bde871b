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

package secretsharing_test

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/secretsharing"
)

// ExampleSharer demonstrates splitting a master private scalar 3-of-5.
func ExampleSharer() {
	km := keys.NewManager(keys.P256(), rand.Reader)
	master, err := km.GenerateKeyPair()
	if err != nil {
		log.Fatal(err)
	}

	sharer := secretsharing.NewForCurve(keys.P256(), rand.Reader)
	xs, err := secretsharing.NewParticipantIDs(sharer.Field(), rand.Reader, 5)
	if err != nil {
		log.Fatal(err)
	}

	shares, err := sharer.Construct(master.Private.Scalar(), 3, xs)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Secret split into %d shares\n", len(shares))

	secret, err := sharer.RecoverSecretWithThreshold(shares[2:], 3)
	if err != nil {
		log.Fatal(err)
	}
	recovered, err := km.KeyFromScalar(secret)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Public key matches: %v\n", recovered.Public().Equal(master.Public))

	// Output:
	// Secret split into 5 shares
	// Public key matches: true
}

// ExampleSharer_RecoverSecret_belowThreshold shows that too few shares
// interpolate to a different value without an error.
func ExampleSharer_RecoverSecret_belowThreshold() {
	sharer := secretsharing.NewForCurve(keys.P256(), rand.Reader)
	secret := big.NewInt(424242)

	xs := []*big.Int{big.NewInt(11), big.NewInt(42), big.NewInt(7)}
	shares, _ := sharer.Construct(secret, 3, xs)

	wrong, err := sharer.RecoverSecret(shares[:2])
	fmt.Printf("Error: %v\n", err)
	fmt.Printf("Recovered original: %v\n", wrong.Cmp(secret) == 0)

	_, err = sharer.RecoverSecretWithThreshold(shares[:2], 3)
	fmt.Printf("Strict error: %v\n", err)

	// Output:
	// Error: <nil>
	// Recovered original: false
	// Strict error: insufficient shares: need 3, got 2
}
