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

// Package secretsharing implements Shamir's Secret Sharing over the prime
// field Z/nZ, where n is the group order of an elliptic curve.
//
// # Mathematical Foundation
//
// The secret is the constant term a0 of a polynomial of degree t-1:
//
//	p(x) = a0 + a1*x + a2*x^2 + ... + a(t-1)*x^(t-1)  (mod n)
//
// Coefficients a1 through a(t-1) are drawn uniformly from [0, n). One share
// (x, p(x)) is produced per participant, where x is a nonzero identifier
// chosen by the caller, typically derived from a random seed with
// ParticipantIDFromSeed. Any t shares recover a0 by Lagrange interpolation
// at x = 0:
//
//	a0 = sum_i y_i * prod_{j != i} (0 - x_j) / (x_i - x_j)  (mod n)
//
// Because n is prime, t-1 or fewer shares carry no information about a0.
//
// # Threshold Contract
//
// RecoverSecret interpolates whatever it is given. Fewer than t shares
// produce a different field element without any error; this is a property
// of interpolation, not something the function can detect. Callers that
// know the threshold should use RecoverSecretWithThreshold.
//
// # Usage Example
//
//	sharer := secretsharing.NewForCurve(keys.P256(), rand.Reader)
//	xs, _ := secretsharing.NewParticipantIDs(sharer.Field(), rand.Reader, 5)
//
//	shares, err := sharer.Construct(master.Private.Scalar(), 3, xs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	secret, err := sharer.RecoverSecretWithThreshold(shares[1:4], 3)
//
// # Constraints
//
//   - 1 <= threshold <= number of participants
//   - participant x-coordinates are distinct and nonzero mod n
//   - the modulus is prime (curve group orders are)
//
// # References
//
// - Shamir, Adi (1979). "How to Share a Secret"
package secretsharing
