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

// Package types holds the error taxonomy shared by every go-recovery package.
//
// Each package re-exports the sentinels it can return, so callers may test
// with either spelling:
//
//	errors.Is(err, secretsharing.ErrInvalidThreshold)
//	errors.Is(err, types.ErrInvalidThreshold)
//
// KindOf groups the sentinels into the categories a user interface cares
// about. Decryption failures carry no detail beyond their kind.
package types

import "errors"

var (
	// ErrInvalidThreshold indicates a threshold below 1 or above the participant count
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrDuplicateParticipant indicates two participants share an x-coordinate
	ErrDuplicateParticipant = errors.New("duplicate participant")

	// ErrInvalidParticipant indicates a participant x-coordinate of zero (mod n)
	ErrInvalidParticipant = errors.New("invalid participant")

	// ErrInsufficientShares indicates fewer shares than the caller's threshold
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrArithmetic indicates a degenerate field operation (no inverse exists)
	ErrArithmetic = errors.New("arithmetic error")

	// ErrMalformedKey indicates a public key encoding that cannot be decoded
	ErrMalformedKey = errors.New("malformed key")

	// ErrInvalidScalar indicates a private scalar of zero or not below the group order
	ErrInvalidScalar = errors.New("invalid scalar")

	// ErrCurveMismatch indicates keys from different curves were combined
	ErrCurveMismatch = errors.New("curve mismatch")

	// ErrDecryption covers every hybrid decryption failure
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidTransition indicates an approval state change that is not allowed
	ErrInvalidTransition = errors.New("invalid approval transition")

	// ErrRecoveryMismatch indicates a recovered key does not match the expected public key
	ErrRecoveryMismatch = errors.New("recovered key does not match policy")

	// ErrInvalidArgument indicates a nil or otherwise unusable argument
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind classifies an error for presentation purposes.
type Kind int

const (
	// KindUnknown is any error outside the taxonomy (environment failures)
	KindUnknown Kind = iota

	// KindExpected marks routine cryptographic outcomes such as a wrong code
	// or a share that does not decrypt. Callers typically let the user retry.
	KindExpected

	// KindInput marks bad external data (keys, scalars, shares)
	KindInput

	// KindProgramming marks misuse of the API (bad threshold, bad transition)
	KindProgramming
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindExpected:
		return "expected"
	case KindInput:
		return "input"
	case KindProgramming:
		return "programming"
	default:
		return "unknown"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrDecryption, KindExpected},
	{ErrRecoveryMismatch, KindExpected},
	{ErrMalformedKey, KindInput},
	{ErrInvalidScalar, KindInput},
	{ErrArithmetic, KindInput},
	{ErrCurveMismatch, KindInput},
	{ErrInsufficientShares, KindInput},
	{ErrInvalidThreshold, KindProgramming},
	{ErrDuplicateParticipant, KindProgramming},
	{ErrInvalidParticipant, KindProgramming},
	{ErrInvalidTransition, KindProgramming},
	{ErrInvalidArgument, KindProgramming},
}

// KindOf returns the kind of the first taxonomy sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsExpected reports whether err is a routine cryptographic outcome.
func IsExpected(err error) bool {
	return KindOf(err) == KindExpected
}
