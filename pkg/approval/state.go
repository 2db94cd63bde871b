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

// Package approval implements the per-approver verification protocol.
//
// An approver moves through
//
//	Invited -> Accepted -> VerificationSubmitted -> Confirmed
//	                              ^        |
//	                              |        v
//	                              +--- Rejected
//
// Each state is an immutable value. Transition functions take the current
// state and return the next one; nothing is stored inside this package, so
// the caller owns persistence and serializes concurrent submissions for the
// same approver.
//
// A submission proves two things: the approver knows the current one-time
// code, and they hold the device key they registered when accepting. The
// owner side checks both with a Verifier and, on success, re-encrypts the
// approver's share to that device key.
package approval

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// ErrInvalidTransition is returned for state changes the protocol does not allow
var ErrInvalidTransition = types.ErrInvalidTransition

// Status names a protocol state.
type Status int

const (
	StatusInvited Status = iota
	StatusAccepted
	StatusVerificationSubmitted
	StatusConfirmed
	StatusRejected
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusInvited:
		return "invited"
	case StatusAccepted:
		return "accepted"
	case StatusVerificationSubmitted:
		return "verification_submitted"
	case StatusConfirmed:
		return "confirmed"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Reason explains a rejection.
type Reason int

const (
	// ReasonStaleTimestamp means the submission was made outside the accepted windows
	ReasonStaleTimestamp Reason = iota + 1

	// ReasonInvalidProof means the code or the device signature did not check out
	ReasonInvalidProof
)

// String returns the string representation of the reason
func (r Reason) String() string {
	switch r {
	case ReasonStaleTimestamp:
		return "stale_timestamp"
	case ReasonInvalidProof:
		return "invalid_proof"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Approver identifies the subject of a protocol run.
type Approver struct {
	ID            uuid.UUID
	Label         string
	ParticipantID *big.Int
}

// State is one of *Invited, *Accepted, *VerificationSubmitted, *Confirmed
// or *Rejected.
type State interface {
	Status() Status
	Identity() Approver
	state()
}

// Invited is the initial state created by policy setup.
type Invited struct {
	Approver  Approver
	InvitedAt time.Time
}

// Accepted records the device key the approver registered.
type Accepted struct {
	Approver   Approver
	DeviceKey  *keys.PublicKey
	AcceptedAt time.Time
}

// VerificationSubmitted holds a proof awaiting verification. Attempts is
// the number of earlier rejected submissions.
type VerificationSubmitted struct {
	Approver   Approver
	DeviceKey  *keys.PublicKey
	Submission Submission
	Attempts   int
}

// Confirmed is terminal. EncryptedShare is sealed to DeviceKey.
type Confirmed struct {
	Approver       Approver
	DeviceKey      *keys.PublicKey
	EncryptedShare []byte
	ConfirmedAt    time.Time
}

// Rejected allows resubmission. Attempts counts rejections so far; bounding
// it is up to the caller.
type Rejected struct {
	Approver   Approver
	DeviceKey  *keys.PublicKey
	Reason     Reason
	Attempts   int
	RejectedAt time.Time
}

func (*Invited) Status() Status               { return StatusInvited }
func (*Accepted) Status() Status              { return StatusAccepted }
func (*VerificationSubmitted) Status() Status { return StatusVerificationSubmitted }
func (*Confirmed) Status() Status             { return StatusConfirmed }
func (*Rejected) Status() Status              { return StatusRejected }

func (s *Invited) Identity() Approver               { return s.Approver }
func (s *Accepted) Identity() Approver              { return s.Approver }
func (s *VerificationSubmitted) Identity() Approver { return s.Approver }
func (s *Confirmed) Identity() Approver             { return s.Approver }
func (s *Rejected) Identity() Approver              { return s.Approver }

func (*Invited) state()               {}
func (*Accepted) state()              {}
func (*VerificationSubmitted) state() {}
func (*Confirmed) state()             {}
func (*Rejected) state()              {}

// TransitionError describes a refused state change. It matches
// ErrInvalidTransition with errors.Is.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s to %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Submission is an approver's proof: the code they were given, the time
// they signed it and their device signature over SigningMessage.
type Submission struct {
	Code      string
	Timestamp time.Time
	Signature []byte
}
