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

package policy

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-recovery/pkg/approval"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
)

// Stage identifies how far a setup run progressed.
type Stage int

const (
	StageInitial Stage = iota
	StageMasterKeyGenerated
	StageSharesConstructed
	StageSharesEncrypted
	StageEmitted
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "initial"
	case StageMasterKeyGenerated:
		return "master_key_generated"
	case StageSharesConstructed:
		return "shares_constructed"
	case StageSharesEncrypted:
		return "shares_encrypted"
	case StageEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SetupError reports the last stage a failed run reached. Nothing produced
// before the failure is returned to the caller.
type SetupError struct {
	Stage Stage
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("policy setup aborted at %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// ProspectiveApprover is an approver named at setup time. TransportKey is
// the key their share is sealed to until they onboard; when nil the share
// is sealed to the owner key and released later by re-encryption.
type ProspectiveApprover struct {
	Label        string
	TransportKey *keys.PublicKey
}

// SetupRequest describes one policy to create.
type SetupRequest struct {
	// Threshold is the number of approvers needed to recover
	Threshold int

	// OwnerKey receives the encrypted master key and any shares without a
	// transport key
	OwnerKey *keys.PublicKey

	// Approvers receive one share each
	Approvers []ProspectiveApprover
}

// ShareAssignment binds one encrypted share to one approver.
type ShareAssignment struct {
	ApproverID     uuid.UUID
	Label          string
	ParticipantID  *big.Int
	EncryptedShare []byte

	// OwnerHeld is true when the share is sealed to the owner key
	OwnerHeld bool
}

// SetupResult is the only artifact of a setup run meant for storage or
// transport. It contains no plaintext key material.
type SetupResult struct {
	PolicyID           uuid.UUID
	Threshold          int
	MasterPublicKey    *keys.PublicKey
	EncryptedMasterKey []byte
	Assignments        []ShareAssignment
	CreatedAt          time.Time
}

// Assignment returns the assignment for an approver ID.
func (r *SetupResult) Assignment(id uuid.UUID) (*ShareAssignment, bool) {
	for i := range r.Assignments {
		if r.Assignments[i].ApproverID == id {
			return &r.Assignments[i], true
		}
	}
	return nil, false
}

// Invitations returns the initial approval state of every approver.
func (r *SetupResult) Invitations(now time.Time) []*approval.Invited {
	out := make([]*approval.Invited, len(r.Assignments))
	for i, a := range r.Assignments {
		out[i] = approval.Invite(approval.Approver{
			ID:            a.ApproverID,
			Label:         a.Label,
			ParticipantID: new(big.Int).Set(a.ParticipantID),
		}, now)
	}
	return out
}
