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

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// resultVersion is bumped when the encoding changes incompatibly
const resultVersion = 1

// resultMarshal is the CBOR-friendly representation of a SetupResult
type resultMarshal struct {
	Version            int                 `cbor:"1,keyasint"`
	PolicyID           []byte              `cbor:"2,keyasint"`
	Threshold          int                 `cbor:"3,keyasint"`
	MasterPublicKey    []byte              `cbor:"4,keyasint"` // curve tag || uncompressed point
	EncryptedMasterKey []byte              `cbor:"5,keyasint"`
	Assignments        []assignmentMarshal `cbor:"6,keyasint"`
	CreatedAt          int64               `cbor:"7,keyasint"` // unix millis
}

type assignmentMarshal struct {
	ApproverID     []byte `cbor:"1,keyasint"`
	Label          string `cbor:"2,keyasint"`
	ParticipantID  []byte `cbor:"3,keyasint"`
	EncryptedShare []byte `cbor:"4,keyasint"`
	OwnerHeld      bool   `cbor:"5,keyasint"`
}

// MarshalBinary encodes the result as CBOR.
func (r *SetupResult) MarshalBinary() ([]byte, error) {
	if r.MasterPublicKey == nil {
		return nil, fmt.Errorf("%w: result has no master public key", types.ErrInvalidArgument)
	}
	master, err := r.MasterPublicKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal master public key: %w", err)
	}

	assignments := make([]assignmentMarshal, len(r.Assignments))
	for i, a := range r.Assignments {
		if a.ParticipantID == nil {
			return nil, fmt.Errorf("%w: assignment %d has no participant id", types.ErrInvalidArgument, i)
		}
		assignments[i] = assignmentMarshal{
			ApproverID:     a.ApproverID[:],
			Label:          a.Label,
			ParticipantID:  a.ParticipantID.Bytes(),
			EncryptedShare: a.EncryptedShare,
			OwnerHeld:      a.OwnerHeld,
		}
	}

	return cbor.Marshal(&resultMarshal{
		Version:            resultVersion,
		PolicyID:           r.PolicyID[:],
		Threshold:          r.Threshold,
		MasterPublicKey:    master,
		EncryptedMasterKey: r.EncryptedMasterKey,
		Assignments:        assignments,
		CreatedAt:          r.CreatedAt.UnixMilli(),
	})
}

// UnmarshalBinary decodes a result produced by MarshalBinary.
func (r *SetupResult) UnmarshalBinary(data []byte) error {
	var rm resultMarshal
	if err := cbor.Unmarshal(data, &rm); err != nil {
		return fmt.Errorf("%w: failed to unmarshal setup result: %v", types.ErrInvalidArgument, err)
	}
	if rm.Version != resultVersion {
		return fmt.Errorf("%w: unsupported setup result version %d", types.ErrInvalidArgument, rm.Version)
	}

	policyID, err := uuid.FromBytes(rm.PolicyID)
	if err != nil {
		return fmt.Errorf("%w: invalid policy id: %v", types.ErrInvalidArgument, err)
	}
	master, err := keys.ParsePublicKey(rm.MasterPublicKey)
	if err != nil {
		return fmt.Errorf("failed to unmarshal master public key: %w", err)
	}
	if rm.Threshold < 1 || rm.Threshold > len(rm.Assignments) {
		return fmt.Errorf("%w: threshold %d with %d assignments", ErrInvalidThreshold, rm.Threshold, len(rm.Assignments))
	}

	assignments := make([]ShareAssignment, len(rm.Assignments))
	for i, am := range rm.Assignments {
		approverID, err := uuid.FromBytes(am.ApproverID)
		if err != nil {
			return fmt.Errorf("%w: assignment %d has invalid approver id: %v", types.ErrInvalidArgument, i, err)
		}
		assignments[i] = ShareAssignment{
			ApproverID:     approverID,
			Label:          am.Label,
			ParticipantID:  new(big.Int).SetBytes(am.ParticipantID),
			EncryptedShare: am.EncryptedShare,
			OwnerHeld:      am.OwnerHeld,
		}
	}

	*r = SetupResult{
		PolicyID:           policyID,
		Threshold:          rm.Threshold,
		MasterPublicKey:    master,
		EncryptedMasterKey: rm.EncryptedMasterKey,
		Assignments:        assignments,
		CreatedAt:          time.UnixMilli(rm.CreatedAt).UTC(),
	}
	return nil
}

// ParseSetupResult decodes a result produced by MarshalBinary.
func ParseSetupResult(data []byte) (*SetupResult, error) {
	r := &SetupResult{}
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return r, nil
}
