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

package approval

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// Invite creates the initial state for an approver.
func Invite(approver Approver, now time.Time) *Invited {
	return &Invited{Approver: approver, InvitedAt: now.UTC()}
}

// Accept registers the approver's device key. Only an invitation can be accepted.
func Accept(s State, deviceKey *keys.PublicKey, now time.Time) (*Accepted, error) {
	invited, ok := s.(*Invited)
	if !ok {
		return nil, transition(s, StatusAccepted)
	}
	if deviceKey == nil {
		return nil, fmt.Errorf("%w: device key is required", types.ErrInvalidArgument)
	}
	return &Accepted{
		Approver:   invited.Approver,
		DeviceKey:  deviceKey,
		AcceptedAt: now.UTC(),
	}, nil
}

// Submit records a proof for verification. It is valid from Accepted and,
// for a retry, from Rejected.
func Submit(s State, sub Submission) (*VerificationSubmitted, error) {
	switch cur := s.(type) {
	case *Accepted:
		return &VerificationSubmitted{
			Approver:   cur.Approver,
			DeviceKey:  cur.DeviceKey,
			Submission: sub,
		}, nil
	case *Rejected:
		return &VerificationSubmitted{
			Approver:   cur.Approver,
			DeviceKey:  cur.DeviceKey,
			Submission: sub,
			Attempts:   cur.Attempts,
		}, nil
	default:
		return nil, transition(s, StatusVerificationSubmitted)
	}
}

// SigningMessage returns the bytes a device signs: the code followed by the
// timestamp as 8-byte big-endian unix milliseconds.
func SigningMessage(code string, at time.Time) []byte {
	msg := make([]byte, len(code)+8)
	copy(msg, code)
	binary.BigEndian.PutUint64(msg[len(code):], uint64(at.UnixMilli()))
	return msg
}

func transition(from State, to Status) error {
	if from == nil {
		return fmt.Errorf("%w: state cannot be nil", types.ErrInvalidArgument)
	}
	return &TransitionError{From: from.Status(), To: to}
}
