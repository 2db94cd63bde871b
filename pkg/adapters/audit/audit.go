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

// Package audit records an append-only trail of recovery events: policy
// setup, share release and re-encryption, master key recovery and approver
// verification outcomes.
//
// Events describe what happened and to which policy or approver. They never
// carry key material, shares, codes or TOTP secrets.
package audit

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// EventType identifies the operation an event describes.
type EventType string

const (
	EventPolicySetup      EventType = "policy.setup"
	EventShareDecrypt     EventType = "share.decrypt"
	EventShareReencrypt   EventType = "share.reencrypt"
	EventMasterKeyDecrypt EventType = "master_key.decrypt"
	EventMasterKeyRecover EventType = "master_key.recover"
	EventApprovalVerify   EventType = "approval.verify"
)

// Outcome is the result of the audited operation.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeRejected Outcome = "rejected"
)

// Event is one audit record.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Outcome    Outcome           `json:"outcome"`
	PolicyID   string            `json:"policy_id,omitempty"`
	ApproverID string            `json:"approver_id,omitempty"`
	Detail     string            `json:"detail,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Query filters events. Zero fields match everything.
type Query struct {
	Types      []EventType
	Outcomes   []Outcome
	PolicyID   string
	ApproverID string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Auditor stores and queries audit events. Implementations must be safe for
// concurrent use.
type Auditor interface {
	// Record assigns an ID and timestamp when missing and stores the event.
	Record(event *Event) error

	// Events returns matching events oldest first.
	Events(query Query) ([]*Event, error)
}

// OutcomeOf maps an operation error to an outcome.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// DetailOf renders an error for the Detail field.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", types.KindOf(err), err)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(*Event) error            { return nil }
func (Nop) Events(Query) ([]*Event, error) { return nil, nil }
