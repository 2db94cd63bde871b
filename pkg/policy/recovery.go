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
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/audit"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-recovery/pkg/metrics"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// DecryptShare opens an encrypted share with the key it was sealed to.
// Authentication failures return ErrDecryption with no detail.
func (o *Orchestrator) DecryptShare(payload []byte, priv *keys.PrivateKey) (secretsharing.Share, error) {
	return o.decryptShare(payload, priv, &audit.Event{Type: audit.EventShareDecrypt})
}

// DecryptAssignment is DecryptShare for the share a policy assigns to
// approverID. The audit event carries the policy and approver IDs.
func (o *Orchestrator) DecryptAssignment(result *SetupResult, approverID uuid.UUID, priv *keys.PrivateKey) (secretsharing.Share, error) {
	event := &audit.Event{Type: audit.EventShareDecrypt, ApproverID: approverID.String()}
	assignment, err := lookup(result, approverID, event)
	if err != nil {
		o.metrics.RecordOperation(metrics.OpDecryptShare, metrics.Status(err), 0)
		o.record(event, err)
		return secretsharing.Share{}, err
	}
	return o.decryptShare(assignment.EncryptedShare, priv, event)
}

func (o *Orchestrator) decryptShare(payload []byte, priv *keys.PrivateKey, event *audit.Event) (share secretsharing.Share, err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordOperation(metrics.OpDecryptShare, metrics.Status(err), time.Since(start))
		o.record(event, err)
	}()

	plaintext, err := o.engine.Decrypt(payload, priv)
	if err != nil {
		return secretsharing.Share{}, err
	}
	defer zero(plaintext)

	share, err = secretsharing.ParseShare(plaintext)
	if err != nil {
		return secretsharing.Share{}, fmt.Errorf("decrypted share is malformed: %w", err)
	}
	return share, nil
}

// ReencryptShare moves an encrypted share from the key it is sealed to
// onto next, typically an approver's device key.
func (o *Orchestrator) ReencryptShare(payload []byte, current *keys.PrivateKey, next *keys.PublicKey) ([]byte, error) {
	return o.reencryptShare(payload, current, next, &audit.Event{Type: audit.EventShareReencrypt})
}

// ReencryptAssignment is ReencryptShare for the share a policy assigns to
// approverID. result is not modified.
func (o *Orchestrator) ReencryptAssignment(result *SetupResult, approverID uuid.UUID, current *keys.PrivateKey, next *keys.PublicKey) ([]byte, error) {
	event := &audit.Event{Type: audit.EventShareReencrypt, ApproverID: approverID.String()}
	assignment, err := lookup(result, approverID, event)
	if err != nil {
		o.metrics.RecordOperation(metrics.OpReencryptShare, metrics.Status(err), 0)
		o.record(event, err)
		return nil, err
	}
	return o.reencryptShare(assignment.EncryptedShare, current, next, event)
}

func (o *Orchestrator) reencryptShare(payload []byte, current *keys.PrivateKey, next *keys.PublicKey, event *audit.Event) (out []byte, err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordOperation(metrics.OpReencryptShare, metrics.Status(err), time.Since(start))
		o.record(event, err)
	}()
	return o.engine.Reencrypt(payload, current, next)
}

// lookup finds approverID in result and stamps the policy ID on event.
func lookup(result *SetupResult, approverID uuid.UUID, event *audit.Event) (*ShareAssignment, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: setup result cannot be nil", types.ErrInvalidArgument)
	}
	event.PolicyID = result.PolicyID.String()
	assignment, ok := result.Assignment(approverID)
	if !ok {
		return nil, fmt.Errorf("%w: approver %s is not in policy %s", types.ErrInvalidArgument, approverID, result.PolicyID)
	}
	return assignment, nil
}

// DecryptMasterKey recovers the owner-held copy of the master private key
// and checks it against the policy's master public key.
func (o *Orchestrator) DecryptMasterKey(result *SetupResult, owner *keys.PrivateKey) (priv *keys.PrivateKey, err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordOperation(metrics.OpDecryptMasterKey, metrics.Status(err), time.Since(start))
		event := &audit.Event{Type: audit.EventMasterKeyDecrypt}
		if result != nil {
			event.PolicyID = result.PolicyID.String()
		}
		o.record(event, err)
	}()

	if result == nil {
		return nil, fmt.Errorf("%w: setup result cannot be nil", types.ErrInvalidArgument)
	}
	plaintext, err := o.engine.DecryptWithAAD(result.EncryptedMasterKey, masterKeyAAD(result.PolicyID), owner)
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)

	return o.rebuild(new(big.Int).SetBytes(plaintext), result.MasterPublicKey)
}

// Recover reconstructs the master private key from decrypted shares. At
// least threshold shares are required and the rebuilt key must match
// masterPublicKey, otherwise ErrRecoveryMismatch is returned.
func (o *Orchestrator) Recover(shares []secretsharing.Share, threshold int, masterPublicKey *keys.PublicKey) (priv *keys.PrivateKey, err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordOperation(metrics.OpRecover, metrics.Status(err), time.Since(start))
		o.record(&audit.Event{
			Type: audit.EventMasterKeyRecover,
			Metadata: map[string]string{
				"shares":    strconv.Itoa(len(shares)),
				"threshold": strconv.Itoa(threshold),
			},
		}, err)
		if err != nil {
			o.logger.Warn("master key recovery failed",
				logger.Int("shares", len(shares)),
				logger.Int("threshold", threshold),
				logger.Error(err))
		}
	}()

	if masterPublicKey == nil {
		return nil, fmt.Errorf("%w: master public key is required", types.ErrInvalidArgument)
	}
	if masterPublicKey.Curve().Name() != o.curve.Name() {
		return nil, fmt.Errorf("%w: orchestrator uses %s, master key uses %s",
			types.ErrCurveMismatch, o.curve.Name(), masterPublicKey.Curve().Name())
	}

	secret, err := o.sharer.RecoverSecretWithThreshold(shares, threshold)
	if err != nil {
		return nil, err
	}
	priv, err = o.rebuild(secret, masterPublicKey)
	if err != nil {
		return nil, err
	}
	o.logger.Info("master key recovered",
		logger.Int("shares", len(shares)),
		logger.Stringer("master_key", masterPublicKey))
	return priv, nil
}

// RecoverPolicy is Recover using the threshold and master key recorded in result.
func (o *Orchestrator) RecoverPolicy(result *SetupResult, shares []secretsharing.Share) (*keys.PrivateKey, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: setup result cannot be nil", types.ErrInvalidArgument)
	}
	return o.Recover(shares, result.Threshold, result.MasterPublicKey)
}

func (o *Orchestrator) rebuild(scalar *big.Int, expected *keys.PublicKey) (*keys.PrivateKey, error) {
	defer scalar.SetInt64(0)

	priv, err := o.km.KeyFromScalar(scalar)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoveryMismatch, err)
	}
	if !priv.Public().Equal(expected) {
		priv.Destroy()
		return nil, fmt.Errorf("%w: derived public key %s, policy has %s",
			ErrRecoveryMismatch, priv.Public(), expected)
	}
	return priv, nil
}
