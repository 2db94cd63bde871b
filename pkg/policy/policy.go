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

// Package policy orchestrates the creation of a recovery policy and the
// owner-side recovery operations that follow.
//
// A setup run is a pure transform over its request plus randomness:
//
//	Initial -> MasterKeyGenerated -> SharesConstructed -> SharesEncrypted -> Emitted
//
// Any failure aborts the run and returns a *SetupError naming the last stage
// reached; no partial result escapes, so callers retry by invoking Setup
// again.
//
// Example usage:
//
//	o := policy.New(keys.P256(), policy.WithLogger(log))
//	result, err := o.Setup(policy.SetupRequest{
//	    Threshold: 2,
//	    OwnerKey:  owner.Public,
//	    Approvers: []policy.ProspectiveApprover{{Label: "alice"}, {Label: "bob"}, {Label: "carol"}},
//	})
package policy

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/audit"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/ecies"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-recovery/pkg/metrics"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

var (
	// ErrInvalidThreshold is returned when the threshold is outside [1, approvers]
	ErrInvalidThreshold = types.ErrInvalidThreshold

	// ErrRecoveryMismatch is returned when recovered material does not match the policy
	ErrRecoveryMismatch = types.ErrRecoveryMismatch

	// ErrDecryption is returned bare for any share or master key decryption failure
	ErrDecryption = types.ErrDecryption
)

// masterKeyContext is authenticated alongside the encrypted master key
const masterKeyContext = "go-recovery/master-key/"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRandom sets the randomness source for keys, coefficients and identifiers.
func WithRandom(r io.Reader) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.random = r
		}
	}
}

// WithCipher selects the AEAD used for encrypted shares and master keys.
func WithCipher(c ecies.Cipher) Option {
	return func(o *Orchestrator) {
		o.cipher = c
	}
}

// WithLogger sets the logger. Secret material is never logged.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithAuditor sets the audit trail that receives one event per operation.
func WithAuditor(a audit.Auditor) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.auditor = a
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator creates policies on one curve. It holds no per-policy state
// and may be shared across goroutines.
type Orchestrator struct {
	curve   keys.Curve
	random  io.Reader
	cipher  ecies.Cipher
	logger  logger.Logger
	metrics metrics.Recorder
	auditor audit.Auditor
	now     func() time.Time

	km     *keys.Manager
	sharer *secretsharing.Sharer
	engine *ecies.Engine
}

// New creates an orchestrator for curve.
func New(curve keys.Curve, opts ...Option) *Orchestrator {
	if curve == nil {
		curve = keys.P256()
	}
	o := &Orchestrator{
		curve:   curve,
		random:  rand.Reader,
		cipher:  ecies.CipherAES256GCM,
		logger:  logger.NewNopLogger(),
		metrics: metrics.Nop{},
		auditor: audit.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.km = keys.NewManager(curve, o.random)
	o.sharer = secretsharing.NewForCurve(curve, o.random)
	o.engine = ecies.New(curve, ecies.WithRandom(o.random), ecies.WithCipher(o.cipher))
	return o
}

// Curve returns the orchestrator's curve.
func (o *Orchestrator) Curve() keys.Curve {
	return o.curve
}

// Engine returns the encryption engine used for shares.
func (o *Orchestrator) Engine() *ecies.Engine {
	return o.engine
}

// Setup runs one policy setup. The master private key exists only for the
// duration of the call: it is split, sealed to the owner key and destroyed.
func (o *Orchestrator) Setup(req SetupRequest) (*SetupResult, error) {
	start := time.Now()
	result, err := o.setup(req)
	o.metrics.RecordOperation(metrics.OpSetup, metrics.Status(err), time.Since(start))
	if err != nil {
		o.logger.Warn("policy setup failed", logger.Error(err))
		o.record(&audit.Event{Type: audit.EventPolicySetup}, err)
		return nil, err
	}
	o.record(&audit.Event{
		Type:     audit.EventPolicySetup,
		PolicyID: result.PolicyID.String(),
		Metadata: map[string]string{
			"threshold": strconv.Itoa(result.Threshold),
			"approvers": strconv.Itoa(len(result.Assignments)),
		},
	}, nil)
	o.logger.Info("policy setup complete",
		logger.Stringer("policy_id", result.PolicyID),
		logger.Int("threshold", result.Threshold),
		logger.Int("approvers", len(result.Assignments)),
		logger.Stringer("master_key", result.MasterPublicKey))
	return result, nil
}

func (o *Orchestrator) setup(req SetupRequest) (*SetupResult, error) {
	if err := o.validate(req); err != nil {
		return nil, &SetupError{Stage: StageInitial, Err: err}
	}

	policyID, err := uuid.NewRandomFromReader(o.random)
	if err != nil {
		return nil, &SetupError{Stage: StageInitial, Err: fmt.Errorf("failed to generate policy id: %w", err)}
	}
	log := o.logger.With(logger.Stringer("policy_id", policyID))

	// Initial -> MasterKeyGenerated
	master, err := o.km.GenerateKeyPair()
	if err != nil {
		return nil, &SetupError{Stage: StageInitial, Err: err}
	}
	defer master.Private.Destroy()
	log.Debug("master key generated", logger.Stringer("master_key", master.Public))

	// MasterKeyGenerated -> SharesConstructed
	xs, err := secretsharing.NewParticipantIDs(o.curve.Field(), o.random, len(req.Approvers))
	if err != nil {
		return nil, &SetupError{Stage: StageMasterKeyGenerated, Err: err}
	}
	scalar := master.Private.Scalar()
	shares, err := o.sharer.Construct(scalar, req.Threshold, xs)
	scalar.SetInt64(0)
	if err != nil {
		return nil, &SetupError{Stage: StageMasterKeyGenerated, Err: err}
	}
	log.Debug("shares constructed", logger.Int("count", len(shares)))

	// SharesConstructed -> SharesEncrypted
	assignments := make([]ShareAssignment, len(shares))
	for i, share := range shares {
		approver := req.Approvers[i]
		recipient := approver.TransportKey
		ownerHeld := recipient == nil
		if ownerHeld {
			recipient = req.OwnerKey
		}

		encrypted, err := o.sealShare(share, recipient)
		if err != nil {
			return nil, &SetupError{Stage: StageSharesConstructed, Err: err}
		}
		approverID, err := uuid.NewRandomFromReader(o.random)
		if err != nil {
			return nil, &SetupError{Stage: StageSharesConstructed, Err: fmt.Errorf("failed to generate approver id: %w", err)}
		}
		assignments[i] = ShareAssignment{
			ApproverID:     approverID,
			Label:          approver.Label,
			ParticipantID:  share.X,
			EncryptedShare: encrypted,
			OwnerHeld:      ownerHeld,
		}
	}

	masterBytes := master.Private.Bytes()
	defer zero(masterBytes)
	encryptedMaster, err := o.engine.EncryptWithAAD(masterBytes, masterKeyAAD(policyID), req.OwnerKey)
	if err != nil {
		return nil, &SetupError{Stage: StageSharesConstructed, Err: fmt.Errorf("failed to encrypt master key: %w", err)}
	}
	log.Debug("shares encrypted")

	// SharesEncrypted -> Emitted
	return &SetupResult{
		PolicyID:           policyID,
		Threshold:          req.Threshold,
		MasterPublicKey:    master.Public,
		EncryptedMasterKey: encryptedMaster,
		Assignments:        assignments,
		CreatedAt:          o.now().UTC(),
	}, nil
}

func (o *Orchestrator) validate(req SetupRequest) error {
	if req.OwnerKey == nil {
		return fmt.Errorf("%w: owner key is required", types.ErrInvalidArgument)
	}
	if req.OwnerKey.Curve().Name() != o.curve.Name() {
		return fmt.Errorf("%w: orchestrator uses %s, owner key uses %s",
			types.ErrCurveMismatch, o.curve.Name(), req.OwnerKey.Curve().Name())
	}
	if len(req.Approvers) == 0 {
		return fmt.Errorf("%w: at least one approver is required", ErrInvalidThreshold)
	}
	if req.Threshold < 1 || req.Threshold > len(req.Approvers) {
		return fmt.Errorf("%w: threshold must be in [1, %d], got %d",
			ErrInvalidThreshold, len(req.Approvers), req.Threshold)
	}

	labels := make(map[string]struct{}, len(req.Approvers))
	for i, a := range req.Approvers {
		if a.Label == "" {
			return fmt.Errorf("%w: approver %d has no label", types.ErrInvalidArgument, i)
		}
		if _, dup := labels[a.Label]; dup {
			return fmt.Errorf("%w: approver label %q is used twice", types.ErrInvalidArgument, a.Label)
		}
		labels[a.Label] = struct{}{}

		if a.TransportKey != nil && a.TransportKey.Curve().Name() != o.curve.Name() {
			return fmt.Errorf("%w: approver %q transport key uses %s",
				types.ErrCurveMismatch, a.Label, a.TransportKey.Curve().Name())
		}
	}
	return nil
}

func (o *Orchestrator) sealShare(share secretsharing.Share, recipient *keys.PublicKey) ([]byte, error) {
	plaintext, err := share.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode share: %w", err)
	}
	defer zero(plaintext)

	encrypted, err := o.engine.Encrypt(plaintext, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt share: %w", err)
	}
	return encrypted, nil
}

// record completes event with the time and outcome of err and appends it
// to the audit trail. A failing audit trail is logged and does not fail the
// operation.
func (o *Orchestrator) record(event *audit.Event, err error) {
	event.Timestamp = o.now().UTC()
	event.Outcome = audit.OutcomeOf(err)
	event.Detail = audit.DetailOf(err)
	if aerr := o.auditor.Record(event); aerr != nil {
		o.logger.Warn("failed to record audit event",
			logger.String("event", string(event.Type)),
			logger.Error(aerr))
	}
}

func masterKeyAAD(policyID uuid.UUID) []byte {
	return append([]byte(masterKeyContext), policyID[:]...)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
