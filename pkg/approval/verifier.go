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
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/adapters/audit"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/ecies"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/totp"
	"github.com/jeremyhahn/go-recovery/pkg/metrics"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// Option configures a Verifier.
type Option func(*Verifier)

// WithCodeConfig sets the one-time code parameters. A config that fails
// totp.Config.Check is replaced by totp.DefaultConfig when the verifier is built.
func WithCodeConfig(c totp.Config) Option {
	return func(v *Verifier) {
		v.codes = c
	}
}

// WithRandom sets the randomness source for signatures and re-encryption.
func WithRandom(r io.Reader) Option {
	return func(v *Verifier) {
		if r != nil {
			v.random = r
		}
	}
}

// WithCipher selects the AEAD. It must match the one shares were sealed with.
func WithCipher(c ecies.Cipher) Option {
	return func(v *Verifier) {
		v.cipher = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(v *Verifier) {
		if m != nil {
			v.metrics = m
		}
	}
}

// WithAuditor sets the audit trail that receives one event per verification.
func WithAuditor(a audit.Auditor) Option {
	return func(v *Verifier) {
		if a != nil {
			v.auditor = a
		}
	}
}

// Verifier checks submissions on the owner side and produces proofs on the
// approver side. It is stateless and safe for concurrent use.
type Verifier struct {
	codes   totp.Config
	random  io.Reader
	cipher  ecies.Cipher
	logger  logger.Logger
	metrics metrics.Recorder
	auditor audit.Auditor

	km     *keys.Manager
	engine *ecies.Engine
}

// VerifyInput is the owner-side material needed to confirm an approver.
type VerifyInput struct {
	// TOTPSecret is the secret shared with the approver out of band
	TOTPSecret []byte

	// OwnerKey opens EncryptedShare
	OwnerKey *keys.PrivateKey

	// EncryptedShare is the approver's share as stored in the policy
	EncryptedShare []byte
}

// NewVerifier creates a verifier for curve.
func NewVerifier(curve keys.Curve, opts ...Option) *Verifier {
	if curve == nil {
		curve = keys.P256()
	}
	v := &Verifier{
		codes:   totp.DefaultConfig(),
		random:  rand.Reader,
		cipher:  ecies.CipherAES256GCM,
		logger:  logger.NewNopLogger(),
		metrics: metrics.Nop{},
		auditor: audit.Nop{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.codes.Check(); err != nil {
		v.logger.Warn("invalid code config, using defaults", logger.Error(err))
		v.codes = totp.DefaultConfig()
	}
	v.km = keys.NewManager(curve, v.random)
	v.engine = ecies.New(curve, ecies.WithRandom(v.random), ecies.WithCipher(v.cipher))
	return v
}

// CodeConfig returns the one-time code parameters.
func (v *Verifier) CodeConfig() totp.Config {
	return v.codes
}

// Prove signs code at the given time with the approver's device key.
func (v *Verifier) Prove(device *keys.PrivateKey, code string, at time.Time) (Submission, error) {
	sig, err := v.km.Sign(device, SigningMessage(code, at))
	if err != nil {
		return Submission{}, err
	}
	return Submission{Code: code, Timestamp: at, Signature: sig}, nil
}

// Verify decides a pending submission. It returns *Confirmed with the share
// re-encrypted to the device key, or *Rejected when the proof fails. An
// error is returned only for invalid input or a share that cannot be
// opened; those are not rejections.
func (v *Verifier) Verify(s State, in VerifyInput, now time.Time) (next State, err error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	var approverID string
	defer func() {
		v.metrics.RecordOperation(metrics.OpVerify, metrics.Status(err), time.Since(start))
		v.metrics.RecordVerification(outcome)
		v.record(approverID, next, err, now)
	}()

	pending, ok := s.(*VerificationSubmitted)
	if !ok || pending == nil {
		return nil, transition(s, StatusConfirmed)
	}
	approverID = pending.Approver.ID.String()
	if len(in.TOTPSecret) == 0 || in.OwnerKey == nil {
		return nil, fmt.Errorf("%w: code secret and owner key are required", types.ErrInvalidArgument)
	}

	log := v.logger.With(
		logger.Stringer("approver_id", pending.Approver.ID),
		logger.String("label", pending.Approver.Label),
		logger.Int("attempts", pending.Attempts))

	sub := pending.Submission
	if !v.codes.WithinSkew(sub.Timestamp, now) {
		outcome = metrics.OutcomeStaleTimestamp
		log.Info("approval rejected", logger.Stringer("reason", ReasonStaleTimestamp))
		return v.reject(pending, ReasonStaleTimestamp, now), nil
	}

	// Both checks run regardless of the first result.
	codeOK := v.codes.Validate(in.TOTPSecret, sub.Code, now)
	sigOK := v.km.Verify(pending.DeviceKey, SigningMessage(sub.Code, sub.Timestamp), sub.Signature)
	if !codeOK || !sigOK {
		outcome = metrics.OutcomeInvalidProof
		log.Info("approval rejected", logger.Stringer("reason", ReasonInvalidProof))
		return v.reject(pending, ReasonInvalidProof, now), nil
	}

	share, err := v.engine.Reencrypt(in.EncryptedShare, in.OwnerKey, pending.DeviceKey)
	if err != nil {
		log.Warn("failed to release share", logger.Error(err))
		return nil, err
	}

	outcome = metrics.OutcomeConfirmed
	log.Info("approval confirmed", logger.Stringer("device_key", pending.DeviceKey))
	return &Confirmed{
		Approver:       pending.Approver,
		DeviceKey:      pending.DeviceKey,
		EncryptedShare: share,
		ConfirmedAt:    now.UTC(),
	}, nil
}

func (v *Verifier) reject(s *VerificationSubmitted, reason Reason, now time.Time) *Rejected {
	return &Rejected{
		Approver:   s.Approver,
		DeviceKey:  s.DeviceKey,
		Reason:     reason,
		Attempts:   s.Attempts + 1,
		RejectedAt: now.UTC(),
	}
}

func (v *Verifier) record(approverID string, next State, err error, now time.Time) {
	event := &audit.Event{
		Timestamp:  now.UTC(),
		Type:       audit.EventApprovalVerify,
		Outcome:    audit.OutcomeOf(err),
		ApproverID: approverID,
		Detail:     audit.DetailOf(err),
	}
	if r, ok := next.(*Rejected); ok {
		event.Outcome = audit.OutcomeRejected
		event.Detail = r.Reason.String()
		event.Metadata = map[string]string{"attempts": strconv.Itoa(r.Attempts)}
	}
	if aerr := v.auditor.Record(event); aerr != nil {
		v.logger.Warn("failed to record audit event", logger.Error(aerr))
	}
}
