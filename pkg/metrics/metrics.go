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

// Package metrics provides Prometheus instrumentation for recovery operations.
// Components accept a Recorder; Nop is the default and a Prometheus recorder
// registers its collectors on a caller-supplied registerer.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace is the Prometheus namespace for all recovery metrics
	Namespace = "recovery"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelOutcome   = "outcome"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSetup            = "policy_setup"
	OpRecover          = "recover"
	OpDecryptShare     = "share_decrypt"
	OpReencryptShare   = "share_reencrypt"
	OpDecryptMasterKey = "master_key_decrypt"
	OpVerify           = "approval_verify"

	// Verification outcomes
	OutcomeConfirmed      = "confirmed"
	OutcomeStaleTimestamp = "stale_timestamp"
	OutcomeInvalidProof   = "invalid_proof"
	OutcomeError          = "error"
)

// Recorder receives operational measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// RecordOperation records one operation with its status and duration
	RecordOperation(operation, status string, duration time.Duration)

	// RecordVerification records the outcome of one approval verification
	RecordVerification(outcome string)
}

// Status maps an error to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordOperation(string, string, time.Duration) {}
func (Nop) RecordVerification(string)                     {}

// Prometheus records measurements as Prometheus metrics.
type Prometheus struct {
	// OperationsTotal counts operations by name and status
	OperationsTotal *prometheus.CounterVec

	// OperationDuration observes operation latency in seconds.
	// Buckets are tuned for EC scalar multiplication and AEAD latencies.
	OperationDuration *prometheus.HistogramVec

	// VerificationsTotal counts approval verifications by outcome
	VerificationsTotal *prometheus.CounterVec
}

// NewPrometheus creates a Prometheus recorder registered on reg. A nil reg
// selects prometheus.DefaultRegisterer. Collectors already registered under
// the same names are reused, so several components can share a registry.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of recovery operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of recovery operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelOperation},
	)
	verifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "approval",
			Name:      "verifications_total",
			Help:      "Total number of approval verifications by outcome",
		},
		[]string{LabelOutcome},
	)

	var err error
	if operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if verifications, err = register(reg, verifications); err != nil {
		return nil, err
	}

	return &Prometheus{
		OperationsTotal:    operations,
		OperationDuration:  duration,
		VerificationsTotal: verifications,
	}, nil
}

// RecordOperation records an operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	result, err := orchestrator.Setup(req)
//	recorder.RecordOperation(metrics.OpSetup, metrics.Status(err), time.Since(start))
func (p *Prometheus) RecordOperation(operation, status string, duration time.Duration) {
	p.OperationsTotal.WithLabelValues(operation, status).Inc()
	p.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordVerification records the outcome of an approval verification.
func (p *Prometheus) RecordVerification(outcome string) {
	p.VerificationsTotal.WithLabelValues(outcome).Inc()
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}
