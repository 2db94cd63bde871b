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

// Package cli implements the recoveryctl command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jeremyhahn/go-recovery/internal/config"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/audit"
	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/jeremyhahn/go-recovery/pkg/approval"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/ecies"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/totp"
	"github.com/jeremyhahn/go-recovery/pkg/metrics"
	"github.com/jeremyhahn/go-recovery/pkg/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// Config holds global CLI flags
type Config struct {
	// ConfigFile is the path to the YAML configuration file
	ConfigFile string

	// OutputFormat controls output formatting (text, json)
	OutputFormat string

	// Verbose forces debug logging
	Verbose bool

	// MetricsFile receives Prometheus text exposition when metrics are enabled
	MetricsFile string

	// AuditLog receives one JSON line per audited operation when set
	AuditLog string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
		MetricsFile:  "recoveryctl.prom",
	}
}

// app is the per-invocation state shared by all commands
type app struct {
	flags    *Config
	settings *config.Config
	curve    keys.Curve
	cipher   ecies.Cipher
	logger   logger.Logger
	registry *prometheus.Registry
	recorder metrics.Recorder
	auditor  audit.Auditor
	now      func() time.Time
	stderr   io.Writer
}

// NewRootCommand builds the recoveryctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{
		flags:    NewConfig(),
		logger:   logger.NewNopLogger(),
		recorder: metrics.Nop{},
		auditor:  audit.Nop{},
		now:      time.Now,
		stderr:   os.Stderr,
	}

	root := &cobra.Command{
		Use:   "recoveryctl",
		Short: "go-recovery CLI - threshold social key recovery",
		Long: `recoveryctl creates social recovery policies and drives the
owner and approver sides of the recovery protocol from the command line.

A policy splits a freshly generated master key among approvers so that any
threshold of them can restore it. Approvers prove possession of a one-time
code and their device key before their share is released to them.

All files are JSON documents; binary fields are base64 encoded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.flushMetrics()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.ConfigFile, "config", "",
		"config file (defaults are used when empty)")
	root.PersistentFlags().StringVarP(&a.flags.OutputFormat, "output", "o", a.flags.OutputFormat,
		"output format (text, json)")
	root.PersistentFlags().BoolVarP(&a.flags.Verbose, "verbose", "v", false,
		"verbose output")
	root.PersistentFlags().StringVar(&a.flags.MetricsFile, "metrics-file", a.flags.MetricsFile,
		"Prometheus textfile written when metrics are enabled")
	root.PersistentFlags().StringVar(&a.flags.AuditLog, "audit-log", "",
		"append audit events to this JSON lines file")

	root.AddCommand(
		newVersionCommand(a),
		newKeygenCommand(a),
		newPolicyCommand(a),
		newShareCommand(a),
		newCodeCommand(a),
		newApprovalCommand(a),
		newRecoverCommand(a),
	)
	return root
}

// Execute runs the root command and prints any error to stderr
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		format, _ := root.PersistentFlags().GetString("output")
		_ = NewPrinter(format, os.Stderr).PrintError(err) // best-effort
	}
	return err
}

func (a *app) init() error {
	if a.flags.OutputFormat != string(OutputFormatText) && a.flags.OutputFormat != string(OutputFormatJSON) {
		return fmt.Errorf("unknown output format: %s", a.flags.OutputFormat)
	}

	cfg, err := config.Load(a.flags.ConfigFile)
	if err != nil {
		return err
	}
	a.settings = cfg

	if a.curve, err = cfg.Curve(); err != nil {
		return err
	}
	if a.cipher, err = cfg.Cipher(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if a.flags.Verbose {
		level = logger.LevelDebug
	}
	a.logger = logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: logger.Format(strings.ToLower(cfg.Logging.Format)),
		Output: a.stderr,
	})

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		rec, err := metrics.NewPrometheus(a.registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		a.recorder = rec
	}

	if a.flags.AuditLog != "" {
		a.auditor = newFileAuditor(a.flags.AuditLog)
	}
	return nil
}

func (a *app) flushMetrics() error {
	if a.registry == nil || a.flags.MetricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.flags.MetricsFile, a.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.logger.Debug("metrics written", logger.String("path", a.flags.MetricsFile))
	return nil
}

func (a *app) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(a.flags.OutputFormat, cmd.OutOrStdout())
}

// orchestrator works on curve, normally the curve of the keys at hand
func (a *app) orchestrator(curve keys.Curve) *policy.Orchestrator {
	return policy.New(curve,
		policy.WithCipher(a.cipher),
		policy.WithLogger(a.logger),
		policy.WithMetrics(a.recorder),
		policy.WithAuditor(a.auditor),
		policy.WithClock(a.now))
}

func (a *app) verifier(curve keys.Curve) *approval.Verifier {
	return approval.NewVerifier(curve,
		approval.WithCipher(a.cipher),
		approval.WithCodeConfig(a.codes()),
		approval.WithLogger(a.logger),
		approval.WithMetrics(a.recorder),
		approval.WithAuditor(a.auditor))
}

func (a *app) codes() totp.Config {
	return a.settings.CodeConfig()
}

// at parses an RFC 3339 time flag, defaulting to the current time
func (a *app) at(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("at")
	if s == "" {
		return a.now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at value %q: %w", s, err)
	}
	return t, nil
}
