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

// Package config loads recoveryctl settings from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/ecies"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/totp"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvCurve      = "RECOVERY_CURVE"
	EnvCipher     = "RECOVERY_CIPHER"
	EnvLogLevel   = "RECOVERY_LOG_LEVEL"
	EnvLogFormat  = "RECOVERY_LOG_FORMAT"
	EnvCodePeriod = "RECOVERY_CODE_PERIOD"
)

// Config represents the complete recoveryctl configuration
type Config struct {
	Crypto   CryptoConfig   `yaml:"crypto"`
	Approval ApprovalConfig `yaml:"approval"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CryptoConfig selects the curve and AEAD for new policies
type CryptoConfig struct {
	Curve  string `yaml:"curve"`  // P-256, secp256k1
	Cipher string `yaml:"cipher"` // aes-256-gcm, chacha20-poly1305
}

// ApprovalConfig controls one-time code parameters
type ApprovalConfig struct {
	CodePeriod time.Duration `yaml:"code_period"`
	CodeDigits int           `yaml:"code_digits"`
	CodeSkew   int           `yaml:"code_skew"` // windows accepted on each side
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	codes := totp.DefaultConfig()
	return &Config{
		Crypto: CryptoConfig{
			Curve:  keys.CurveNameP256,
			Cipher: ecies.CipherAES256GCM.String(),
		},
		Approval: ApprovalConfig{
			CodePeriod: codes.Period,
			CodeDigits: codes.Digits,
			CodeSkew:   codes.Skew,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logger.FormatText),
		},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment variable overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if curve := os.Getenv(EnvCurve); curve != "" {
		cfg.Crypto.Curve = curve
	}
	if cipher := os.Getenv(EnvCipher); cipher != "" {
		cfg.Crypto.Cipher = cipher
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		cfg.Logging.Format = format
	}
	if period := os.Getenv(EnvCodePeriod); period != "" {
		d, err := parsePeriod(period)
		if err != nil {
			log.Printf("Warning: invalid %s value %q, using %s: %v",
				EnvCodePeriod, period, cfg.Approval.CodePeriod, err)
		} else {
			cfg.Approval.CodePeriod = d
		}
	}
}

// parsePeriod accepts a Go duration ("90s") or a bare number of seconds
func parsePeriod(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := keys.CurveByName(c.Crypto.Curve); err != nil {
		return fmt.Errorf("invalid curve: %s (must be P-256 or secp256k1)", c.Crypto.Curve)
	}
	if _, err := ecies.ParseCipher(c.Crypto.Cipher); err != nil {
		return fmt.Errorf("invalid cipher: %s (must be aes-256-gcm or chacha20-poly1305)", c.Crypto.Cipher)
	}
	if err := c.CodeConfig().Check(); err != nil {
		return fmt.Errorf("invalid approval settings: %w", err)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		string(logger.FormatText): true, string(logger.FormatJSON): true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}
	return nil
}

// Curve returns the configured curve.
func (c *Config) Curve() (keys.Curve, error) {
	return keys.CurveByName(c.Crypto.Curve)
}

// Cipher returns the configured AEAD.
func (c *Config) Cipher() (ecies.Cipher, error) {
	return ecies.ParseCipher(c.Crypto.Cipher)
}

// CodeConfig returns the one-time code parameters.
func (c *Config) CodeConfig() totp.Config {
	return totp.Config{
		Period: c.Approval.CodePeriod,
		Digits: c.Approval.CodeDigits,
		Skew:   c.Approval.CodeSkew,
	}
}
