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

// Package totp derives the time-based one-time codes approvers use to prove
// liveness during verification.
//
// Codes are RFC 4226 HOTP values generated by github.com/pquerna/otp over a
// time-based counter (RFC 6238): counter = floor(unix_seconds / period).
// Validation accepts the current window and Skew windows on either side.
//
// Every method that produces or checks a code validates the Config first; an
// unusable Config yields an error (or false from Validate), never a panic.
package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/types"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	// DefaultPeriod is the lifetime of one code window
	DefaultPeriod = 60 * time.Second

	// DefaultDigits is the code length
	DefaultDigits = 6

	// DefaultSkew is the number of adjacent windows accepted on each side
	DefaultSkew = 1

	// SecretSize is the length of secrets from GenerateSecret
	SecretSize = 20

	maxDigits = 9
)

// Config controls code generation and validation.
type Config struct {
	Period time.Duration
	Digits int
	Skew   int
}

// DefaultConfig returns a 60s, 6-digit, ±1 window configuration.
func DefaultConfig() Config {
	return Config{Period: DefaultPeriod, Digits: DefaultDigits, Skew: DefaultSkew}
}

// Check reports whether the configuration is usable. The period must be a
// whole number of seconds.
func (c Config) Check() error {
	if c.Period < time.Second || c.Period%time.Second != 0 {
		return fmt.Errorf("%w: code period must be a whole number of seconds, got %s", types.ErrInvalidArgument, c.Period)
	}
	if c.Digits < 1 || c.Digits > maxDigits {
		return fmt.Errorf("%w: code digits must be in [1, %d], got %d", types.ErrInvalidArgument, maxDigits, c.Digits)
	}
	if c.Skew < 0 {
		return fmt.Errorf("%w: code skew cannot be negative, got %d", types.ErrInvalidArgument, c.Skew)
	}
	return nil
}

// GenerateSecret draws a fresh shared secret. A nil reader selects crypto/rand.
func GenerateSecret(r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("failed to generate code secret: %w", err)
	}
	return secret, nil
}

// EncodeSecret returns the base32 form of secret used by authenticator apps.
func EncodeSecret(secret []byte) string {
	return base32.StdEncoding.EncodeToString(secret)
}

// Counter returns the window index containing t. Times before the epoch and
// periods shorter than one second map to window 0.
func (c Config) Counter(t time.Time) uint64 {
	secs := t.Unix()
	period := int64(c.Period / time.Second)
	if secs < 0 || period < 1 {
		return 0
	}
	return uint64(secs / period)
}

// CodeAt returns the code for an explicit counter value.
func (c Config) CodeAt(secret []byte, counter uint64) (string, error) {
	if err := c.Check(); err != nil {
		return "", err
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: code secret cannot be empty", types.ErrInvalidArgument)
	}
	code, err := hotp.GenerateCodeCustom(EncodeSecret(secret), counter, hotp.ValidateOpts{
		Digits:    otp.Digits(c.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return code, nil
}

// Code returns the code for the window containing t.
func (c Config) Code(secret []byte, t time.Time) (string, error) {
	return c.CodeAt(secret, c.Counter(t))
}

// CandidateCodes returns the codes accepted at t, ordered from the oldest
// window to the newest. Windows before the epoch are skipped.
func (c Config) CandidateCodes(secret []byte, t time.Time) ([]string, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	counter := c.Counter(t)
	codes := make([]string, 0, 2*c.Skew+1)
	for d := -c.Skew; d <= c.Skew; d++ {
		if d < 0 && uint64(-d) > counter {
			continue
		}
		code, err := c.CodeAt(secret, uint64(int64(counter)+int64(d)))
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// Validate reports whether code matches any window within Skew of t. An
// unusable Config or secret never validates. Every candidate is compared so
// the run time does not depend on which window matched.
func (c Config) Validate(secret []byte, code string, t time.Time) bool {
	if len(code) != c.Digits {
		return false
	}
	candidates, err := c.CandidateCodes(secret, t)
	if err != nil {
		return false
	}
	match := 0
	for _, candidate := range candidates {
		match |= subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
	}
	return match == 1
}

// WithinSkew reports whether the windows containing a and b are at most
// Skew windows apart.
func (c Config) WithinSkew(a, b time.Time) bool {
	ca, cb := c.Counter(a), c.Counter(b)
	if ca > cb {
		ca, cb = cb, ca
	}
	return c.Skew >= 0 && cb-ca <= uint64(c.Skew)
}
