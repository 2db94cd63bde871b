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

package cli

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-recovery/pkg/policy"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// policyFileVersion is the version written to policy documents
const policyFileVersion = 1

// KeyFile stores a key pair or a public key. JWK is included for P-256 keys.
type KeyFile struct {
	Curve      string          `json:"curve"`
	PublicKey  []byte          `json:"public_key"`
	PrivateKey []byte          `json:"private_key,omitempty"`
	JWK        json.RawMessage `json:"jwk,omitempty"`
}

// PolicyFile wraps the binary encoding of a setup result.
type PolicyFile struct {
	Version int    `json:"version"`
	Policy  []byte `json:"policy"`
}

// ShareFile holds one decrypted share.
type ShareFile struct {
	ApproverID string `json:"approver_id"`
	Label      string `json:"label"`
	Share      []byte `json:"share"`
}

// SecretFile holds a one-time code secret shared with an approver.
type SecretFile struct {
	Secret []byte `json:"secret"`

	// Base32 is the same secret in the form authenticator apps accept
	Base32 string `json:"base32,omitempty"`
}

// SubmissionFile holds an approver's signed proof.
type SubmissionFile struct {
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	Signature []byte    `json:"signature"`
}

func readJSON(path string, v interface{}) error {
	// #nosec G304 - paths are supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func newKeyFile(pub *keys.PublicKey, priv *keys.PrivateKey) (*KeyFile, error) {
	encoded, err := pub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	kf := &KeyFile{Curve: pub.Curve().Name(), PublicKey: encoded}
	if priv != nil {
		kf.PrivateKey = priv.Bytes()
	}
	if pub.Curve().Name() == keys.CurveNameP256 {
		if kf.JWK, err = pub.JWK(); err != nil {
			return nil, err
		}
	}
	return kf, nil
}

func readPublicKey(path string) (*keys.PublicKey, error) {
	var kf KeyFile
	if err := readJSON(path, &kf); err != nil {
		return nil, err
	}
	if len(kf.PublicKey) == 0 && len(kf.JWK) > 0 {
		return keys.ParseJWK(kf.JWK)
	}
	pub, err := keys.ParsePublicKey(kf.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pub, nil
}

func readPrivateKey(path string) (*keys.PrivateKey, error) {
	var kf KeyFile
	if err := readJSON(path, &kf); err != nil {
		return nil, err
	}
	if len(kf.PrivateKey) == 0 {
		return nil, fmt.Errorf("%w: %s holds no private key", types.ErrInvalidArgument, path)
	}
	curve, err := keys.CurveByName(kf.Curve)
	if err != nil {
		return nil, err
	}
	priv, err := keys.NewManager(curve, nil).KeyFromScalar(new(big.Int).SetBytes(kf.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(kf.PublicKey) > 0 {
		pub, err := keys.ParsePublicKey(kf.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !pub.Equal(priv.Public()) {
			return nil, fmt.Errorf("%w: %s public key does not match private key", keys.ErrMalformedKey, path)
		}
	}
	return priv, nil
}

func readPolicy(path string) (*policy.SetupResult, error) {
	var pf PolicyFile
	if err := readJSON(path, &pf); err != nil {
		return nil, err
	}
	if pf.Version != policyFileVersion {
		return nil, fmt.Errorf("%w: %s has unsupported version %d", types.ErrInvalidArgument, path, pf.Version)
	}
	return policy.ParseSetupResult(pf.Policy)
}

func writePolicy(path string, result *policy.SetupResult) error {
	encoded, err := result.MarshalBinary()
	if err != nil {
		return err
	}
	return writeJSON(path, &PolicyFile{Version: policyFileVersion, Policy: encoded})
}

func readShare(path string) (secretsharing.Share, error) {
	var sf ShareFile
	if err := readJSON(path, &sf); err != nil {
		return secretsharing.Share{}, err
	}
	return secretsharing.ParseShare(sf.Share)
}

func readSecret(path string) ([]byte, error) {
	var sf SecretFile
	if err := readJSON(path, &sf); err != nil {
		return nil, err
	}
	if len(sf.Secret) == 0 {
		return nil, fmt.Errorf("%w: %s holds no secret", types.ErrInvalidArgument, path)
	}
	return sf.Secret, nil
}

// findAssignment looks an approver up by label or approver ID
func findAssignment(result *policy.SetupResult, name string) (*policy.ShareAssignment, error) {
	for i := range result.Assignments {
		a := &result.Assignments[i]
		if a.Label == name || strings.EqualFold(a.ApproverID.String(), name) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: no approver %q in policy", types.ErrInvalidArgument, name)
}
