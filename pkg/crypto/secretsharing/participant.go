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

package secretsharing

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/field"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// SeedSize is the length of random seeds drawn by NewParticipantID.
const SeedSize = 32

// ParticipantIDFromSeed derives a participant x-coordinate as
// SHA-256(seed) mod n. The result is never zero.
func ParticipantIDFromSeed(f *field.Field, seed []byte) (*big.Int, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("%w: participant seed cannot be empty", types.ErrInvalidArgument)
	}
	sum := sha256.Sum256(seed)
	x := f.Reduce(new(big.Int).SetBytes(sum[:]))
	if x.Sign() == 0 {
		return nil, fmt.Errorf("%w: seed maps to x = 0", ErrInvalidParticipant)
	}
	return x, nil
}

// NewParticipantID draws a random seed and derives an x-coordinate from it.
func NewParticipantID(f *field.Field, random io.Reader) (*big.Int, error) {
	if random == nil {
		random = rand.Reader
	}
	seed := make([]byte, SeedSize)
	for {
		if _, err := io.ReadFull(random, seed); err != nil {
			return nil, fmt.Errorf("failed to generate participant seed: %w", err)
		}
		x, err := ParticipantIDFromSeed(f, seed)
		if err == nil {
			return x, nil
		}
	}
}

// NewParticipantIDs returns count distinct x-coordinates.
func NewParticipantIDs(f *field.Field, random io.Reader, count int) ([]*big.Int, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: participant count must be at least 1, got %d", types.ErrInvalidArgument, count)
	}
	if big.NewInt(int64(count)).Cmp(f.Modulus()) >= 0 {
		return nil, fmt.Errorf("%w: field has fewer than %d nonzero elements", types.ErrInvalidArgument, count)
	}
	seen := make(map[string]struct{}, count)
	ids := make([]*big.Int, 0, count)
	for len(ids) < count {
		x, err := NewParticipantID(f, random)
		if err != nil {
			return nil, err
		}
		key := string(x.Bytes())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, x)
	}
	return ids, nil
}
