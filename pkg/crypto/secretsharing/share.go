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
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// minScalarWidth pads encoded coordinates to at least 256 bits.
const minScalarWidth = 32

// shareMarshal is the CBOR-friendly representation of a Share
type shareMarshal struct {
	X        []byte `cbor:"1,keyasint"`
	Y        []byte `cbor:"2,keyasint"`
	Checksum []byte `cbor:"3,keyasint"` // SHA-256(X || Y)
}

// MarshalBinary encodes the share as CBOR with fixed-width big-endian
// coordinates and an integrity checksum.
func (s Share) MarshalBinary() ([]byte, error) {
	if s.X == nil || s.Y == nil || s.X.Sign() < 0 || s.Y.Sign() < 0 {
		return nil, fmt.Errorf("%w: share coordinates must be non-negative", types.ErrInvalidArgument)
	}
	width := minScalarWidth
	for _, v := range []*big.Int{s.X, s.Y} {
		if n := (v.BitLen() + 7) / 8; n > width {
			width = n
		}
	}
	x := s.X.FillBytes(make([]byte, width))
	y := s.Y.FillBytes(make([]byte, width))

	return cbor.Marshal(&shareMarshal{X: x, Y: y, Checksum: checksum(x, y)})
}

// UnmarshalBinary decodes a share produced by MarshalBinary and verifies
// its checksum.
func (s *Share) UnmarshalBinary(data []byte) error {
	var sm shareMarshal
	if err := cbor.Unmarshal(data, &sm); err != nil {
		return fmt.Errorf("%w: failed to unmarshal share: %v", types.ErrInvalidArgument, err)
	}
	if len(sm.X) == 0 || len(sm.Y) == 0 || len(sm.X) != len(sm.Y) {
		return fmt.Errorf("%w: share coordinates are malformed", types.ErrInvalidArgument)
	}
	if subtle.ConstantTimeCompare(sm.Checksum, checksum(sm.X, sm.Y)) != 1 {
		return fmt.Errorf("%w: share has invalid checksum", types.ErrInvalidArgument)
	}
	s.X = new(big.Int).SetBytes(sm.X)
	s.Y = new(big.Int).SetBytes(sm.Y)
	return nil
}

// ParseShare decodes a share produced by MarshalBinary.
func ParseShare(data []byte) (Share, error) {
	var s Share
	if err := s.UnmarshalBinary(data); err != nil {
		return Share{}, err
	}
	return s, nil
}

func checksum(x, y []byte) []byte {
	h := sha256.New()
	h.Write(x)
	h.Write(y)
	return h.Sum(nil)
}
