// Package fec adapts github.com/klauspost/reedsolomon's systematic
// Reed-Solomon coder (over GF(2^8), the same field the original zfec
// C library works in) to the narrow contract spec.md describes for the
// FEC primitive: a constructor parameterized by (required, numShares),
// an Encode that produces one parity share block for a single share
// index, and a Decode that reconstructs the required principal blocks
// from any required mix of principal and parity shares.
//
// Encode and Decode both operate on already block-aligned, equal-length
// byte slices; callers (internal/shareenc, internal/filedec) own
// alignment, batching and EOF/padding handling.
package fec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Coder is the process-wide FEC primitive handle. It is read-only after
// construction and safe to share across goroutines.
type Coder struct {
	required  int
	numShares int
	rs        reedsolomon.Encoder // nil when numShares == required (no parity exists)
}

// New constructs a Coder for the given (required, numShares). required
// must be in [1, 255] and numShares in [required, 255].
func New(required, numShares int) (*Coder, error) {
	if required < 1 || required > 255 {
		return nil, fmt.Errorf("fec: required must be in [1, 255], got %d", required)
	}
	if numShares < required || numShares > 255 {
		return nil, fmt.Errorf("fec: numShares must be in [required, 255], got %d (required=%d)", numShares, required)
	}
	c := &Coder{required: required, numShares: numShares}
	if numShares == required {
		// No parity shares are ever produced or consumed in this
		// configuration; Encode must never be called and Decode is a
		// pure pass-through.
		return c, nil
	}
	rs, err := reedsolomon.New(required, numShares-required)
	if err != nil {
		return nil, fmt.Errorf("fec: constructing reed-solomon coder: %w", err)
	}
	c.rs = rs
	return c, nil
}

// Required returns the configured required share count.
func (c *Coder) Required() int { return c.required }

// NumShares returns the configured total share count.
func (c *Coder) NumShares() int { return c.numShares }

// Encode computes the parity share block at shareIndex (which must be
// >= Required()) from the required ordered principal blocks in inputs
// (inputs[i] is the principal block for share index i), each of length
// blockLen, writing blockLen bytes into out.
func (c *Coder) Encode(out []byte, inputs [][]byte, shareIndex int, blockLen int) error {
	if shareIndex < c.required || shareIndex >= c.numShares {
		return fmt.Errorf("fec: Encode: shareIndex %d out of parity range [%d, %d)", shareIndex, c.required, c.numShares)
	}
	if len(inputs) != c.required {
		return fmt.Errorf("fec: Encode: need %d input blocks, got %d", c.required, len(inputs))
	}
	if c.rs == nil {
		// numShares == required: parity range is empty, so this can
		// never legitimately be reached.
		return fmt.Errorf("fec: Encode called with no parity shares configured")
	}

	shards := make([][]byte, c.numShares)
	copy(shards, inputs)
	for i := c.required; i < c.numShares; i++ {
		shards[i] = make([]byte, blockLen)
	}
	if err := c.rs.Encode(shards); err != nil {
		return fmt.Errorf("fec: encoding parity shard %d: %w", shareIndex, err)
	}
	copy(out[:blockLen], shards[shareIndex])
	return nil
}

// Decode reconstructs principal blocks from a required-length set of
// shares. inputs[i] is paired with indices[i]: the share index that
// block was read from. The caller must have already normalized indices
// so that indices[i] < Required() implies indices[i] == i (see
// internal/filedec's index normalization) — Decode does not re-check
// this beyond what is needed to build the underlying shard array.
//
// For each i where indices[i] >= Required(), outputs[i] is filled with
// the reconstructed principal block for share index i. For i where
// indices[i] < Required(), outputs[i] is left untouched: its contents
// are unspecified and must not be consulted (the caller already has
// that block directly as inputs[i]).
func (c *Coder) Decode(outputs [][]byte, inputs [][]byte, indices []int, blockLen int) error {
	if len(inputs) != c.required || len(indices) != c.required || len(outputs) != c.required {
		return fmt.Errorf("fec: Decode: inputs/indices/outputs must all have length %d", c.required)
	}
	if c.rs == nil {
		// No parity exists; every index must already be principal and
		// in place, so there is nothing to reconstruct.
		return nil
	}

	shards := make([][]byte, c.numShares)
	needsReconstruct := false
	for i, idx := range indices {
		if idx < 0 || idx >= c.numShares {
			return fmt.Errorf("fec: Decode: index %d out of range [0, %d)", idx, c.numShares)
		}
		shards[idx] = inputs[i]
		if idx >= c.required {
			needsReconstruct = true
		}
	}
	if !needsReconstruct {
		return nil
	}
	if err := c.rs.ReconstructData(shards); err != nil {
		return fmt.Errorf("fec: reconstructing principal blocks: %w", err)
	}
	for i, idx := range indices {
		if idx >= c.required {
			copy(outputs[i], shards[i])
		}
	}
	return nil
}
