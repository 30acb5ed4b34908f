// Package meta implements the 3-byte per-share metadata header:
// {required, shareIndex, excessBytes}. It is the only persisted wire
// format this project defines; the layout must round-trip byte for
// byte with the original zfec-fs C++ implementation's Metadata struct.
package meta

import "fmt"

// Size is the fixed on-disk length of a metadata header.
const Size = 3

// Record is a decoded metadata header.
type Record struct {
	Required    uint8
	ShareIndex  uint8
	ExcessBytes uint8
}

// Encode builds the 3-byte wire representation of a share's header.
// excessBytes is derived as originalLength mod required.
func Encode(required, shareIndex uint8, originalLength int64) [Size]byte {
	var out [Size]byte
	out[0] = required
	out[1] = shareIndex
	out[2] = uint8(originalLength % int64(required))
	return out
}

// Decode parses a 3-byte header. It performs no validation beyond
// requiring the correct length; invariant checks (excessBytes < required,
// agreement across shares, ...) happen at the decoder constructor.
func Decode(b []byte) (Record, error) {
	if len(b) != Size {
		return Record{}, fmt.Errorf("meta: need %d bytes, got %d", Size, len(b))
	}
	return Record{
		Required:    b[0],
		ShareIndex:  b[1],
		ExcessBytes: b[2],
	}, nil
}

// EncodedSize returns ceil(originalSize/required) + Size, the total
// length of an encoded share file for a source file of originalSize
// bytes.
func EncodedSize(originalSize int64, required uint8) int64 {
	r := int64(required)
	return (originalSize+r-1)/r + Size
}

// PlaintextSize is the inverse of EncodedSize given a share's total
// encoded size and its decoded metadata (invariant 4 of the data
// model): both forms below must agree.
func PlaintextSize(encodedSize int64, required, excessBytes uint8) int64 {
	r := int64(required)
	payload := encodedSize - Size
	if excessBytes == 0 {
		return payload * r
	}
	return (payload-1)*r + int64(excessBytes)
}
