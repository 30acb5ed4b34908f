// Package fecerr defines the sentinel error kinds shared by the encoder
// and decoder: InsufficientShares, InconsistentMetadata, MetadataReadShort
// and MalformedIndices. Backing I/O failures are not sentinels here; they
// are passed through as the *os.PathError (or similar) the failing read
// returned so callers can still use errors.Is against os.ErrNotExist etc.
package fecerr

import "errors"

var (
	// ErrInsufficientShares is returned when fewer than required share
	// files were supplied to a decoder constructor.
	ErrInsufficientShares = errors.New("fewer than required share files supplied")

	// ErrInconsistentMetadata is returned when share metadata disagrees
	// across the shares given to a decoder, or a single share's metadata
	// fails validation (excessBytes >= required, required mismatch, ...).
	ErrInconsistentMetadata = errors.New("share metadata is inconsistent")

	// ErrMetadataReadShort is returned when fewer than 3 bytes could be
	// read from the head of a purported share file.
	ErrMetadataReadShort = errors.New("short read of share metadata header")

	// ErrMalformedIndices is returned when index normalization discovers
	// two decoder-input positions claiming the same principal share
	// index; such input is undecodable.
	ErrMalformedIndices = errors.New("malformed share indices: duplicate principal index")
)
