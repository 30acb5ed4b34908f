// Package filedec implements the file decoder: given `required` opened
// share files (a mix of principal and parity shares) it reconstructs
// the plaintext for any random-access (offset, length) request without
// ever materializing the whole file.
package filedec

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/fecerr"
	"github.com/peter-x/zfec-fs/internal/meta"
	"github.com/peter-x/zfec-fs/internal/stride"
)

// Decoder reconstructs one source file's plaintext from required opened
// share files. All state but the backing file handles is immutable
// after construction, so a Decoder is safe for concurrent Read calls.
type Decoder struct {
	shares      []*os.File
	indices     []int // shares[i]'s share index, as read from its own metadata header
	required    int
	excessBytes uint8
	encodedSize int64
	plainSize   int64
	coder       *fec.Coder
}

// Open validates and opens a decoder over sharePaths, which must number
// at least coder.Required(). When more than Required() paths are given,
// the first Required() are used (any deterministic choice is
// conformant; spec.md leaves this unspecified).
func Open(sharePaths []string, coder *fec.Coder) (d *Decoder, err error) {
	required := coder.Required()
	if len(sharePaths) < required {
		return nil, fecerr.ErrInsufficientShares
	}
	paths := sharePaths[:required]

	files := make([]*os.File, 0, required)
	defer func() {
		if err != nil {
			for _, f := range files {
				_ = f.Close()
			}
		}
	}()

	indices := make([]int, required)
	var commonExcess uint8
	var commonEncodedSize int64

	for i, p := range paths {
		f, openErr := os.Open(p)
		if openErr != nil {
			return nil, openErr
		}
		files = append(files, f)

		hdr := make([]byte, meta.Size)
		n, readErr := f.ReadAt(hdr, 0)
		if n < meta.Size {
			if readErr != nil && readErr != io.EOF {
				return nil, fmt.Errorf("filedec: reading metadata of %s: %w", p, readErr)
			}
			return nil, fmt.Errorf("%w: %s", fecerr.ErrMetadataReadShort, p)
		}
		rec, decErr := meta.Decode(hdr)
		if decErr != nil {
			return nil, decErr
		}
		if int(rec.Required) != required {
			return nil, fmt.Errorf("%w: %s has required=%d, expected %d", fecerr.ErrInconsistentMetadata, p, rec.Required, required)
		}
		if rec.ExcessBytes >= rec.Required {
			return nil, fmt.Errorf("%w: %s has excessBytes=%d >= required=%d", fecerr.ErrInconsistentMetadata, p, rec.ExcessBytes, rec.Required)
		}

		info, statErr := f.Stat()
		if statErr != nil {
			return nil, statErr
		}
		size := info.Size()
		if size < meta.Size {
			return nil, fmt.Errorf("%w: %s is shorter than the metadata header", fecerr.ErrInconsistentMetadata, p)
		}

		if i == 0 {
			commonExcess = rec.ExcessBytes
			commonEncodedSize = size
		} else if rec.ExcessBytes != commonExcess || size != commonEncodedSize {
			return nil, fmt.Errorf("%w: %s disagrees with share 0 on excessBytes/size", fecerr.ErrInconsistentMetadata, p)
		}
		indices[i] = int(rec.ShareIndex)
	}

	// Duplicate principal share indices are not rejected here: spec.md
	// §4.5 lists only required/excessBytes/size agreement as
	// constructor-time checks. A duplicate index is instead caught
	// lazily by normalizeIndices during Read, which reports it as
	// fecerr.ErrMalformedIndices (spec.md §4.6 step 5, §7).

	plainSize := meta.PlaintextSize(commonEncodedSize, uint8(required), commonExcess)
	return &Decoder{
		shares:      files,
		indices:     indices,
		required:    required,
		excessBytes: commonExcess,
		encodedSize: commonEncodedSize,
		plainSize:   plainSize,
		coder:       coder,
	}, nil
}

// Close releases all backing share file handles, returning the first
// error encountered, if any.
func (d *Decoder) Close() error {
	var first error
	for _, f := range d.shares {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Size returns the plaintext size of the decoded file.
func (d *Decoder) Size() int64 { return d.plainSize }

// Read returns plaintext bytes for [offset, offset+len(out)), clamped
// to the plaintext size. Zero-length or past-EOF requests return 0.
func (d *Decoder) Read(out []byte, offset int64) (int, error) {
	if len(out) == 0 || offset >= d.plainSize {
		return 0, nil
	}

	required := d.required
	bytesToRead := (len(out)+required-1)/required + 1

	readBufs := make([][]byte, required)
	bytesRead := make([]int, required)

	g := new(errgroup.Group)
	for i := 0; i < required; i++ {
		i := i
		g.Go(func() error {
			buf := make([]byte, bytesToRead)
			n, err := d.shares[i].ReadAt(buf, offset/int64(required)+meta.Size)
			if err != nil && err != io.EOF {
				return err
			}
			readBufs[i] = buf
			bytesRead[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("filedec: backing read: %w", err)
	}

	minBytesRead := bytesToRead
	for _, n := range bytesRead {
		if n < minBytesRead {
			minBytesRead = n
		}
	}
	if minBytesRead == 0 {
		return 0, nil
	}

	inputs := make([][]byte, required)
	indices := make([]int, required)
	copy(indices, d.indices)
	for i := range inputs {
		inputs[i] = readBufs[i][:minBytesRead]
	}

	if err := normalizeIndices(inputs, indices, required); err != nil {
		return 0, err
	}

	workBuf := make([]byte, minBytesRead*required)
	outputs := make([][]byte, required)
	for i := 0; i < required; i++ {
		outputs[i] = workBuf[i*minBytesRead : (i+1)*minBytesRead]
	}
	if err := d.coder.Decode(outputs, inputs, indices, minBytesRead); err != nil {
		return 0, err
	}

	offsetCorrection := int(offset % int64(required))
	effectiveSize := len(out)
	if v := minBytesRead*required - offsetCorrection; v < effectiveSize {
		effectiveSize = v
	}
	if v := int(d.plainSize - offset); v < effectiveSize {
		effectiveSize = v
	}

	for i := 0; i < required; i++ {
		var decoded []byte
		if indices[i] < required {
			decoded = inputs[i]
		} else {
			decoded = outputs[i]
		}
		start := i - offsetCorrection
		if offsetCorrection > i {
			decoded = decoded[1:]
			start += required
		}
		stride.CopyToNthElement(out[:effectiveSize], start, decoded, required)
	}
	return effectiveSize, nil
}

// normalizeIndices rearranges inputs/indices in lockstep so that for
// every i, indices[i] < required implies indices[i] == i — the
// constraint the FEC decode primitive requires. It detects the one case
// that cannot be resolved by swapping (two positions claiming the same
// principal share index) and reports it as a fatal decode error rather
// than looping indefinitely.
func normalizeIndices(inputs [][]byte, indices []int, required int) error {
	for i := 0; i < required; {
		idx := indices[i]
		if idx < required && idx != i {
			if indices[idx] == idx {
				return fmt.Errorf("%w: positions %d and %d both claim share index %d", fecerr.ErrMalformedIndices, i, idx, idx)
			}
			indices[i], indices[idx] = indices[idx], indices[i]
			inputs[i], inputs[idx] = inputs[idx], inputs[i]
			continue
		}
		i++
	}
	return nil
}
