// Package shareenc implements the share encoder: given one source file
// and one shareIndex, it answers random-access Read(out, offset)
// requests with the exact bytes of that share — the 3-byte metadata
// header followed by the principal stride or FEC-parity payload —
// without ever materializing the whole file.
package shareenc

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/meta"
	"github.com/peter-x/zfec-fs/internal/stride"
)

// transformBatchSize bounds a single batch of payload (share) bytes
// processed per backing read, in units of blocks (required source bytes
// each). A batch therefore reads at most transformBatchSize*required
// source bytes, keeping per-call memory bounded while letting large
// reads complete in one or a few backing I/O calls.
const transformBatchSize = 8192

// Encoder serves one source file's share at one shareIndex. It is safe
// for concurrent use by multiple goroutines: the only mutable state is
// the lazily memoized original size, guarded by sync.Once.
type Encoder struct {
	source     *os.File
	shareIndex uint8
	coder      *fec.Coder

	sizeOnce sync.Once
	size     int64
	sizeErr  error

	readBufPool sync.Pool
	workBufPool sync.Pool
}

// Open opens sourcePath and returns an Encoder serving shareIndex, which
// must be in [0, coder.NumShares()).
func Open(sourcePath string, shareIndex int, coder *fec.Coder) (*Encoder, error) {
	if shareIndex < 0 || shareIndex >= coder.NumShares() {
		return nil, fmt.Errorf("shareenc: shareIndex %d out of range [0, %d)", shareIndex, coder.NumShares())
	}
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, err
	}
	return &Encoder{source: f, shareIndex: uint8(shareIndex), coder: coder}, nil
}

// Close releases the backing source file handle.
func (e *Encoder) Close() error {
	return e.source.Close()
}

// ShareIndex returns the share index this encoder serves.
func (e *Encoder) ShareIndex() int { return int(e.shareIndex) }

// originalSize returns the source file's size, computed and memoized
// once under a set-once guard. Once set it is never mutated.
func (e *Encoder) originalSize() (int64, error) {
	e.sizeOnce.Do(func() {
		info, err := e.source.Stat()
		if err != nil {
			e.sizeErr = err
			return
		}
		e.size = info.Size()
	})
	return e.size, e.sizeErr
}

// EncodedSize reports the virtual share size for stat/getattr purposes.
func (e *Encoder) EncodedSize() (int64, error) {
	sz, err := e.originalSize()
	if err != nil {
		return 0, err
	}
	return meta.EncodedSize(sz, uint8(e.coder.Required())), nil
}

// Read returns the exact bytes of the virtual share at [offset,
// offset+len(out)), clamped to the end of the virtual share; it returns
// the number of bytes written. A zero-length out returns 0 with no side
// effects. Short reads occur only at true EOF, per POSIX semantics.
func (e *Encoder) Read(out []byte, offset int64) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}

	written := 0
	if offset < meta.Size {
		n, err := e.fillMetadata(out, offset)
		if err != nil {
			return 0, err
		}
		written = n
	}

	required := e.coder.Required()
	batchCap := transformBatchSize
	originalSize, err := e.originalSize()
	if err != nil {
		if written > 0 {
			return written, nil
		}
		return 0, err
	}

	for written < len(out) {
		payloadOffset := offset - meta.Size + int64(written)
		wanted := len(out) - written
		if wanted > batchCap {
			wanted = batchCap
		}
		n, ferr := e.fillData(out[written:written+wanted], payloadOffset, originalSize)
		written += n
		if ferr != nil {
			if written > 0 {
				return written, nil
			}
			return 0, fmt.Errorf("shareenc: backing read: %w", ferr)
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}

// fillMetadata copies the relevant suffix of the 3-byte metadata record
// into out, starting at offset, until either out is exhausted or offset
// reaches meta.Size.
func (e *Encoder) fillMetadata(out []byte, offset int64) (int, error) {
	originalSize, err := e.originalSize()
	if err != nil {
		return 0, err
	}
	rec := meta.Encode(uint8(e.coder.Required()), e.shareIndex, originalSize)
	n := 0
	o := offset
	for n < len(out) && o < meta.Size {
		out[n] = rec[o]
		n++
		o++
	}
	return n, nil
}

// fillData produces one batch of payload bytes. out's length is the
// number of payload bytes wanted for this batch (at most batchCap);
// fillData returns the number actually produced, which is less than
// requested only at true EOF.
func (e *Encoder) fillData(out []byte, payloadOffset, originalSize int64) (int, error) {
	required := e.coder.Required()

	readBuf := e.getReadBuf(len(out) * required)
	defer e.readBufPool.Put(&readBuf)

	n, err := e.source.ReadAt(readBuf, payloadOffset*int64(required))
	if err != nil && err != io.EOF {
		return 0, err
	}
	sizeRead := adjustDataSize(readBuf, n, payloadOffset, originalSize, required)
	if sizeRead == 0 {
		return 0, nil
	}
	blockCount := sizeRead / required

	if int(e.shareIndex) < required {
		written := stride.CopyNthElement(out[:blockCount], readBuf[int(e.shareIndex):sizeRead], required)
		return written, nil
	}

	workBuf := e.getWorkBuf(sizeRead)
	defer e.workBufPool.Put(&workBuf)
	stride.Distribute(workBuf, readBuf[:sizeRead], required)

	inputs := make([][]byte, required)
	for i := 0; i < required; i++ {
		inputs[i] = workBuf[i*blockCount : (i+1)*blockCount]
	}
	if err := e.coder.Encode(out[:blockCount], inputs, int(e.shareIndex), blockCount); err != nil {
		return 0, err
	}
	return blockCount, nil
}

func (e *Encoder) getReadBuf(n int) []byte {
	if v := e.readBufPool.Get(); v != nil {
		buf := *(v.(*[]byte))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]byte, n)
}

func (e *Encoder) getWorkBuf(n int) []byte {
	if v := e.workBufPool.Get(); v != nil {
		buf := *(v.(*[]byte))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]byte, n)
}

// adjustDataSize implements the EOF and alignment policy: a short read
// that is not yet EOF is truncated to the largest multiple of required;
// a short read at true EOF is zero-padded up to the next multiple of
// required (buf has capacity for this because its length is always
// already a multiple of required).
func adjustDataSize(buf []byte, sizeRead int, payloadOffset, originalSize int64, required int) int {
	excess := sizeRead % required
	if excess == 0 {
		return sizeRead
	}
	if payloadOffset*int64(required)+int64(sizeRead) < originalSize {
		return sizeRead - excess
	}
	for sizeRead%required != 0 {
		buf[sizeRead] = 0
		sizeRead++
	}
	return sizeRead
}
