package filedec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/fecerr"
	"github.com/peter-x/zfec-fs/internal/filedec"
	"github.com/peter-x/zfec-fs/internal/shareenc"
	"github.com/stretchr/testify/require"
)

// writeShares encodes contents into numShares share files under a fresh
// temp dir using the real shareenc.Encoder, returning their paths
// indexed by share index.
func writeShares(t *testing.T, contents string, required, numShares int) (*fec.Coder, []string) {
	t.Helper()
	c, err := fec.New(required, numShares)
	require.NoError(t, err)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "source")
	require.NoError(t, os.WriteFile(srcPath, []byte(contents), 0o644))

	sharesDir := t.TempDir()
	paths := make([]string, numShares)
	for i := 0; i < numShares; i++ {
		enc, err := shareenc.Open(srcPath, i, c)
		require.NoError(t, err)

		size, err := enc.EncodedSize()
		require.NoError(t, err)
		buf := make([]byte, size)
		n, err := enc.Read(buf, 0)
		require.NoError(t, err)
		require.EqualValues(t, size, n)
		require.NoError(t, enc.Close())

		p := filepath.Join(sharesDir, shareFileName(i))
		require.NoError(t, os.WriteFile(p, buf, 0o644))
		paths[i] = p
	}
	return c, paths
}

func shareFileName(i int) string {
	const hex = "0123456789abcdef"
	return string([]byte{hex[(i>>4)&0xf], hex[i&0xf]})
}

func TestDecodeRoundTripAllPrincipal(t *testing.T) {
	c, paths := writeShares(t, "12345abcdeABCDE78", 5, 20)
	d, err := filedec.Open(paths[:5], c)
	require.NoError(t, err)
	defer d.Close()

	require.EqualValues(t, 17, d.Size())

	out := make([]byte, 17)
	n, err := d.Read(out, 0)
	require.NoError(t, err)
	require.Equal(t, 17, n)
	require.Equal(t, "12345abcdeABCDE78", string(out))
}

func TestDecodeRoundTripWithParity(t *testing.T) {
	c, paths := writeShares(t, "12345abcdeABCDE78", 5, 20)
	// Three principal shares missing, reconstructed from parity.
	mixed := []string{paths[0], paths[1], paths[9], paths[10], paths[11]}
	d, err := filedec.Open(mixed, c)
	require.NoError(t, err)
	defer d.Close()

	out := make([]byte, 17)
	n, err := d.Read(out, 0)
	require.NoError(t, err)
	require.Equal(t, 17, n)
	require.Equal(t, "12345abcdeABCDE78", string(out))
}

func TestDecodeOffsetInvariance(t *testing.T) {
	contents := "the quick brown fox jumps over the lazy dog 0123456789"
	c, paths := writeShares(t, contents, 4, 8)
	mixed := []string{paths[0], paths[5], paths[2], paths[7]}
	d, err := filedec.Open(mixed, c)
	require.NoError(t, err)
	defer d.Close()

	for off := 0; off < len(contents); off++ {
		for length := 1; off+length <= len(contents)+3 && length <= 10; length++ {
			out := make([]byte, length)
			n, err := d.Read(out, int64(off))
			require.NoError(t, err)
			want := contents[off:]
			if len(want) > length {
				want = want[:length]
			}
			require.Equal(t, want, string(out[:n]), "off=%d length=%d", off, length)
		}
	}
}

func TestDecodeAllParityShares(t *testing.T) {
	c, paths := writeShares(t, "hello world, this is a longer test string!", 3, 9)
	// No principal shares at all.
	mixed := []string{paths[3], paths[4], paths[5]}
	d, err := filedec.Open(mixed, c)
	require.NoError(t, err)
	defer d.Close()

	out := make([]byte, 43)
	n, err := d.Read(out, 0)
	require.NoError(t, err)
	require.Equal(t, "hello world, this is a longer test string!", string(out[:n]))
}

func TestOpenRejectsTooFewShares(t *testing.T) {
	c, paths := writeShares(t, "abc", 3, 6)
	_, err := filedec.Open(paths[:2], c)
	require.Error(t, err)
}

func TestOpenRejectsInconsistentMetadata(t *testing.T) {
	c1, pathsA := writeShares(t, "abcdef", 3, 6)
	_, pathsB := writeShares(t, "different contents here", 3, 6)
	mixed := []string{pathsA[0], pathsA[1], pathsB[2]}
	_, err := filedec.Open(mixed, c1)
	require.Error(t, err)
}

// TestReadRejectsDuplicateShareIndex exercises spec.md §4.6 step 5: Open
// does not reject duplicate principal indices (spec.md §4.5 only
// requires required/excessBytes/size agreement at construction time),
// but normalizeIndices must detect the duplicate during Read and report
// it as fecerr.ErrMalformedIndices.
func TestReadRejectsDuplicateShareIndex(t *testing.T) {
	c, paths := writeShares(t, "abcdef", 3, 6)
	mixed := []string{paths[0], paths[0], paths[1]}
	d, err := filedec.Open(mixed, c)
	require.NoError(t, err)
	defer d.Close()

	out := make([]byte, 6)
	_, err = d.Read(out, 0)
	require.Error(t, err)
	require.ErrorIs(t, err, fecerr.ErrMalformedIndices)
}

func TestReadPastEndReturnsZero(t *testing.T) {
	c, paths := writeShares(t, "abcdef", 3, 6)
	d, err := filedec.Open(paths[:3], c)
	require.NoError(t, err)
	defer d.Close()

	out := make([]byte, 10)
	n, err := d.Read(out, int64(d.Size()))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

// TestDecodeSeedScenarioRequired7 is the boundary scenario from spec.md
// §8: required=7, numShares=20, source "1234567abc\n\x009abc" (length
// 16, excessBytes=2), shares 4..10, exhaustively checked over every
// (offset, length) pair in the ranges the spec names.
func TestDecodeSeedScenarioRequired7(t *testing.T) {
	contents := "1234567abc\n\x009abc"
	require.Len(t, contents, 16)

	c, paths := writeShares(t, contents, 7, 20)
	d, err := filedec.Open(paths[4:11], c)
	require.NoError(t, err)
	defer d.Close()

	require.EqualValues(t, 16, d.Size())

	for off := 0; off < 20; off++ {
		maxLen := 50 - off
		for length := 0; length <= maxLen; length++ {
			out := make([]byte, length)
			n, err := d.Read(out, int64(off))
			require.NoError(t, err)

			want := ""
			if off < len(contents) {
				end := off + length
				if end > len(contents) {
					end = len(contents)
				}
				want = contents[off:end]
			}
			require.Equal(t, want, string(out[:n]), "off=%d length=%d", off, length)
		}
	}
}
