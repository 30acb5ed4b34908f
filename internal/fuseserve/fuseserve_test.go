package fuseserve_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/fecerr"
	"github.com/peter-x/zfec-fs/internal/fuseserve"
	"github.com/peter-x/zfec-fs/internal/shareenc"
)

// These exercise Verify directly over temp-dir share trees rather than
// through a real kernel mount, since FUSE plumbing cannot be driven
// without an actual mount point (see SPEC_FULL.md §5.1).

func TestVerifyDetectsConsistentShares(t *testing.T) {
	c, err := fec.New(3, 6)
	require.NoError(t, err)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello world"), 0o644))

	sharesDir := t.TempDir()
	var shareDirs []string
	for i := 0; i < 6; i++ {
		dir := filepath.Join(sharesDir, string(rune('0'+i)))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		enc, err := shareenc.Open(filepath.Join(srcDir, "a.txt"), i, c)
		require.NoError(t, err)
		size, err := enc.EncodedSize()
		require.NoError(t, err)
		buf := make([]byte, size)
		_, err = enc.Read(buf, 0)
		require.NoError(t, err)
		require.NoError(t, enc.Close())
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), buf, 0o644))
		shareDirs = append(shareDirs, dir)
	}

	require.NoError(t, fuseserve.Verify(shareDirs, c))
}

func TestVerifyDetectsMissingShares(t *testing.T) {
	c, err := fec.New(3, 6)
	require.NoError(t, err)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello world"), 0o644))

	sharesDir := t.TempDir()
	var shareDirs []string
	for i := 0; i < 2; i++ {
		dir := filepath.Join(sharesDir, string(rune('0'+i)))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		enc, err := shareenc.Open(filepath.Join(srcDir, "a.txt"), i, c)
		require.NoError(t, err)
		size, err := enc.EncodedSize()
		require.NoError(t, err)
		buf := make([]byte, size)
		_, err = enc.Read(buf, 0)
		require.NoError(t, err)
		require.NoError(t, enc.Close())
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), buf, 0o644))
		shareDirs = append(shareDirs, dir)
	}

	err = fuseserve.Verify(shareDirs, c)
	require.Error(t, err)
}

func TestVerifyRejectsRequiredMismatch(t *testing.T) {
	cSmall, err := fec.New(3, 6)
	require.NoError(t, err)
	cBig, err := fec.New(4, 8)
	require.NoError(t, err)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello world"), 0o644))

	sharesDir := t.TempDir()
	var shareDirs []string
	// Four shares, so cBig's required=4 is met by count and the failure
	// can only come from the metadata check.
	for i := 0; i < 4; i++ {
		dir := filepath.Join(sharesDir, string(rune('0'+i)))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		enc, err := shareenc.Open(filepath.Join(srcDir, "a.txt"), i, cSmall)
		require.NoError(t, err)
		size, err := enc.EncodedSize()
		require.NoError(t, err)
		buf := make([]byte, size)
		_, err = enc.Read(buf, 0)
		require.NoError(t, err)
		require.NoError(t, enc.Close())
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), buf, 0o644))
		shareDirs = append(shareDirs, dir)
	}

	// Verifying with a differently-configured coder must fail: the
	// on-disk metadata declares required=3, not cBig's required=4.
	err = fuseserve.Verify(shareDirs, cBig)
	require.Error(t, err)
	require.ErrorIs(t, err, fecerr.ErrInconsistentMetadata)
}
