package fuseserve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/filedec"
	"github.com/peter-x/zfec-fs/internal/meta"
	"github.com/peter-x/zfec-fs/internal/zlog"
)

// NewDecoderRoot builds the root inode for a decoder mount. shareDirs is
// the ordered list of configured share root directories (one per
// available share, each mirroring the plaintext tree at its own
// relative paths); coder carries the shared (required, numShares).
func NewDecoderRoot(shareDirs []string, coder *fec.Coder) fs.InodeEmbedder {
	return &decoderNode{shareDirs: shareDirs, coder: coder, rel: ""}
}

// decoderNode is both the root and every subdirectory of a decoder
// mount: directory listing merges the entries of every configured share
// root that has the requested relative path, Lookup resolves a name
// against the first configured share root where it exists (spec.md §9
// open question 1's documented deterministic-choice license), and Open
// for a leaf file resolves the same relative path against every
// configured share root and reconstructs from the first `required` that
// exist.
type decoderNode struct {
	fs.Inode
	shareDirs []string
	coder     *fec.Coder
	rel       string
}

var (
	_ fs.NodeLookuper  = (*decoderNode)(nil)
	_ fs.NodeReaddirer = (*decoderNode)(nil)
	_ fs.NodeGetattrer = (*decoderNode)(nil)
)

// firstExisting returns the absolute path of n.rel/name under the first
// configured share root where it exists, along with that path's
// os.FileInfo.
func (n *decoderNode) firstExisting(name string) (string, os.FileInfo, error) {
	rel := filepath.Join(n.rel, name)
	var lastErr error
	for _, dir := range n.shareDirs {
		full := filepath.Join(dir, rel)
		info, err := os.Stat(full)
		if err == nil {
			return full, info, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return "", nil, lastErr
}

func (n *decoderNode) ownPath() string {
	if len(n.shareDirs) == 0 {
		return n.rel
	}
	return filepath.Join(n.shareDirs[0], n.rel)
}

func (n *decoderNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if fh, ok := f.(*decoderFileHandle); ok {
		out.Size = uint64(fh.dec.Size())
		out.Mode = uint32(fuse.S_IFREG | 0o444)
		return 0
	}
	info, err := os.Stat(n.ownPath())
	if err != nil {
		return fs.ToErrno(err)
	}
	mode := uint32(fuse.S_IFREG | 0o444)
	if info.IsDir() {
		mode = fuse.S_IFDIR | 0o555
	} else if f, err := os.Open(n.ownPath()); err == nil {
		hdr := make([]byte, meta.Size)
		if m, _ := f.ReadAt(hdr, 0); m == meta.Size {
			out.Size = uint64(meta.PlaintextSize(info.Size(), hdr[0], hdr[2]))
		}
		_ = f.Close()
	}
	out.Mode = mode
	out.SetTimes(nil, timePtr(info.ModTime()), nil)
	return 0
}

func (n *decoderNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, info, err := n.firstExisting(name)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	rel := filepath.Join(n.rel, name)
	if info.IsDir() {
		child := &decoderNode{shareDirs: n.shareDirs, coder: n.coder, rel: rel}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
	}
	child := &decoderNode{shareDirs: n.shareDirs, coder: n.coder, rel: rel}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

func (n *decoderNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	seen := map[string]bool{}
	var out []fuse.DirEntry
	for _, dir := range n.shareDirs {
		entries, err := os.ReadDir(filepath.Join(dir, n.rel))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			mode := uint32(fuse.S_IFREG)
			if e.IsDir() {
				mode = fuse.S_IFDIR
			}
			out = append(out, fuse.DirEntry{Name: e.Name(), Mode: mode})
		}
	}
	if len(out) == 0 && len(seen) == 0 {
		if _, err := os.Stat(n.ownPath()); err != nil {
			return nil, fs.ToErrno(err)
		}
	}
	return fs.NewListDirStream(out), 0
}

// Open is only reached on leaf (non-directory) nodes: directory and
// file nodes share this type, but the kernel opens directories through
// OPENDIR, which does not call Open.
func (n *decoderNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	required := n.coder.Required()
	paths := make([]string, 0, len(n.shareDirs))
	for _, dir := range n.shareDirs {
		full := filepath.Join(dir, n.rel)
		if _, err := os.Stat(full); err == nil {
			paths = append(paths, full)
		}
		if len(paths) == required {
			break
		}
	}
	if len(paths) < required {
		zlog.Errorf("fuseserve: only %d of %d required shares found for %s", len(paths), required, n.rel)
		return nil, 0, syscall.EIO
	}

	dec, err := filedec.Open(paths, n.coder)
	if err != nil {
		zlog.Errorf("fuseserve: opening decoder for %s: %v", n.rel, err)
		return nil, 0, fs.ToErrno(err)
	}
	zlog.Debugf("fuseserve: opened decoder for %s from %d shares", n.rel, len(paths))
	return &decoderFileHandle{dec: dec}, fuse.FOPEN_KEEP_CACHE, 0
}

var _ fs.NodeOpener = (*decoderNode)(nil)

type decoderFileHandle struct {
	dec *filedec.Decoder
}

var (
	_ fs.FileReader   = (*decoderFileHandle)(nil)
	_ fs.FileReleaser = (*decoderFileHandle)(nil)
)

func (h *decoderFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.dec.Read(dest, off)
	if err != nil {
		zlog.Errorf("fuseserve: decoder read at offset %d: %v", off, err)
		return nil, fs.ToErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *decoderFileHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.dec.Close(); err != nil {
		return fs.ToErrno(err)
	}
	return 0
}

// Verify walks the first configured share root and, for every file in
// it, opens a decoder over the first coder.Required() configured share
// roots that hold the same relative path. That checks that those shares
// agree on required (which must also equal coder.Required()),
// excessBytes and encoded size, surfacing inconsistencies before mount
// rather than lazily on first read. Shares beyond the first
// coder.Required() are not checked, and duplicate share indices are not
// detected here. Used by `zfecfs decode --verify`.
func Verify(shareDirs []string, coder *fec.Coder) error {
	if len(shareDirs) == 0 {
		return fmt.Errorf("fuseserve: no share directories configured")
	}
	return filepath.WalkDir(shareDirs[0], func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(shareDirs[0], path)
		if err != nil {
			return err
		}
		var paths []string
		for _, dir := range shareDirs {
			full := filepath.Join(dir, rel)
			if _, statErr := os.Stat(full); statErr == nil {
				paths = append(paths, full)
			}
			if len(paths) == coder.Required() {
				break
			}
		}
		if len(paths) < coder.Required() {
			return fmt.Errorf("fuseserve: verify: %s: %w", rel, fmt.Errorf("only %d of %d required shares present", len(paths), coder.Required()))
		}
		dec, err := filedec.Open(paths, coder)
		if err != nil {
			return fmt.Errorf("fuseserve: verify: %s: %w", rel, err)
		}
		return dec.Close()
	})
}
