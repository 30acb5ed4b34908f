// Package fuseserve binds internal/shareenc and internal/filedec to a
// real mount point via github.com/hanwen/go-fuse/v2/fs. It owns no
// coding logic: path resolution is delegated to internal/sharepath and
// lifetime management simply opens on Open and closes on Release.
// Grounded in shape on original_source/c++/zfecfsencoder.cpp,
// zfecfsdecoder.cpp and main.cpp, translated from libfuse's low-level
// callback style into go-fuse/v2's inode-embedding API.
package fuseserve

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/meta"
	"github.com/peter-x/zfec-fs/internal/sharepath"
	"github.com/peter-x/zfec-fs/internal/shareenc"
	"github.com/peter-x/zfec-fs/internal/zlog"
)

// EncoderRoot is the root inode of an encoder mount: it exposes exactly
// coder.NumShares() top-level two-hex-digit directories, each mirroring
// sourceDir's tree at its own shareIndex.
type EncoderRoot struct {
	fs.Inode
	sourceDir string
	coder     *fec.Coder
}

// NewEncoderRoot builds the root inode for an encoder mount over
// sourceDir using coder's (required, numShares) parameters.
func NewEncoderRoot(sourceDir string, coder *fec.Coder) *EncoderRoot {
	return &EncoderRoot{sourceDir: sourceDir, coder: coder}
}

var (
	_ fs.NodeLookuper  = (*EncoderRoot)(nil)
	_ fs.NodeReaddirer = (*EncoderRoot)(nil)
	_ fs.NodeGetattrer = (*EncoderRoot)(nil)
)

// Getattr reports the root as a directory.
func (r *EncoderRoot) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = uint32(fuse.S_IFDIR | 0o555)
	return 0
}

// Lookup resolves one top-level two-hex-digit share directory name,
// the encoder's path grammar (spec.md §6), via sharepath.DecodeShareIndex.
// Directories are created on demand rather than eagerly at mount time.
func (r *EncoderRoot) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	shareIndex, err := sharepath.DecodeShareIndex(name)
	if err != nil || shareIndex >= r.coder.NumShares() {
		return nil, syscall.ENOENT
	}
	child := &encoderDirNode{sourceDir: r.sourceDir, shareIndex: shareIndex, rel: ""}
	return r.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

// Readdir lists the coder.NumShares() top-level share directories by
// their sharepath.EncodeShareIndex name.
func (r *EncoderRoot) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, r.coder.NumShares())
	for i := range entries {
		entries[i] = fuse.DirEntry{Name: sharepath.EncodeShareIndex(i), Mode: fuse.S_IFDIR}
	}
	return fs.NewListDirStream(entries), 0
}

// encoderDirNode mirrors one directory of sourceDir for a single share
// index's subtree.
type encoderDirNode struct {
	fs.Inode
	sourceDir  string
	shareIndex int
	rel        string
}

var (
	_ fs.NodeLookuper  = (*encoderDirNode)(nil)
	_ fs.NodeReaddirer = (*encoderDirNode)(nil)
	_ fs.NodeGetattrer = (*encoderDirNode)(nil)
)

func (n *encoderDirNode) path() string {
	return filepath.Join(n.sourceDir, n.rel)
}

func (n *encoderDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := os.Stat(n.path())
	if err != nil {
		return fs.ToErrno(err)
	}
	out.Mode = uint32(fuse.S_IFDIR | 0o555)
	out.SetTimes(nil, timePtr(info.ModTime()), nil)
	return 0
}

func (n *encoderDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	full := filepath.Join(n.path(), name)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	rel := filepath.Join(n.rel, name)
	if info.IsDir() {
		child := &encoderDirNode{sourceDir: n.sourceDir, shareIndex: n.shareIndex, rel: rel}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
	}
	child := &encoderFileNode{sourceDir: n.sourceDir, shareIndex: n.shareIndex, coder: n.coder(), rel: rel}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

// coder recovers the shared *fec.Coder from the mount's root inode,
// which is always this subtree's ultimate ancestor.
func (n *encoderDirNode) coder() *fec.Coder {
	root, _ := n.Root().Operations().(*EncoderRoot)
	if root == nil {
		return nil
	}
	return root.coder
}

func (n *encoderDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := os.ReadDir(n.path())
	if err != nil {
		return nil, fs.ToErrno(err)
	}
	fuseEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if e.IsDir() {
			mode = fuse.S_IFDIR
		}
		fuseEntries = append(fuseEntries, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}
	return fs.NewListDirStream(fuseEntries), 0
}

// encoderFileNode is one share file: a fixed (sourceDir, rel,
// shareIndex) triple.
type encoderFileNode struct {
	fs.Inode
	sourceDir  string
	shareIndex int
	coder      *fec.Coder
	rel        string
}

var (
	_ fs.NodeOpener    = (*encoderFileNode)(nil)
	_ fs.NodeGetattrer = (*encoderFileNode)(nil)
)

func (n *encoderFileNode) sourcePath() string {
	return filepath.Join(n.sourceDir, n.rel)
}

func (n *encoderFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if fh, ok := f.(*encoderFileHandle); ok {
		size, err := fh.enc.EncodedSize()
		if err != nil {
			return fs.ToErrno(err)
		}
		out.Size = uint64(size)
		out.Mode = uint32(fuse.S_IFREG | 0o444)
		return 0
	}
	info, err := os.Stat(n.sourcePath())
	if err != nil {
		return fs.ToErrno(err)
	}
	out.Mode = uint32(fuse.S_IFREG | 0o444)
	out.Size = uint64(meta.EncodedSize(info.Size(), uint8(n.coder.Required())))
	out.SetTimes(nil, timePtr(info.ModTime()), nil)
	return 0
}

func (n *encoderFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	enc, err := shareenc.Open(n.sourcePath(), n.shareIndex, n.coder)
	if err != nil {
		zlog.Errorf("fuseserve: opening encoder for %s share %d: %v", n.sourcePath(), n.shareIndex, err)
		return nil, 0, fs.ToErrno(err)
	}
	zlog.Debugf("fuseserve: opened encoder share %d for %s", n.shareIndex, n.rel)
	return &encoderFileHandle{enc: enc}, fuse.FOPEN_KEEP_CACHE, 0
}

type encoderFileHandle struct {
	enc *shareenc.Encoder
}

var (
	_ fs.FileReader   = (*encoderFileHandle)(nil)
	_ fs.FileReleaser = (*encoderFileHandle)(nil)
)

func (h *encoderFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.enc.Read(dest, off)
	if err != nil {
		zlog.Errorf("fuseserve: encoder read at offset %d: %v", off, err)
		return nil, fs.ToErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *encoderFileHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.enc.Close(); err != nil {
		return fs.ToErrno(err)
	}
	return 0
}

func timePtr(t time.Time) *time.Time { return &t }
