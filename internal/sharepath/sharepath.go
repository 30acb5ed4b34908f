// Package sharepath implements the path grammar used at the FUSE
// surface: the encoder exposes one two-hex-digit directory per share
// index, each mirroring the source tree; the decoder is handed one
// directory per configured share and resolves a requested relative path
// against each in turn. Grounded on original_source/c++/decodedpath.h
// and directory.h, translated from the C++ string-splitting idiom into
// Go's path/filepath.
package sharepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// EncodeShareIndex renders a share index as the two lowercase hex
// digits used for its top-level encoder directory name.
func EncodeShareIndex(shareIndex int) string {
	return fmt.Sprintf("%02x", shareIndex)
}

// DecodeShareIndex parses a two-hex-digit directory name back into a
// share index.
func DecodeShareIndex(name string) (int, error) {
	if len(name) != 2 {
		return 0, fmt.Errorf("sharepath: %q is not a two-hex-digit share directory name", name)
	}
	v, err := strconv.ParseUint(name, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("sharepath: %q is not a two-hex-digit share directory name: %w", name, err)
	}
	return int(v), nil
}

// ShareRoot joins sharesDir with the two-hex-digit subdirectory for
// shareIndex, the decoder-side layout: one subdirectory per configured
// share, each mirroring the plaintext tree.
func ShareRoot(sharesDir string, shareIndex int) string {
	return filepath.Join(sharesDir, EncodeShareIndex(shareIndex))
}

// DiscoverShareDirs enumerates sharesRoot's two-hex-digit subdirectories
// (spec.md §6's decoder-side layout: one subdirectory per share, each
// named by EncodeShareIndex) and returns the ShareRoot path of every
// entry that parses as a valid share index below numShares, in
// ascending index order. This lets the decoder be pointed at a single
// root directory instead of enumerating every --shares-dir explicitly.
func DiscoverShareDirs(sharesRoot string, numShares int) ([]string, error) {
	entries, err := os.ReadDir(sharesRoot)
	if err != nil {
		return nil, fmt.Errorf("sharepath: reading %s: %w", sharesRoot, err)
	}
	found := make(map[int]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		idx, err := DecodeShareIndex(e.Name())
		if err != nil || idx >= numShares {
			continue
		}
		found[idx] = true
	}
	dirs := make([]string, 0, len(found))
	for i := 0; i < numShares; i++ {
		if found[i] {
			dirs = append(dirs, ShareRoot(sharesRoot, i))
		}
	}
	return dirs, nil
}
