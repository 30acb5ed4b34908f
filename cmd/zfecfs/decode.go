package main

import (
	"fmt"
	"os"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/fuseserve"
	"github.com/peter-x/zfec-fs/internal/sharepath"
	"github.com/peter-x/zfec-fs/internal/zlog"
)

var (
	decodeRequired  int
	decodeNumShares int
	decodeShares    []string
	decodeSharesDir string
	decodeVerify    bool
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	flags := decodeCmd.Flags()
	flags.IntVar(&decodeRequired, "required", 0, "number of shares needed to reconstruct the source (required)")
	flags.IntVar(&decodeNumShares, "num-shares", 0, "total number of shares the encoder was configured with (required)")
	flags.StringSliceVar(&decodeShares, "shares-dir", nil, "share directory (repeatable; at least `required` must be given)")
	flags.StringVar(&decodeSharesDir, "shares-root", "", "root directory containing one two-hex-digit subdirectory per share (alternative to repeating --shares-dir)")
	flags.BoolVar(&decodeVerify, "verify", false, "validate share metadata consistency across all files before mounting")
	_ = decodeCmd.MarkFlagRequired("required")
	_ = decodeCmd.MarkFlagRequired("num-shares")
}

var decodeCmd = &cobra.Command{
	Use:   "decode <mountpoint>",
	Short: "Mount the plaintext tree reconstructed from share directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountpoint := args[0]

		coder, err := fec.New(decodeRequired, decodeNumShares)
		if err != nil {
			return fmt.Errorf("zfecfs decode: %w", err)
		}

		if decodeSharesDir != "" {
			if len(decodeShares) > 0 {
				return fmt.Errorf("zfecfs decode: --shares-root and --shares-dir are mutually exclusive")
			}
			decodeShares, err = sharepath.DiscoverShareDirs(decodeSharesDir, decodeNumShares)
			if err != nil {
				return fmt.Errorf("zfecfs decode: %w", err)
			}
		}
		if len(decodeShares) < decodeRequired {
			return fmt.Errorf("zfecfs decode: at least %d share directories are required (via --shares-dir or --shares-root), got %d", decodeRequired, len(decodeShares))
		}
		for _, dir := range decodeShares {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("zfecfs decode: share directory: %w", err)
			}
		}

		if decodeVerify {
			zlog.Infof("zfecfs: verifying %d share directories before mount", len(decodeShares))
			if err := fuseserve.Verify(decodeShares, coder); err != nil {
				return fmt.Errorf("zfecfs decode: verify: %w", err)
			}
		}

		root := fuseserve.NewDecoderRoot(decodeShares, coder)
		server, err := fs.Mount(mountpoint, root, &fs.Options{
			MountOptions: defaultMountOptions("zfecfs-decode"),
		})
		if err != nil {
			return fmt.Errorf("zfecfs decode: mounting %s: %w", mountpoint, err)
		}
		zlog.Infof("zfecfs: decoding onto %s from %d share directories (required=%d)", mountpoint, len(decodeShares), decodeRequired)
		server.Wait()
		return nil
	},
}

func defaultMountOptions(fsName string) fuse.MountOptions {
	return fuse.MountOptions{
		FsName:     fsName,
		Name:       fsName,
		AllowOther: false,
		Debug:      false,
	}
}
