package main

import (
	"fmt"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/spf13/cobra"

	"github.com/peter-x/zfec-fs/internal/fec"
	"github.com/peter-x/zfec-fs/internal/fuseserve"
	"github.com/peter-x/zfec-fs/internal/zlog"
)

var (
	encodeRequired  int
	encodeNumShares int
	encodeSource    string
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	flags := encodeCmd.Flags()
	flags.IntVar(&encodeRequired, "required", 0, "number of shares needed to reconstruct the source (required)")
	flags.IntVar(&encodeNumShares, "shares", 0, "total number of shares to generate (required)")
	flags.StringVar(&encodeSource, "source", "", "source directory to encode (required)")
	_ = encodeCmd.MarkFlagRequired("required")
	_ = encodeCmd.MarkFlagRequired("shares")
	_ = encodeCmd.MarkFlagRequired("source")
}

var encodeCmd = &cobra.Command{
	Use:   "encode <mountpoint>",
	Short: "Mount a source directory as N erasure-coded share trees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountpoint := args[0]

		coder, err := fec.New(encodeRequired, encodeNumShares)
		if err != nil {
			return fmt.Errorf("zfecfs encode: %w", err)
		}

		root := fuseserve.NewEncoderRoot(encodeSource, coder)
		server, err := fs.Mount(mountpoint, root, &fs.Options{
			MountOptions: defaultMountOptions("zfecfs-encode"),
		})
		if err != nil {
			return fmt.Errorf("zfecfs encode: mounting %s: %w", mountpoint, err)
		}
		zlog.Infof("zfecfs: encoding %s onto %s (required=%d, shares=%d)", encodeSource, mountpoint, encodeRequired, encodeNumShares)
		server.Wait()
		return nil
	},
}
