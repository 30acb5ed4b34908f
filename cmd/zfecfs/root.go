// Command zfecfs mounts a source directory as N erasure-coded share
// trees (encode mode) or reconstructs a plaintext tree from a set of
// share directories (decode mode). Flag layout and validation style
// follow original_source/c++/main.cpp's eager-validate-before-mount
// pattern, translated into a spf13/cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/peter-x/zfec-fs/internal/zlog"
)

var rootCmd = &cobra.Command{
	Use:   "zfecfs",
	Short: "FUSE filesystem for erasure-coded file sharing",
	Long: `zfecfs presents a read-only virtual filesystem that either fans a
source tree out into N erasure-coded share trees (encode), or
reconstructs the plaintext tree from any required-sized subset of share
trees (decode).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zlog.Errorf("zfecfs: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
