package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calyptra/pak"
)

type packOptions struct {
	compress bool
	mount    string
	workers  int
	minSize  int64
}

func newPackCommand(verbose *bool) *cobra.Command {
	var opts packOptions

	cmd := &cobra.Command{
		Use:   "pack <archive> <source-dir>",
		Short: "Pack a directory tree into an archive",
		Long: `Pack walks <source-dir> recursively and writes a single archive
containing every file, preserving relative paths. The top-level directory
layout must match the mount path the host expects, or the host will
silently ignore the archive's contents.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd, args[0], args[1], opts, *verbose)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.compress, "compress", "c", false, "Compress entries with zstd")
	flags.StringVarP(&opts.mount, "mount", "m", "", "Mount point to record in the index")
	flags.IntVarP(&opts.workers, "workers", "w", 1, "Files compressed concurrently")
	flags.Int64Var(&opts.minSize, "compress-min-size", 4096, "Store files smaller than this uncompressed")

	return cmd
}

func runPack(cmd *cobra.Command, archivePath, srcDir string, opts packOptions, verbose bool) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", srcDir)
	}

	createOpts := []pak.CreateOption{
		pak.CreateWithMountPoint(opts.mount),
		pak.CreateWithWorkers(opts.workers),
		pak.CreateWithLogger(newLogger(verbose)),
	}
	if opts.compress {
		createOpts = append(createOpts,
			pak.CreateWithCompression(pak.CompressionZstd),
			pak.CreateWithSkipCompression(pak.DefaultSkipCompression(opts.minSize)),
		)
	}

	if err := pak.CreateFile(cmd.Context(), archivePath, srcDir, createOpts...); err != nil {
		return err
	}

	a, err := pak.Open(archivePath)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "packed %d entries into %s\n", a.Len(), archivePath)
	return nil
}
